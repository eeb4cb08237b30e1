package domain

import (
	"time"
)

// Classifier label values.
const (
	LabelWildfire   = "Wildfire"
	LabelNoWildfire = "No Wildfire"
)

// StoredImage is one cached true-color capture in the image store.
type StoredImage struct {
	Filename  string    `json:"filename"`
	Sequence  int       `json:"sequence"`
	URL       string    `json:"url"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// Acquisition describes a completed fetch: the canonical box that was
// requested and the cached file that now serves it.
type Acquisition struct {
	BBox  BoundingBox `json:"bbox"`
	Image StoredImage `json:"image"`
}

// Verdict is the classifier's structured output. Fields pass through to
// callers exactly as the model service reported them.
type Verdict struct {
	Probability float64 `json:"probability"`
	Prediction  int     `json:"prediction"`
	Label       string  `json:"label"`
	Threshold   float64 `json:"threshold"`
	ImageUsed   string  `json:"image_used"`
	Checkpoint  string  `json:"checkpoint,omitempty"`
}

// Positive reports whether the verdict crossed the wildfire threshold.
func (v Verdict) Positive() bool { return v.Prediction == 1 }

// DetectionEvent is the envelope published for every completed verdict.
type DetectionEvent struct {
	Time     time.Time `json:"time"`
	ImageURL string    `json:"image_url"`
	Verdict  Verdict   `json:"verdict"`
}
