package ports

import (
	"context"

	"github.com/enviro-meter/firewatch/internal/core/domain"
)

// ImageryProvider fetches satellite imagery for a bounding box.
type ImageryProvider interface {
	// FetchTrueColor returns an encoded PNG of the most recent usable
	// capture covering the box.
	FetchTrueColor(ctx context.Context, box domain.BoundingBox) ([]byte, error)
}

// TokenSource supplies bearer tokens for imagery provider calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	// Invalidate discards the cached token so the next call re-authenticates.
	Invalidate()
}

// ImageStore persists fetched captures and serves their metadata.
type ImageStore interface {
	Save(ctx context.Context, data []byte) (*domain.StoredImage, error)
	// Latest returns the newest stored capture, or domain.ErrNoCachedImages.
	Latest(ctx context.Context) (*domain.StoredImage, error)
	List(ctx context.Context) ([]domain.StoredImage, error)
}

// WildfireClassifier obtains a verdict for a stored capture.
type WildfireClassifier interface {
	Classify(ctx context.Context, imageURL string) (*domain.Verdict, error)
}
