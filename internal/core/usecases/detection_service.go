package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/enviro-meter/firewatch/internal/core/domain"
	"github.com/enviro-meter/firewatch/internal/core/ports"
	"github.com/enviro-meter/firewatch/internal/pkg/logging"
	"github.com/enviro-meter/firewatch/internal/pkg/metrics"
)

// DetectionService obtains wildfire verdicts for cached captures. Verdicts
// for a given image never change, so they are cached, and every completed
// verdict is published as a detection event.
type DetectionService struct {
	classifier ports.WildfireClassifier
	store      ports.ImageStore
	cache      ports.CacheService
	events     ports.EventPublisher
	verdictTTL int // seconds
}

// NewDetectionService creates a new DetectionService. cache and events may
// be nil when those backends are not configured.
func NewDetectionService(classifier ports.WildfireClassifier, store ports.ImageStore, cache ports.CacheService, events ports.EventPublisher, verdictTTLSeconds int) *DetectionService {
	if verdictTTLSeconds <= 0 {
		verdictTTLSeconds = 3600
	}
	return &DetectionService{
		classifier: classifier,
		store:      store,
		cache:      cache,
		events:     events,
		verdictTTL: verdictTTLSeconds,
	}
}

// Classify returns the wildfire verdict for the image at imageURL. An empty
// imageURL means "the most recently cached capture". A failed inference
// leaves the cached image untouched, so the call can simply be retried.
func (s *DetectionService) Classify(ctx context.Context, imageURL string) (*domain.Verdict, error) {
	if imageURL == "" {
		latest, err := s.store.Latest(ctx)
		if err != nil {
			if errors.Is(err, domain.ErrNoCachedImages) {
				return nil, &domain.InvalidInputError{Reason: "no cached image to classify, fetch one first"}
			}
			return nil, err
		}
		imageURL = latest.URL
	}

	// Try cache
	cacheKey := "verdict:" + imageURL
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var verdict domain.Verdict
			if err := json.Unmarshal(data, &verdict); err == nil {
				metrics.CacheHits.WithLabelValues("verdict").Inc()
				return &verdict, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("verdict").Inc()
	}

	verdict, err := s.classifier.Classify(ctx, imageURL)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(verdict); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, s.verdictTTL)
		}
	}

	metrics.Detections.WithLabelValues(verdict.Label).Inc()
	if verdict.Positive() {
		logging.FromContext(ctx).Warn("wildfire detected",
			"image_url", imageURL, "probability", verdict.Probability)
	}

	if s.events != nil {
		event := &domain.DetectionEvent{
			Time:     time.Now().UTC(),
			ImageURL: imageURL,
			Verdict:  *verdict,
		}
		if err := s.events.PublishDetection(ctx, event); err != nil {
			logging.FromContext(ctx).Warn("detection event publish failed", "error", err)
		}
	}

	return verdict, nil
}
