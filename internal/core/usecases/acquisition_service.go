package usecases

import (
	"context"

	"github.com/enviro-meter/firewatch/internal/core/domain"
	"github.com/enviro-meter/firewatch/internal/core/ports"
	"github.com/enviro-meter/firewatch/internal/pkg/geospatial"
	"github.com/enviro-meter/firewatch/internal/pkg/logging"
	"github.com/enviro-meter/firewatch/internal/pkg/metrics"
)

// CornerInput carries the two user-supplied corner points of the area of
// interest, in whatever order the caller clicked them.
type CornerInput struct {
	Lat1 float64
	Lon1 float64
	Lat2 float64
	Lon2 float64
}

// AcquisitionService runs the image acquisition pipeline: normalize the
// requested corners, fetch a recent low-cloud capture from the imagery
// provider, and persist it to the local store.
type AcquisitionService struct {
	imagery ports.ImageryProvider
	store   ports.ImageStore
}

// NewAcquisitionService creates a new AcquisitionService.
func NewAcquisitionService(imagery ports.ImageryProvider, store ports.ImageStore) *AcquisitionService {
	return &AcquisitionService{imagery: imagery, store: store}
}

// FetchTrueColor acquires and caches a true-color capture for the area
// spanned by the two corners. Input problems are reported before any
// provider traffic happens.
func (s *AcquisitionService) FetchTrueColor(ctx context.Context, in CornerInput) (*domain.Acquisition, error) {
	box, err := domain.NormalizeBounds(in.Lat1, in.Lon1, in.Lat2, in.Lon2)
	if err != nil {
		return nil, err
	}

	data, err := s.imagery.FetchTrueColor(ctx, box)
	if err != nil {
		return nil, err
	}

	img, err := s.store.Save(ctx, data)
	if err != nil {
		return nil, err
	}

	widthKm, heightKm := geospatial.BoxDimensions(box.MinLon, box.MinLat, box.MaxLon, box.MaxLat)
	logging.FromContext(ctx).Info("true-color capture cached",
		"filename", img.Filename,
		"bytes", img.SizeBytes,
		"bbox", box.String(),
		"width_km", widthKm,
		"height_km", heightKm,
	)
	metrics.ImagesFetched.Inc()

	return &domain.Acquisition{BBox: box, Image: *img}, nil
}

// ListImages returns all cached captures, newest first.
func (s *AcquisitionService) ListImages(ctx context.Context) ([]domain.StoredImage, error) {
	return s.store.List(ctx)
}

// LatestImage returns the newest cached capture, or domain.ErrNoCachedImages.
func (s *AcquisitionService) LatestImage(ctx context.Context) (*domain.StoredImage, error) {
	return s.store.Latest(ctx)
}
