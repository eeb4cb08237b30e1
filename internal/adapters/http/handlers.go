package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/enviro-meter/firewatch/internal/core/domain"
	"github.com/enviro-meter/firewatch/internal/core/usecases"
)

// acquireRequest is the body of POST /v1/images. Coordinates are pointers so
// a missing field can be told apart from a legitimate zero; domain.Coordinate
// accepts both JSON numbers and numeric strings.
type acquireRequest struct {
	Lat1 *domain.Coordinate `json:"lat1"`
	Lon1 *domain.Coordinate `json:"lon1"`
	Lat2 *domain.Coordinate `json:"lat2"`
	Lon2 *domain.Coordinate `json:"lon2"`
}

// acquireResponse reports a completed acquisition. TrueColorURL is the public
// path the capture is served from.
type acquireResponse struct {
	TrueColorURL string             `json:"trueColorUrl"`
	Filename     string             `json:"filename"`
	BBox         domain.BoundingBox `json:"bbox"`
}

// detectRequest is the body of POST /v1/detections. ImageURL is optional; an
// empty value classifies the most recent cached capture.
type detectRequest struct {
	ImageURL string `json:"image_url"`
}

// AcquireImageHandler fetches a true-color capture for the box spanned by two
// corner points and caches it locally.
func AcquireImageHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req acquireRequest
		if err := c.BodyParser(&req); err != nil {
			var invalid *domain.InvalidInputError
			if errors.As(err, &invalid) {
				return errInvalidInput(c, invalid.Error())
			}
			return errInvalidInput(c, "request body must be a JSON object")
		}
		if req.Lat1 == nil || req.Lon1 == nil || req.Lat2 == nil || req.Lon2 == nil {
			return errInvalidInput(c, "lat1, lon1, lat2 and lon2 are required")
		}

		acq, err := deps.Acquisitions.FetchTrueColor(c.UserContext(), usecases.CornerInput{
			Lat1: float64(*req.Lat1),
			Lon1: float64(*req.Lon1),
			Lat2: float64(*req.Lat2),
			Lon2: float64(*req.Lon2),
		})
		if err != nil {
			return mapDomainError(c, err)
		}

		return c.JSON(acquireResponse{
			TrueColorURL: acq.Image.URL,
			Filename:     acq.Image.Filename,
			BBox:         acq.BBox,
		})
	}
}

// DetectHandler runs the wildfire classifier against a cached capture. With
// no image_url in the body it targets the most recent capture.
func DetectHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req detectRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return errInvalidInput(c, "request body must be a JSON object")
			}
		}

		verdict, err := deps.Detections.Classify(c.UserContext(), req.ImageURL)
		if err != nil {
			return mapDomainError(c, err)
		}

		return c.JSON(verdict)
	}
}

// ListImagesHandler returns cached captures, newest first, with offset/limit
// pagination.
func ListImagesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		images, err := deps.Acquisitions.ListImages(c.UserContext())
		if err != nil {
			return mapDomainError(c, err)
		}

		pg := ParsePagination(c, 50, 200)
		pg.Total = len(images)
		start, end := pg.Window(pg.Total)
		images = images[start:end]
		if images == nil {
			images = []domain.StoredImage{}
		}

		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: images, Pagination: pg})
	}
}

// LatestImageHandler returns the newest cached capture.
func LatestImageHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		img, err := deps.Acquisitions.LatestImage(c.UserContext())
		if err != nil {
			if errors.Is(err, domain.ErrNoCachedImages) {
				return errNotFound(c, "no cached images, fetch one first")
			}
			return mapDomainError(c, err)
		}
		return c.JSON(img)
	}
}
