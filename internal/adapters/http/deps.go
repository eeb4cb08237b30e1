package http

import (
	"github.com/nats-io/nats.go"

	"github.com/enviro-meter/firewatch/internal/adapters/imagestore"
	"github.com/enviro-meter/firewatch/internal/adapters/valkey"
	"github.com/enviro-meter/firewatch/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers. NATS and Cache are
// nil when the corresponding backend is not configured; handlers and health
// checks treat them as optional.
type Dependencies struct {
	Acquisitions *usecases.AcquisitionService
	Detections   *usecases.DetectionService
	Images       *imagestore.Store
	NATS         *nats.Conn
	Cache        *valkey.Cache
}
