package sentinel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"net/http"
	"time"

	"github.com/enviro-meter/firewatch/internal/core/domain"
	"github.com/enviro-meter/firewatch/internal/core/ports"
	"github.com/enviro-meter/firewatch/internal/pkg/httpclient"
	"github.com/enviro-meter/firewatch/internal/pkg/metrics"
)

// Fixed acquisition parameters. They bound provider cost and keep output
// uniform for the classifier, so they are not configurable.
const (
	collection       = "sentinel-2-l2a"
	maxCloudCoverage = 20
	mosaickingOrder  = "leastCC"
	lookbackMonths   = 2
	outputWidth      = 512
	outputHeight     = 512
)

// trueColorEvalscript renders the visible bands as an RGB image with a 2.5x
// brightness gain.
const trueColorEvalscript = `//VERSION=3
function setup() {
  return {
    input: ["B02", "B03", "B04"],
    output: { bands: 3 }
  };
}

function evaluatePixel(sample) {
  return [2.5 * sample.B04, 2.5 * sample.B03, 2.5 * sample.B02];
}`

const maxErrorBody = 64 * 1024

// Client fetches true-color captures through the Sentinel Hub Process API.
type Client struct {
	processURL string
	tokens     ports.TokenSource
	http       *http.Client
	maxRetries int
	now        func() time.Time
}

// NewClient creates a Process API client. maxRetries is the number of extra
// attempts after the first for transport failures and provider 5xx answers.
func NewClient(processURL string, tokens ports.TokenSource, timeout time.Duration, maxRetries int) *Client {
	return &Client{
		processURL: processURL,
		tokens:     tokens,
		http:       httpclient.New(timeout),
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

type processRequest struct {
	Input      processInput  `json:"input"`
	Output     processOutput `json:"output"`
	Evalscript string        `json:"evalscript"`
}

type processInput struct {
	Bounds processBounds `json:"bounds"`
	Data   []processData `json:"data"`
}

type processBounds struct {
	BBox domain.BoundingBox `json:"bbox"`
}

type processData struct {
	Type       string     `json:"type"`
	DataFilter dataFilter `json:"dataFilter"`
}

type dataFilter struct {
	TimeRange        timeRange `json:"timeRange"`
	MaxCloudCoverage int       `json:"maxCloudCoverage"`
	MosaickingOrder  string    `json:"mosaickingOrder"`
}

type timeRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type processOutput struct {
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Responses []processResponse `json:"responses"`
}

type processResponse struct {
	Identifier string         `json:"identifier"`
	Format     responseFormat `json:"format"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// FetchTrueColor requests the least-cloudy capture of the box from the last
// two months, rendered true-color at 512x512. No Process request is sent
// when authentication fails.
func (c *Client) FetchTrueColor(ctx context.Context, box domain.BoundingBox) ([]byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(c.buildRequest(box))
	if err != nil {
		return nil, &domain.ProviderRequestError{Err: fmt.Errorf("encode process request: %w", err)}
	}

	start := c.now()
	resp, err := httpclient.DoWithRetry(ctx, c.http, c.maxRetries, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.processURL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "image/png")
		req.Header.Set("Authorization", "Bearer "+token)
		return req, nil
	})
	metrics.ProviderRequestDuration.Observe(c.now().Sub(start).Seconds())
	if err != nil {
		metrics.ProviderErrors.WithLabelValues("process").Inc()
		return nil, &domain.ProviderRequestError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusUnauthorized {
			// Token was revoked or expired server-side; the next
			// acquisition re-authenticates.
			c.tokens.Invalidate()
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		metrics.ProviderErrors.WithLabelValues("process").Inc()
		return nil, &domain.ProviderRequestError{
			Status: resp.StatusCode,
			Body:   string(bytes.TrimSpace(body)),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ProviderErrors.WithLabelValues("process").Inc()
		return nil, &domain.ProviderRequestError{Err: fmt.Errorf("read process response: %w", err)}
	}

	// A 2xx with an undecodable body must not reach the store.
	if _, err := png.DecodeConfig(bytes.NewReader(data)); err != nil {
		metrics.ProviderErrors.WithLabelValues("process").Inc()
		return nil, &domain.ProviderRequestError{
			Status: resp.StatusCode,
			Body:   fmt.Sprintf("response is not a decodable PNG: %v", err),
		}
	}

	return data, nil
}

func (c *Client) buildRequest(box domain.BoundingBox) processRequest {
	to := c.now().UTC()
	from := to.AddDate(0, -lookbackMonths, 0)

	return processRequest{
		Input: processInput{
			Bounds: processBounds{BBox: box},
			Data: []processData{{
				Type: collection,
				DataFilter: dataFilter{
					TimeRange: timeRange{
						From: from.Format(time.RFC3339),
						To:   to.Format(time.RFC3339),
					},
					MaxCloudCoverage: maxCloudCoverage,
					MosaickingOrder:  mosaickingOrder,
				},
			}},
		},
		Output: processOutput{
			Width:  outputWidth,
			Height: outputHeight,
			Responses: []processResponse{{
				Identifier: "default",
				Format:     responseFormat{Type: "image/png"},
			}},
		},
		Evalscript: trueColorEvalscript,
	}
}
