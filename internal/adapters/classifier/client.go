// Package classifier calls the external WildfireNet inference service.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/enviro-meter/firewatch/internal/core/domain"
	"github.com/enviro-meter/firewatch/internal/pkg/httpclient"
	"github.com/enviro-meter/firewatch/internal/pkg/metrics"
)

const maxResponseBody = 1 << 20

// Client is an HTTP client for the classifier's predict endpoint.
type Client struct {
	url        string
	http       *http.Client
	maxRetries int
}

// New creates a classifier client for the given predict endpoint URL.
func New(url string, timeout time.Duration, maxRetries int) *Client {
	return &Client{
		url:        strings.TrimSuffix(url, "/"),
		http:       httpclient.New(timeout),
		maxRetries: maxRetries,
	}
}

type predictRequest struct {
	ImageURL string `json:"image_url"`
}

// predictResponse mirrors the classifier's wire format. An error field
// supersedes everything else; probability and prediction are pointers so a
// structurally valid but verdict-less body is detectable.
type predictResponse struct {
	Probability *float64 `json:"probability"`
	Prediction  *int     `json:"prediction"`
	Label       string   `json:"label"`
	Threshold   float64  `json:"threshold"`
	ImageUsed   string   `json:"image_used"`
	Checkpoint  string   `json:"checkpoint"`
	Error       string   `json:"error"`
}

// Classify sends the image reference to the model service and interprets
// its answer. Any failure mode (unreachable, non-2xx, malformed or
// incomplete body, reported error) comes back as InferenceUnavailableError;
// the verdict itself is never altered.
func (c *Client) Classify(ctx context.Context, imageURL string) (*domain.Verdict, error) {
	payload, err := json.Marshal(predictRequest{ImageURL: imageURL})
	if err != nil {
		return nil, &domain.InferenceUnavailableError{Err: fmt.Errorf("encode predict request: %w", err)}
	}

	resp, err := httpclient.DoWithRetry(ctx, c.http, c.maxRetries, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		metrics.InferenceRequests.WithLabelValues("error").Inc()
		return nil, &domain.InferenceUnavailableError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		metrics.InferenceRequests.WithLabelValues("error").Inc()
		return nil, &domain.InferenceUnavailableError{Err: fmt.Errorf("read predict response: %w", err)}
	}

	var pr predictResponse
	jsonErr := json.Unmarshal(body, &pr)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := strings.TrimSpace(string(body))
		if jsonErr == nil && pr.Error != "" {
			detail = pr.Error
		}
		metrics.InferenceRequests.WithLabelValues("error").Inc()
		return nil, &domain.InferenceUnavailableError{
			Detail: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, detail),
		}
	}

	if jsonErr != nil {
		metrics.InferenceRequests.WithLabelValues("error").Inc()
		return nil, &domain.InferenceUnavailableError{Detail: "response is not valid JSON"}
	}
	if pr.Error != "" {
		metrics.InferenceRequests.WithLabelValues("error").Inc()
		return nil, &domain.InferenceUnavailableError{Detail: pr.Error}
	}
	if pr.Probability == nil || pr.Prediction == nil {
		metrics.InferenceRequests.WithLabelValues("error").Inc()
		return nil, &domain.InferenceUnavailableError{Detail: "response is missing verdict fields"}
	}

	metrics.InferenceRequests.WithLabelValues("ok").Inc()
	return &domain.Verdict{
		Probability: *pr.Probability,
		Prediction:  *pr.Prediction,
		Label:       pr.Label,
		Threshold:   pr.Threshold,
		ImageUsed:   pr.ImageUsed,
		Checkpoint:  pr.Checkpoint,
	}, nil
}
