package sentinel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/enviro-meter/firewatch/internal/core/domain"
)

// --- Mock TokenSource ---

type staticTokens struct {
	token       string
	err         error
	calls       int
	invalidated int
}

func (s *staticTokens) Token(ctx context.Context) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.token, nil
}

func (s *staticTokens) Invalidate() { s.invalidated++ }

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func testBox() domain.BoundingBox {
	return domain.BoundingBox{MinLon: 15, MinLat: 5, MaxLon: 20, MaxLat: 10}
}

func TestClient_BuildsProcessRequest(t *testing.T) {
	img := pngBytes(t)
	var gotAuth, gotAccept string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotBody); err != nil {
			t.Errorf("request body is not JSON: %v", err)
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(img)
	}))
	defer srv.Close()

	fixed := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	client := NewClient(srv.URL, &staticTokens{token: "tok-42"}, 5*time.Second, 0)
	client.now = func() time.Time { return fixed }

	data, err := client.FetchTrueColor(context.Background(), testBox())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(data, img) {
		t.Error("expected the provider's PNG bytes back unchanged")
	}
	if gotAuth != "Bearer tok-42" {
		t.Errorf("expected bearer token header, got %q", gotAuth)
	}
	if gotAccept != "image/png" {
		t.Errorf("expected Accept image/png, got %q", gotAccept)
	}

	input := gotBody["input"].(map[string]any)
	bbox := input["bounds"].(map[string]any)["bbox"].([]any)
	want := []float64{15, 5, 20, 10}
	for i, v := range bbox {
		if v.(float64) != want[i] {
			t.Errorf("bbox[%d]: expected %g, got %v", i, want[i], v)
		}
	}

	data0 := input["data"].([]any)[0].(map[string]any)
	if data0["type"] != "sentinel-2-l2a" {
		t.Errorf("expected sentinel-2-l2a, got %v", data0["type"])
	}
	filter := data0["dataFilter"].(map[string]any)
	if filter["maxCloudCoverage"].(float64) != 20 {
		t.Errorf("expected maxCloudCoverage 20, got %v", filter["maxCloudCoverage"])
	}
	if filter["mosaickingOrder"] != "leastCC" {
		t.Errorf("expected leastCC, got %v", filter["mosaickingOrder"])
	}
	tr := filter["timeRange"].(map[string]any)
	if tr["to"] != "2026-08-25T12:00:00Z" {
		t.Errorf("expected to = fixed now, got %v", tr["to"])
	}
	if tr["from"] != "2026-06-25T12:00:00Z" {
		t.Errorf("expected from = two months back, got %v", tr["from"])
	}

	output := gotBody["output"].(map[string]any)
	if output["width"].(float64) != 512 || output["height"].(float64) != 512 {
		t.Errorf("expected 512x512 output, got %vx%v", output["width"], output["height"])
	}
	script := gotBody["evalscript"].(string)
	for _, band := range []string{"B02", "B03", "B04"} {
		if !bytes.Contains([]byte(script), []byte(band)) {
			t.Errorf("expected evalscript to use %s", band)
		}
	}
}

func TestClient_AuthFailureSendsNoProcessRequest(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	tokens := &staticTokens{err: &domain.AuthenticationError{Status: 401, Detail: "invalid_client"}}
	client := NewClient(srv.URL, tokens, 5*time.Second, 0)

	_, err := client.FetchTrueColor(context.Background(), testBox())

	var authErr *domain.AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
	if got := hits.Load(); got != 0 {
		t.Errorf("expected no process requests after auth failure, got %d", got)
	}
}

func TestClient_ProviderErrorBodyIsVerbatim(t *testing.T) {
	providerBody := `{"error":{"status":400,"reason":"Bad Request","message":"Requested bbox area is too large"}}`
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, providerBody)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, &staticTokens{token: "tok"}, 5*time.Second, 3)
	_, err := client.FetchTrueColor(context.Background(), testBox())

	var provider *domain.ProviderRequestError
	if !errors.As(err, &provider) {
		t.Fatalf("expected ProviderRequestError, got %v", err)
	}
	if provider.Status != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", provider.Status)
	}
	if provider.Body != providerBody {
		t.Errorf("expected provider body verbatim, got %q", provider.Body)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("expected a 4xx to not be retried, got %d attempts", got)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	img := pngBytes(t)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(img)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, &staticTokens{token: "tok"}, 5*time.Second, 3)
	data, err := client.FetchTrueColor(context.Background(), testBox())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(data, img) {
		t.Error("expected PNG after retries")
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestClient_UndecodableImageIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		io.WriteString(w, "this is not a png")
	}))
	defer srv.Close()

	client := NewClient(srv.URL, &staticTokens{token: "tok"}, 5*time.Second, 0)
	_, err := client.FetchTrueColor(context.Background(), testBox())

	var provider *domain.ProviderRequestError
	if !errors.As(err, &provider) {
		t.Fatalf("expected ProviderRequestError, got %v", err)
	}
}

func TestClient_UnauthorizedInvalidatesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, "expired token")
	}))
	defer srv.Close()

	tokens := &staticTokens{token: "stale"}
	client := NewClient(srv.URL, tokens, 5*time.Second, 0)
	_, err := client.FetchTrueColor(context.Background(), testBox())

	var provider *domain.ProviderRequestError
	if !errors.As(err, &provider) {
		t.Fatalf("expected ProviderRequestError, got %v", err)
	}
	if tokens.invalidated != 1 {
		t.Errorf("expected token invalidation on 401, got %d", tokens.invalidated)
	}
}
