package classifier_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/enviro-meter/firewatch/internal/adapters/classifier"
	"github.com/enviro-meter/firewatch/internal/core/domain"
)

func TestClient_VerdictPassesThroughUnchanged(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotBody); err != nil {
			t.Errorf("request body is not JSON: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"image_used": "/sentinel/true-color-3.png",
			"checkpoint": "wildfirenet_v2.pt",
			"probability": 0.9231,
			"prediction": 1,
			"label": "Wildfire",
			"threshold": 0.5
		}`)
	}))
	defer srv.Close()

	client := classifier.New(srv.URL, 5*time.Second, 0)
	verdict, err := client.Classify(context.Background(), "/sentinel/true-color-3.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotBody["image_url"] != "/sentinel/true-color-3.png" {
		t.Errorf("expected image_url in request, got %v", gotBody)
	}
	want := domain.Verdict{
		Probability: 0.9231,
		Prediction:  1,
		Label:       domain.LabelWildfire,
		Threshold:   0.5,
		ImageUsed:   "/sentinel/true-color-3.png",
		Checkpoint:  "wildfirenet_v2.pt",
	}
	if *verdict != want {
		t.Errorf("expected %+v, got %+v", want, verdict)
	}
}

func TestClient_NonOKStatusIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":"no image available to classify"}`)
	}))
	defer srv.Close()

	client := classifier.New(srv.URL, 5*time.Second, 0)
	_, err := client.Classify(context.Background(), "")

	var unavailable *domain.InferenceUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected InferenceUnavailableError, got %v", err)
	}
	if !strings.Contains(unavailable.Detail, "no image available to classify") {
		t.Errorf("expected classifier message in detail, got %q", unavailable.Detail)
	}
}

func TestClient_PlainTextErrorBodySurvives(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, "404 page not found")
	}))
	defer srv.Close()

	client := classifier.New(srv.URL, 5*time.Second, 0)
	_, err := client.Classify(context.Background(), "/sentinel/true-color-1.png")

	var unavailable *domain.InferenceUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected InferenceUnavailableError, got %v", err)
	}
	if !strings.Contains(unavailable.Detail, "404") {
		t.Errorf("expected status in detail, got %q", unavailable.Detail)
	}
}

func TestClient_MalformedJSONIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"probability": 0.4, "predic`)
	}))
	defer srv.Close()

	client := classifier.New(srv.URL, 5*time.Second, 0)
	_, err := client.Classify(context.Background(), "/sentinel/true-color-1.png")

	var unavailable *domain.InferenceUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected InferenceUnavailableError, got %v", err)
	}
}

func TestClient_OKWithErrorFieldIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"error":"model checkpoint not loaded"}`)
	}))
	defer srv.Close()

	client := classifier.New(srv.URL, 5*time.Second, 0)
	_, err := client.Classify(context.Background(), "/sentinel/true-color-1.png")

	var unavailable *domain.InferenceUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected InferenceUnavailableError, got %v", err)
	}
	if unavailable.Detail != "model checkpoint not loaded" {
		t.Errorf("expected classifier error verbatim, got %q", unavailable.Detail)
	}
}

func TestClient_MissingVerdictFieldsIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"label":"Wildfire","threshold":0.5}`)
	}))
	defer srv.Close()

	client := classifier.New(srv.URL, 5*time.Second, 0)
	_, err := client.Classify(context.Background(), "/sentinel/true-color-1.png")

	var unavailable *domain.InferenceUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected InferenceUnavailableError, got %v", err)
	}
}

func TestClient_UnreachableService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := classifier.New(srv.URL, time.Second, 0)
	_, err := client.Classify(context.Background(), "/sentinel/true-color-1.png")

	var unavailable *domain.InferenceUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected InferenceUnavailableError, got %v", err)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		io.WriteString(w, `{"probability":0.1,"prediction":0,"label":"No Wildfire","threshold":0.5,"image_used":"x"}`)
	}))
	defer srv.Close()

	client := classifier.New(srv.URL, 5*time.Second, 2)
	verdict, err := client.Classify(context.Background(), "/sentinel/true-color-1.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdict.Label != domain.LabelNoWildfire {
		t.Errorf("expected verdict after retry, got %+v", verdict)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("expected 2 attempts, got %d", got)
	}
}
