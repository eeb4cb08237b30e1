package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/enviro-meter/firewatch/internal/adapters/imagestore"
	"github.com/enviro-meter/firewatch/internal/adapters/sentinel"
	"github.com/enviro-meter/firewatch/internal/core/usecases"
	"github.com/enviro-meter/firewatch/internal/pkg/config"
	"github.com/enviro-meter/firewatch/internal/pkg/httpclient"
	"github.com/enviro-meter/firewatch/internal/pkg/logging"
)

// One-shot acquisition: fetch a true-color capture for a bounding box using
// the same configuration and pipeline as the API server. Useful for
// credential smoke-tests and scripted captures.
//
// Usage: fetch <lat1> <lon1> <lat2> <lon2>

func main() {
	if len(os.Args) != 5 {
		fmt.Fprintf(os.Stderr, "usage: %s <lat1> <lon1> <lat2> <lon2>\n", os.Args[0])
		os.Exit(2)
	}

	corners := make([]float64, 4)
	for i, arg := range os.Args[1:5] {
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			log.Fatalf("argument %d: %q is not a number", i+1, arg)
		}
		corners[i] = v
	}

	cfg, err := config.Load("firewatch-fetch")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "warn" // keep stdout clean for the JSON result
	}
	logging.Setup(logLevel, os.Getenv("LOG_FORMAT"))

	if cfg.Sentinel.ClientID == "" || cfg.Sentinel.ClientSecret == "" {
		log.Fatal("FIREWATCH_SENTINEL_CLIENT_ID and FIREWATCH_SENTINEL_CLIENT_SECRET must be set")
	}

	auth := sentinel.NewAuthenticator(
		cfg.Sentinel.TokenURL,
		cfg.Sentinel.ClientID,
		cfg.Sentinel.ClientSecret,
		httpclient.New(cfg.SentinelTimeout()),
	)
	imagery := sentinel.NewClient(cfg.Sentinel.ProcessURL, auth, cfg.SentinelTimeout(), cfg.Sentinel.MaxRetries)
	store := imagestore.New(cfg.Store.Dir, cfg.Store.PublicPath)
	svc := usecases.NewAcquisitionService(imagery, store)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	acq, err := svc.FetchTrueColor(ctx, usecases.CornerInput{
		Lat1: corners[0],
		Lon1: corners[1],
		Lat2: corners[2],
		Lon2: corners[3],
	})
	if err != nil {
		log.Fatalf("fetch: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(acq); err != nil {
		log.Fatalf("encode result: %v", err)
	}
}
