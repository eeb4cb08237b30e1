package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Coordinate is a single latitude or longitude value. Map frontends send
// coordinates either as JSON numbers or as numeric strings, so it accepts
// both forms.
type Coordinate float64

func (c *Coordinate) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if len(s) >= 2 && s[0] == '"' {
		var quoted string
		if err := json.Unmarshal(data, &quoted); err != nil {
			return err
		}
		s = strings.TrimSpace(quoted)
	}
	if s == "" || s == "null" {
		return &InvalidInputError{Reason: "coordinate must be a number"}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return &InvalidInputError{Reason: fmt.Sprintf("coordinate %q is not a number", s)}
	}
	*c = Coordinate(f)
	return nil
}

// BoundingBox is a geographic rectangle in WGS 84. On the wire it is the
// four-element array [minLon, minLat, maxLon, maxLat] that imagery
// providers expect.
type BoundingBox struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

func (b BoundingBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{b.MinLon, b.MinLat, b.MaxLon, b.MaxLat})
}

func (b *BoundingBox) UnmarshalJSON(data []byte) error {
	var values []float64
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	if len(values) != 4 {
		return fmt.Errorf("bounding box needs 4 values, got %d", len(values))
	}
	b.MinLon, b.MinLat, b.MaxLon, b.MaxLat = values[0], values[1], values[2], values[3]
	return nil
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("[%g,%g,%g,%g]", b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
}

// Corners returns the south-west and north-east corner points.
func (b BoundingBox) Corners() (sw, ne GeoPoint) {
	return GeoPoint{Lat: b.MinLat, Lon: b.MinLon}, GeoPoint{Lat: b.MaxLat, Lon: b.MaxLon}
}

// NormalizeBounds builds the canonical bounding box from two corner points
// supplied in any order. Latitudes and longitudes are ordered independently,
// so mirrored or swapped corners produce the same box.
func NormalizeBounds(lat1, lon1, lat2, lon2 float64) (BoundingBox, error) {
	for name, v := range map[string]float64{"lat1": lat1, "lon1": lon1, "lat2": lat2, "lon2": lon2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return BoundingBox{}, &InvalidInputError{Reason: name + " is not a finite number"}
		}
	}
	for name, lat := range map[string]float64{"lat1": lat1, "lat2": lat2} {
		if lat < -90 || lat > 90 {
			return BoundingBox{}, &InvalidInputError{Reason: fmt.Sprintf("%s %g is outside [-90, 90]", name, lat)}
		}
	}
	for name, lon := range map[string]float64{"lon1": lon1, "lon2": lon2} {
		if lon < -180 || lon > 180 {
			return BoundingBox{}, &InvalidInputError{Reason: fmt.Sprintf("%s %g is outside [-180, 180]", name, lon)}
		}
	}
	return BoundingBox{
		MinLon: math.Min(lon1, lon2),
		MinLat: math.Min(lat1, lat2),
		MaxLon: math.Max(lon1, lon2),
		MaxLat: math.Max(lat1, lat2),
	}, nil
}
