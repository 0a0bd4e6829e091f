// Package geo resolves addresses to coordinates and measures driving time
// between coordinates.
package geo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNotFound indicates the geocoder has no match for an address.
var ErrNotFound = errors.New("address not found")

// Point is a WGS-84 style coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// String renders the point as "lon,lat", the order Amap expects.
func (p Point) String() string {
	return strconv.FormatFloat(p.Lon, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lat, 'f', 6, 64)
}

// ParsePoint reads a "lon,lat" pair.
func ParsePoint(s string) (Point, error) {
	lonStr, latStr, ok := strings.Cut(s, ",")
	if !ok {
		return Point{}, fmt.Errorf("malformed location %q", s)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return Point{}, fmt.Errorf("malformed longitude in %q: %w", s, err)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return Point{}, fmt.Errorf("malformed latitude in %q: %w", s, err)
	}
	return Point{Lat: lat, Lon: lon}, nil
}

// Geocoder resolves an address within a city.
type Geocoder interface {
	Geocode(ctx context.Context, address, city string) (*Point, error)
}

// DriveTimer returns the driving time between two points in minutes.
type DriveTimer interface {
	DriveTime(ctx context.Context, from, to Point) (float64, error)
}
