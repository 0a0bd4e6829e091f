package fakes

import (
	"context"
	"hash/fnv"
	"math"
	"sync"

	"github.com/randalmurphal/tripflow/internal/geo"
)

var cityCenters = map[string]geo.Point{
	"北京": {Lat: 39.9042, Lon: 116.4074},
	"上海": {Lat: 31.2304, Lon: 121.4737},
	"深圳": {Lat: 22.5431, Lon: 114.0579},
	"广州": {Lat: 23.1291, Lon: 113.2644},
	"杭州": {Lat: 30.2741, Lon: 120.1551},
	"成都": {Lat: 30.5728, Lon: 104.0668},
}

var defaultCenter = geo.Point{Lat: 30, Lon: 120}

// Geocoder places every address deterministically within about ten
// kilometres of its city centre. Addresses registered with Fail are not
// found; Set pins an exact point.
type Geocoder struct {
	mu     sync.Mutex
	fixed  map[string]geo.Point
	failed map[string]error
	Calls  []string
}

// NewGeocoder creates a Geocoder.
func NewGeocoder() *Geocoder {
	return &Geocoder{fixed: make(map[string]geo.Point), failed: make(map[string]error)}
}

// Set pins address to p.
func (g *Geocoder) Set(address string, p geo.Point) *Geocoder {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fixed[address] = p
	return g
}

// Fail makes address unresolvable.
func (g *Geocoder) Fail(address string) *Geocoder {
	return g.FailWith(address, geo.ErrNotFound)
}

// FailWith makes geocoding address return err.
func (g *Geocoder) FailWith(address string, err error) *Geocoder {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failed[address] = err
	return g
}

// Geocode implements geo.Geocoder.
func (g *Geocoder) Geocode(ctx context.Context, address, city string) (*geo.Point, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls = append(g.Calls, address)

	if err, ok := g.failed[address]; ok {
		return nil, err
	}
	if p, ok := g.fixed[address]; ok {
		return &p, nil
	}

	center, ok := cityCenters[city]
	if !ok {
		center = defaultCenter
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(address))
	sum := h.Sum64()
	dLat := (float64(sum&0xffff)/0xffff - 0.5) * 0.18
	dLon := (float64((sum>>16)&0xffff)/0xffff - 0.5) * 0.18
	return &geo.Point{Lat: round6(center.Lat + dLat), Lon: round6(center.Lon + dLon)}, nil
}

// CallCount returns the number of Geocode calls.
func (g *Geocoder) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Calls)
}

// DriveTimer estimates driving minutes from straight-line distance at an
// urban 40 km/h plus five minutes of overhead.
type DriveTimer struct {
	mu    sync.Mutex
	err   error
	calls int
}

// NewDriveTimer creates a DriveTimer.
func NewDriveTimer() *DriveTimer {
	return &DriveTimer{}
}

// WithError makes every lookup fail with err.
func (d *DriveTimer) WithError(err error) *DriveTimer {
	d.err = err
	return d
}

// DriveTime implements geo.DriveTimer.
func (d *DriveTimer) DriveTime(ctx context.Context, from, to geo.Point) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	d.mu.Lock()
	d.calls++
	err := d.err
	d.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return Minutes(from, to), nil
}

// CallCount returns the number of DriveTime calls.
func (d *DriveTimer) CallCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// Minutes is the estimate DriveTimer returns for a pair.
func Minutes(from, to geo.Point) float64 {
	const kmPerDegree = 111.0
	meanLat := (from.Lat + to.Lat) / 2 * math.Pi / 180
	dx := (to.Lon - from.Lon) * math.Cos(meanLat) * kmPerDegree
	dy := (to.Lat - from.Lat) * kmPerDegree
	km := math.Hypot(dx, dy)
	return math.Round((km/40*60+5)*10) / 10
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
