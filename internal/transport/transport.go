// Package transport searches cross-city flights and trains and orders the
// resulting offers for selection.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/randalmurphal/tripflow/internal/plan"
	flowerrors "github.com/randalmurphal/tripflow/pkg/flowgraph/errors"
)

// FlightSearcher finds direct flights between two cities on a date.
type FlightSearcher interface {
	SearchFlights(ctx context.Context, origin, destination, date string) ([]plan.Offer, error)
}

// TrainSearcher finds trains between two cities on a date.
type TrainSearcher interface {
	SearchTrains(ctx context.Context, origin, destination, date string) ([]plan.Offer, error)
}

// Selectable returns the offers a traveller may pick by index: every
// priced flight then train, stable-sorted by departure instant. Offers
// whose departure cannot be parsed come last in their original order.
func Selectable(t plan.Transport) []plan.Offer {
	type dated struct {
		offer   plan.Offer
		departs time.Time
		known   bool
	}
	var priced []dated
	for _, o := range t.Options() {
		if o.Price == nil {
			continue
		}
		at, err := o.Departs()
		priced = append(priced, dated{offer: o, departs: at, known: err == nil})
	}
	sort.SliceStable(priced, func(i, j int) bool {
		a, b := priced[i], priced[j]
		if a.known != b.known {
			return a.known
		}
		return a.known && a.departs.Before(b.departs)
	})

	out := make([]plan.Offer, len(priced))
	for i, d := range priced {
		out[i] = d.offer
	}
	return out
}

// Describe renders an offer as one selection line.
func Describe(i int, o plan.Offer) string {
	return fmt.Sprintf("[%d] %s %s | %s → %s | %s → %s",
		i, o.Type, o.ID,
		o.DepartureTime, o.ArrivalTime,
		hubLabel(o.DepartureHubName, o.DepartureHub),
		hubLabel(o.ArrivalHubName, o.ArrivalHub))
}

func hubLabel(name, code string) string {
	if name != "" {
		return name
	}
	return code
}

// NormalizeDate rewrites dates such as "2026-1-5" or "2026/01/05" as
// "2026-01-05".
func NormalizeDate(date string) (string, error) {
	d, err := time.Parse("2006-1-2", strings.ReplaceAll(strings.TrimSpace(date), "/", "-"))
	if err != nil {
		return "", &flowerrors.ValidationError{Field: "date", Message: fmt.Sprintf("%q is not YYYY-MM-DD", date)}
	}
	return d.Format(plan.DateLayout), nil
}

// price accepts a JSON number, a numeric string, or nothing.
type price struct {
	value *float64
}

func (p *price) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "" || raw == "null" {
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		p.value = &f
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("price: %w", err)
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		p.value = &f
	}
	return nil
}
