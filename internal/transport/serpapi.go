package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/randalmurphal/tripflow/internal/plan"
	flowerrors "github.com/randalmurphal/tripflow/pkg/flowgraph/errors"
)

// DefaultSerpAPIURL is the SerpApi search endpoint.
const DefaultSerpAPIURL = "https://serpapi.com/search.json"

// ErrNoFlightKey is returned when the flight client has no API key.
var ErrNoFlightKey = errors.New("serpapi: api key not configured")

// SerpAPIClient searches Google Flights through SerpApi. Cities served by
// several airports are searched for every airport pair in parallel.
type SerpAPIClient struct {
	key        string
	endpoint   string
	httpClient *http.Client
	workers    int
	logger     *slog.Logger
}

// SerpAPIOption configures a SerpAPIClient.
type SerpAPIOption func(*SerpAPIClient)

// WithSerpAPIEndpoint overrides the search endpoint.
func WithSerpAPIEndpoint(u string) SerpAPIOption {
	return func(c *SerpAPIClient) { c.endpoint = u }
}

// WithSerpAPIHTTPClient replaces the HTTP client.
func WithSerpAPIHTTPClient(hc *http.Client) SerpAPIOption {
	return func(c *SerpAPIClient) { c.httpClient = hc }
}

// WithSerpAPIWorkers bounds concurrent airport-pair requests.
func WithSerpAPIWorkers(n int) SerpAPIOption {
	return func(c *SerpAPIClient) { c.workers = max(n, 1) }
}

// WithSerpAPILogger sets the logger.
func WithSerpAPILogger(l *slog.Logger) SerpAPIOption {
	return func(c *SerpAPIClient) { c.logger = l }
}

// NewSerpAPIClient creates a flight searcher.
func NewSerpAPIClient(key string, opts ...SerpAPIOption) *SerpAPIClient {
	c := &SerpAPIClient{
		key:        key,
		endpoint:   DefaultSerpAPIURL,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		workers:    5,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type serpFlights struct {
	Best  []serpGroup `json:"best_flights"`
	Other []serpGroup `json:"other_flights"`
	Error string      `json:"error"`
}

type serpGroup struct {
	Flights       []serpSegment `json:"flights"`
	TotalDuration json.Number   `json:"total_duration"`
	Price         price         `json:"price"`
}

type serpSegment struct {
	FlightNumber string      `json:"flight_number"`
	Departure    serpAirport `json:"departure_airport"`
	Arrival      serpAirport `json:"arrival_airport"`
}

type serpAirport struct {
	ID   string `json:"id"`
	Time string `json:"time"`
}

// SearchFlights returns direct, priced flights sorted by departure time.
// A failing airport pair is logged and skipped; an error is returned only
// when every pair failed.
func (c *SerpAPIClient) SearchFlights(ctx context.Context, origin, destination, date string) ([]plan.Offer, error) {
	if c.key == "" {
		return nil, ErrNoFlightKey
	}
	day, err := NormalizeDate(date)
	if err != nil {
		return nil, err
	}

	type pair struct{ from, to string }
	var pairs []pair
	for _, from := range AirportsFor(origin) {
		for _, to := range AirportsFor(destination) {
			pairs = append(pairs, pair{from, to})
		}
	}

	var (
		mu       sync.Mutex
		all      []plan.Offer
		failures []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for _, p := range pairs {
		g.Go(func() error {
			offers, err := c.searchPair(gctx, p.from, p.to, day)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				c.logger.Warn("flight search failed for airport pair",
					slog.String("from", p.from),
					slog.String("to", p.to),
					slog.Any("error", err))
				failures = append(failures, err)
				return nil
			}
			all = append(all, offers...)
			return nil
		})
	}
	_ = g.Wait()

	if len(failures) == len(pairs) {
		return nil, fmt.Errorf("search flights %s → %s: %w", origin, destination, errors.Join(failures...))
	}

	out := dedupe(all)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DepartureDate+" "+out[i].DepartureTime < out[j].DepartureDate+" "+out[j].DepartureTime
	})

	c.logger.Info("flight search complete",
		slog.String("origin", origin),
		slog.String("destination", destination),
		slog.Int("pairs", len(pairs)),
		slog.Int("offers", len(out)))
	return out, nil
}

func (c *SerpAPIClient) searchPair(ctx context.Context, from, to, day string) ([]plan.Offer, error) {
	params := url.Values{
		"engine":        {"google_flights"},
		"departure_id":  {from},
		"arrival_id":    {to},
		"outbound_date": {day},
		"currency":      {"CNY"},
		"hl":            {"zh-cn"},
		"api_key":       {c.key},
		"type":          {"2"},
		"stops":         {"0"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, flowerrors.Permanent(err, "build serpapi request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serpapi %s→%s: %w", from, to, err)
	}
	defer resp.Body.Close()

	if err := flowerrors.CheckResponse("serpapi", resp); err != nil {
		return nil, err
	}

	var body serpFlights
	if err := flowerrors.DecodeJSON(resp.Body, &body); err != nil {
		return nil, err
	}
	if body.Error != "" && len(body.Best)+len(body.Other) == 0 {
		// SerpApi reports "no results" through the error field.
		c.logger.Debug("serpapi returned no flights", slog.String("info", body.Error))
		return nil, nil
	}

	var out []plan.Offer
	for _, g := range append(body.Best, body.Other...) {
		if o, ok := flightOffer(g); ok {
			out = append(out, o)
		}
	}
	return out, nil
}

func flightOffer(g serpGroup) (plan.Offer, bool) {
	if len(g.Flights) != 1 || g.Price.value == nil {
		return plan.Offer{}, false
	}
	seg := g.Flights[0]
	dep, err := time.Parse(plan.MinuteLayout, seg.Departure.Time)
	if err != nil {
		return plan.Offer{}, false
	}
	arr, err := time.Parse(plan.MinuteLayout, seg.Arrival.Time)
	if err != nil {
		return plan.Offer{}, false
	}

	id := seg.FlightNumber
	if id == "" {
		id = "N/A"
	}
	return plan.Offer{
		Type:             plan.OfferFlight,
		ID:               id,
		DepartureDate:    dep.Format(plan.DateLayout),
		DepartureTime:    dep.Format("15:04"),
		ArrivalDate:      arr.Format(plan.DateLayout),
		ArrivalTime:      arr.Format("15:04"),
		DepartureHub:     seg.Departure.ID,
		ArrivalHub:       seg.Arrival.ID,
		DepartureHubName: AirportName(seg.Departure.ID),
		ArrivalHubName:   AirportName(seg.Arrival.ID),
		Duration:         strings.TrimSpace(g.TotalDuration.String()),
		Price:            g.Price.value,
	}, true
}

// dedupe drops repeated flights, keyed by number and departure time.
func dedupe(offers []plan.Offer) []plan.Offer {
	seen := make(map[string]bool, len(offers))
	out := make([]plan.Offer, 0, len(offers))
	for _, o := range offers {
		k := o.ID + "_" + o.DepartureTime
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, o)
	}
	return out
}
