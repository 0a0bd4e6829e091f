package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	flowerrors "github.com/randalmurphal/tripflow/pkg/flowgraph/errors"
)

// DefaultAmapBaseURL is the public Amap web service endpoint.
const DefaultAmapBaseURL = "https://restapi.amap.com"

// ErrMissingKey is returned by every call when no API key is configured.
var ErrMissingKey = errors.New("amap: api key not configured")

// AmapClient implements Geocoder and DriveTimer against the Amap REST API.
//
// Geocode results are cached and geocoding retries transient failures
// itself. DriveTime makes exactly one request; callers that need retries
// and throttling wrap it (see the commute package).
type AmapClient struct {
	key        string
	baseURL    string
	httpClient *http.Client
	retry      flowerrors.RetryConfig
	cache      *lru.Cache[string, Point]
	logger     *slog.Logger
}

// AmapOption configures an AmapClient.
type AmapOption func(*AmapClient)

// WithBaseURL points the client at another host, such as a test server.
func WithBaseURL(u string) AmapOption {
	return func(c *AmapClient) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) AmapOption {
	return func(c *AmapClient) { c.httpClient = hc }
}

// WithGeocodeRetry sets the retry policy for geocoding.
func WithGeocodeRetry(cfg flowerrors.RetryConfig) AmapOption {
	return func(c *AmapClient) { c.retry = cfg }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) AmapOption {
	return func(c *AmapClient) { c.logger = l }
}

// NewAmapClient creates a client. cacheSize bounds the geocode cache.
func NewAmapClient(key string, cacheSize int, opts ...AmapOption) (*AmapClient, error) {
	if cacheSize <= 0 {
		cacheSize = 512
	}
	cache, err := lru.New[string, Point](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create geocode cache: %w", err)
	}
	c := &AmapClient{
		key:        key,
		baseURL:    DefaultAmapBaseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		retry:      flowerrors.ProviderRetry,
		cache:      cache,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type amapGeocodeResponse struct {
	Status   string `json:"status"`
	Info     string `json:"info"`
	Count    string `json:"count"`
	Geocodes []struct {
		Location json.RawMessage `json:"location"`
	} `json:"geocodes"`
}

// Geocode resolves address in city. ErrNotFound means Amap answered with no
// match.
func (c *AmapClient) Geocode(ctx context.Context, address, city string) (*Point, error) {
	if c.key == "" {
		return nil, ErrMissingKey
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("geocode: %w: empty address", ErrNotFound)
	}

	cacheKey := city + "|" + address
	if p, ok := c.cache.Get(cacheKey); ok {
		return &p, nil
	}

	params := url.Values{
		"key":     {c.key},
		"address": {address},
		"city":    {city},
		"output":  {"json"},
	}

	cfg := c.retry.With(flowerrors.WithOnRetry(func(attempt int, err error) {
		c.logger.Warn("geocode retry", "address", address, "city", city, "attempt", attempt, "error", err)
	}))
	result := flowerrors.WithRetryContext(ctx, cfg, func(ctx context.Context) (Point, error) {
		var body amapGeocodeResponse
		if err := c.get(ctx, "/v3/geocode/geo", params, &body); err != nil {
			return Point{}, err
		}
		if err := statusError(body.Status, body.Info); err != nil {
			return Point{}, err
		}
		if n, _ := strconv.Atoi(body.Count); n == 0 || len(body.Geocodes) == 0 {
			return Point{}, flowerrors.Permanent(ErrNotFound, address)
		}
		var loc string
		if err := json.Unmarshal(body.Geocodes[0].Location, &loc); err != nil || loc == "" {
			return Point{}, &flowerrors.ValidationError{Field: "location", Message: "empty in geocode response"}
		}
		p, err := ParsePoint(loc)
		if err != nil {
			return Point{}, &flowerrors.ValidationError{Field: "location", Message: err.Error()}
		}
		return p, nil
	})
	if result.Err != nil {
		return nil, fmt.Errorf("geocode %q in %s: %w", address, city, result.Err)
	}

	c.cache.Add(cacheKey, result.Value)
	return &result.Value, nil
}

type amapRouteResponse struct {
	Status string `json:"status"`
	Info   string `json:"info"`
	Count  string `json:"count"`
	Route  struct {
		Paths []struct {
			Duration string `json:"duration"`
		} `json:"paths"`
	} `json:"route"`
}

// DriveTime returns the fastest driving duration from one point to another,
// in minutes rounded to one decimal.
func (c *AmapClient) DriveTime(ctx context.Context, from, to Point) (float64, error) {
	if c.key == "" {
		return 0, ErrMissingKey
	}
	params := url.Values{
		"key":         {c.key},
		"origin":      {from.String()},
		"destination": {to.String()},
		"output":      {"json"},
		"extensions":  {"base"},
		"strategy":    {"0"},
	}

	var body amapRouteResponse
	if err := c.get(ctx, "/v3/direction/driving", params, &body); err != nil {
		return 0, err
	}
	if err := statusError(body.Status, body.Info); err != nil {
		return 0, err
	}
	if n, _ := strconv.Atoi(body.Count); n == 0 || len(body.Route.Paths) == 0 {
		return 0, flowerrors.Permanent(errors.New("no driving route"), from.String()+" -> "+to.String())
	}
	seconds, err := strconv.Atoi(body.Route.Paths[0].Duration)
	if err != nil {
		return 0, &flowerrors.ValidationError{Field: "duration", Message: err.Error()}
	}
	return math.Round(float64(seconds)/60*10) / 10, nil
}

func (c *AmapClient) get(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return flowerrors.Permanent(err, "build amap request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("amap %s: %w", path, err)
	}
	defer resp.Body.Close()

	if err := flowerrors.CheckResponse(path, resp); err != nil {
		return err
	}
	return flowerrors.DecodeJSON(resp.Body, out)
}

// statusError maps Amap's in-body status to an error. QPS and quota
// refusals are transient; every other refusal is permanent.
func statusError(status, info string) error {
	if status == "1" {
		return nil
	}
	upper := strings.ToUpper(info)
	if strings.Contains(upper, "LIMIT") || strings.Contains(upper, "QUOTA") {
		return &flowerrors.RateLimitError{Provider: "amap", Info: info}
	}
	return flowerrors.Permanent(fmt.Errorf("amap refused request: %s", info), "amap status "+status)
}
