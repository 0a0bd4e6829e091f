package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/randalmurphal/tripflow/internal/plan"
	flowerrors "github.com/randalmurphal/tripflow/pkg/flowgraph/errors"
)

// DefaultJuheURL is the Juhe train query endpoint.
const DefaultJuheURL = "https://apis.juhe.cn/fapigw/train/query"

// secondClass is the seat whose fare is quoted.
const secondClass = "二等座"

// JuheClient searches high-speed trains through Juhe. Without an API key
// it answers with a single placeholder train so that planning can proceed
// offline.
type JuheClient struct {
	key        string
	endpoint   string
	filter     string
	httpClient *http.Client
	logger     *slog.Logger
}

// JuheOption configures a JuheClient.
type JuheOption func(*JuheClient)

// WithJuheEndpoint overrides the query endpoint.
func WithJuheEndpoint(u string) JuheOption {
	return func(c *JuheClient) { c.endpoint = u }
}

// WithJuheHTTPClient replaces the HTTP client.
func WithJuheHTTPClient(hc *http.Client) JuheOption {
	return func(c *JuheClient) { c.httpClient = hc }
}

// WithTrainFilter sets the train class filter, "G" by default.
func WithTrainFilter(f string) JuheOption {
	return func(c *JuheClient) { c.filter = f }
}

// WithJuheLogger sets the logger.
func WithJuheLogger(l *slog.Logger) JuheOption {
	return func(c *JuheClient) { c.logger = l }
}

// NewJuheClient creates a train searcher.
func NewJuheClient(key string, opts ...JuheOption) *JuheClient {
	c := &JuheClient{
		key:        key,
		endpoint:   DefaultJuheURL,
		filter:     "G",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type juheResponse struct {
	ErrorCode int         `json:"error_code"`
	Reason    string      `json:"reason"`
	Result    []juheTrain `json:"result"`
}

type juheTrain struct {
	TrainNo          string      `json:"train_no"`
	DepartureStation string      `json:"departure_station"`
	ArrivalStation   string      `json:"arrival_station"`
	DepartureTime    string      `json:"departure_time"`
	ArrivalTime      string      `json:"arrival_time"`
	Duration         string      `json:"duration"`
	Prices           []juhePrice `json:"prices"`
}

type juhePrice struct {
	SeatName string `json:"seat_name"`
	Price    price  `json:"price"`
}

// SearchTrains returns the trains departing on date. Arrivals earlier than
// the departure clock time are taken to be the next day. The quoted price
// is the second-class fare, 0 when none is listed.
func (c *JuheClient) SearchTrains(ctx context.Context, origin, destination, date string) ([]plan.Offer, error) {
	day, err := NormalizeDate(date)
	if err != nil {
		return nil, err
	}
	if c.key == "" {
		c.logger.Warn("train api key not configured, using placeholder train")
		return []plan.Offer{placeholderTrain(origin, destination, day)}, nil
	}

	params := url.Values{
		"key":               {c.key},
		"search_type":       {"1"},
		"departure_station": {origin},
		"arrival_station":   {destination},
		"date":              {day},
		"enable_booking":    {"1"},
		"filter":            {c.filter},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, flowerrors.Permanent(err, "build juhe request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("juhe train query: %w", err)
	}
	defer resp.Body.Close()

	if err := flowerrors.CheckResponse("juhe", resp); err != nil {
		return nil, err
	}

	var body juheResponse
	if err := flowerrors.DecodeJSON(resp.Body, &body); err != nil {
		return nil, err
	}
	if body.ErrorCode != 0 {
		return nil, flowerrors.Permanent(fmt.Errorf("juhe error %d: %s", body.ErrorCode, body.Reason), "juhe train query")
	}

	out := make([]plan.Offer, 0, len(body.Result))
	for _, t := range body.Result {
		o, err := trainOffer(day, t)
		if err != nil {
			c.logger.Warn("skipping unreadable train", slog.String("train", t.TrainNo), slog.Any("error", err))
			continue
		}
		out = append(out, o)
	}

	c.logger.Info("train search complete",
		slog.String("origin", origin),
		slog.String("destination", destination),
		slog.Int("offers", len(out)))
	return out, nil
}

func trainOffer(day string, t juheTrain) (plan.Offer, error) {
	dep, err := time.Parse(plan.MinuteLayout, day+" "+t.DepartureTime)
	if err != nil {
		return plan.Offer{}, err
	}
	arr, err := time.Parse(plan.MinuteLayout, day+" "+t.ArrivalTime)
	if err != nil {
		return plan.Offer{}, err
	}
	if arr.Before(dep) {
		arr = arr.AddDate(0, 0, 1)
	}

	fare := 0.0
	for _, p := range t.Prices {
		if p.SeatName == secondClass && p.Price.value != nil {
			fare = *p.Price.value
			break
		}
	}

	return plan.Offer{
		Type:             plan.OfferTrain,
		ID:               t.TrainNo,
		DepartureDate:    dep.Format(plan.DateLayout),
		DepartureTime:    dep.Format("15:04"),
		ArrivalDate:      arr.Format(plan.DateLayout),
		ArrivalTime:      arr.Format("15:04"),
		DepartureHub:     t.DepartureStation,
		ArrivalHub:       t.ArrivalStation,
		DepartureHubName: t.DepartureStation,
		ArrivalHubName:   t.ArrivalStation,
		Duration:         t.Duration,
		Price:            &fare,
	}, nil
}

func placeholderTrain(origin, destination, day string) plan.Offer {
	fare := 600.0
	return plan.Offer{
		Type:             plan.OfferTrain,
		ID:               "G101",
		DepartureDate:    day,
		DepartureTime:    "07:30",
		ArrivalDate:      day,
		ArrivalTime:      "13:30",
		DepartureHub:     origin + "站",
		ArrivalHub:       destination + "站",
		DepartureHubName: origin + "站",
		ArrivalHubName:   destination + "站",
		Duration:         "6h00m",
		Price:            &fare,
	}
}
