package fakes

import (
	"context"
	"sync"

	"github.com/randalmurphal/tripflow/internal/plan"
)

// Searcher answers flight or train searches with fixed offers. Errs are
// returned one per call, in order, before Offers is served.
type Searcher struct {
	mu     sync.Mutex
	Offers []plan.Offer
	Errs   []error
	calls  int
}

// NewSearcher creates a Searcher returning offers.
func NewSearcher(offers ...plan.Offer) *Searcher {
	return &Searcher{Offers: offers}
}

// FailingFirst queues errs ahead of the offers.
func (s *Searcher) FailingFirst(errs ...error) *Searcher {
	s.Errs = append(s.Errs, errs...)
	return s
}

// SearchFlights implements transport.FlightSearcher.
func (s *Searcher) SearchFlights(ctx context.Context, _, _, _ string) ([]plan.Offer, error) {
	return s.search(ctx)
}

// SearchTrains implements transport.TrainSearcher.
func (s *Searcher) SearchTrains(ctx context.Context, _, _, _ string) ([]plan.Offer, error) {
	return s.search(ctx)
}

// CallCount returns the number of searches made.
func (s *Searcher) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *Searcher) search(ctx context.Context) ([]plan.Offer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.Errs) > 0 {
		err := s.Errs[0]
		s.Errs = s.Errs[1:]
		return nil, err
	}
	out := make([]plan.Offer, len(s.Offers))
	copy(out, s.Offers)
	return out, nil
}

// Offer builds a priced offer for tests.
func Offer(typ, id, date, dep, arr, depHub, arrHub string, price float64) plan.Offer {
	return plan.Offer{
		Type:             typ,
		ID:               id,
		DepartureDate:    date,
		DepartureTime:    dep,
		ArrivalDate:      date,
		ArrivalTime:      arr,
		DepartureHub:     depHub,
		ArrivalHub:       arrHub,
		DepartureHubName: depHub,
		ArrivalHubName:   arrHub,
		Duration:         "",
		Price:            &price,
	}
}
