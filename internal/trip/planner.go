// Package trip implements the business trip planning pipeline: fifteen
// stages over plan.State, wired into a resumable flowgraph, and a Service
// that drives sessions against a checkpoint store.
//
// Stages never call each other. Each one reads the state, calls its
// collaborators, and returns a plan.Patch naming the sub-records it
// replaces. Stages that wait for the traveller call flowgraph.RequestInput
// once, after all of their external calls.
package trip

import (
	"errors"
	"fmt"
	"time"

	"github.com/randalmurphal/tripflow/internal/commute"
	"github.com/randalmurphal/tripflow/internal/geo"
	"github.com/randalmurphal/tripflow/internal/itinerary"
	"github.com/randalmurphal/tripflow/internal/llm"
	"github.com/randalmurphal/tripflow/internal/plan"
	"github.com/randalmurphal/tripflow/internal/transport"
	"github.com/randalmurphal/tripflow/pkg/flowgraph"
	flowerrors "github.com/randalmurphal/tripflow/pkg/flowgraph/errors"
)

// Defaults for Planner.
const (
	DefaultMaxRefinements      = 5
	DefaultMeetingBuffer       = 20 * time.Minute
	DefaultRecommendationCount = 15
	DefaultResearchWorkers     = 4
)

// fallbackCompanies are offered when recommendations cannot be generated.
var fallbackCompanies = []string{"腾讯", "华为", "大疆", "比亚迪", "平安科技"}

// ErrMissingCollaborator is returned by NewPlanner when a required
// collaborator is nil.
var ErrMissingCollaborator = errors.New("trip: collaborator not configured")

// Collaborators are the external services the stages call.
type Collaborators struct {
	Extractor llm.Extractor
	Generator llm.TextGenerator
	Geocoder  geo.Geocoder
	Commute   *commute.Builder
	Flights   transport.FlightSearcher
	Trains    transport.TrainSearcher
}

func (c Collaborators) validate() error {
	var missing []string
	if c.Extractor == nil {
		missing = append(missing, "extractor")
	}
	if c.Generator == nil {
		missing = append(missing, "generator")
	}
	if c.Geocoder == nil {
		missing = append(missing, "geocoder")
	}
	if c.Commute == nil {
		missing = append(missing, "commute")
	}
	if c.Flights == nil {
		missing = append(missing, "flights")
	}
	if c.Trains == nil {
		missing = append(missing, "trains")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrMissingCollaborator, missing)
	}
	return nil
}

// Planner owns the stage functions and their collaborators.
type Planner struct {
	extractor llm.Extractor
	gen       llm.TextGenerator
	geocoder  geo.Geocoder
	commute   *commute.Builder
	flights   transport.FlightSearcher
	trains    transport.TrainSearcher
	renderer  *itinerary.Renderer

	maxRefinements  int
	buffer          time.Duration
	recommendations int
	researchWorkers int
	flightRetry     flowerrors.RetryConfig
}

// Option configures a Planner.
type Option func(*Planner)

// WithMaxRefinements caps the number of refinement renders per session.
// Once reached, the refine stage completes the session without asking.
func WithMaxRefinements(n int) Option {
	return func(p *Planner) {
		if n >= 0 {
			p.maxRefinements = n
		}
	}
}

// WithMeetingBuffer sets the slack required between reaching the city
// hub's exit and the first meeting, on top of the commute.
func WithMeetingBuffer(d time.Duration) Option {
	return func(p *Planner) { p.buffer = d }
}

// WithRecommendationCount sets how many companies automatic research
// proposes.
func WithRecommendationCount(n int) Option {
	return func(p *Planner) {
		if n > 0 {
			p.recommendations = n
		}
	}
}

// WithResearchWorkers bounds concurrent company address lookups.
func WithResearchWorkers(n int) Option {
	return func(p *Planner) {
		if n > 0 {
			p.researchWorkers = n
		}
	}
}

// WithFlightRetry sets the retry policy for flight searches.
func WithFlightRetry(cfg flowerrors.RetryConfig) Option {
	return func(p *Planner) { p.flightRetry = cfg }
}

// NewPlanner creates a Planner over c.
func NewPlanner(c Collaborators, opts ...Option) (*Planner, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	p := &Planner{
		extractor:       c.Extractor,
		gen:             c.Generator,
		geocoder:        c.Geocoder,
		commute:         c.Commute,
		flights:         c.Flights,
		trains:          c.Trains,
		renderer:        itinerary.NewRenderer(c.Generator),
		maxRefinements:  DefaultMaxRefinements,
		buffer:          DefaultMeetingBuffer,
		recommendations: DefaultRecommendationCount,
		researchWorkers: DefaultResearchWorkers,
		flightRetry:     flowerrors.DefaultRetry,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Stage failure kinds. The traveller-facing detail is always in
// Control.ErrorMessage.
var (
	ErrInvalidRequest = errors.New("invalid trip request")
	ErrNoTransport    = errors.New("no usable transport")
	ErrPlanning       = errors.New("itinerary planning failed")
	ErrResearch       = errors.New("company research failed")
)

// result is what every stage returns.
type result = flowgraph.Command[plan.Patch]

// fail records msg in Control and fails the stage with kind.
func fail(s plan.State, kind error, msg string) (result, error) {
	return flowgraph.Update(plan.Failure(s, msg)), fmt.Errorf("%w: %s", kind, msg)
}

// withError returns Control carrying msg, for stages that degrade instead
// of failing.
func withError(s plan.State, msg string) *plan.Control {
	c := s.Control
	c.ErrorMessage = msg
	return &c
}
