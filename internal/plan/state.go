// Package plan defines the trip planning state threaded through every stage.
//
// State is made of six disjoint sub-records. Stages never mutate State;
// they return a Patch naming the sub-records they replace, and Merge applies
// it by wholesale replacement. A stage that touches Transport must re-supply
// every Transport field it wants preserved.
package plan

import (
	"fmt"
	"time"
)

// State is the aggregate persisted after every stage.
type State struct {
	User      User      `json:"user"`
	Locations Locations `json:"locations"`
	Transport Transport `json:"transport"`
	Companies Companies `json:"companies"`
	Itinerary Itinerary `json:"itinerary"`
	Control   Control   `json:"control"`
}

// User holds the request as submitted and as extracted.
type User struct {
	RawInput string `json:"raw_input"`
	Params   Params `json:"parsed_params"`
}

// Params are the structured trip parameters.
type Params struct {
	OriginCity      string       `json:"origin_city"`
	DestinationCity string       `json:"destination_city"`
	DepartureDate   string       `json:"departure_date"` // YYYY-MM-DD
	HomeAddress     string       `json:"home_address"`
	HotelAddress    string       `json:"hotel_address"`
	FixedEvents     []FixedEvent `json:"fixed_events"`
}

// Departure parses DepartureDate in the planning zone.
func (p Params) Departure() (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, p.DepartureDate, Zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("departure date %q: %w", p.DepartureDate, err)
	}
	return d, nil
}

// FixedEvent is an immovable activity. End is always after Start.
type FixedEvent struct {
	Name     string    `json:"name"`
	Start    time.Time `json:"start_time"`
	End      time.Time `json:"end_time"`
	Location Location  `json:"location"`
}

// Location is an address with optional coordinates. Lat and Lon are nil
// until geocoded.
type Location struct {
	City    string   `json:"city"`
	Address string   `json:"address"`
	Name    string   `json:"name"`
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
}

// Geocoded reports whether both coordinates are known.
func (l Location) Geocoded() bool {
	return l.Lat != nil && l.Lon != nil
}

// WithCoordinates returns a copy of l placed at lat, lon.
func (l Location) WithCoordinates(lat, lon float64) Location {
	l.Lat = &lat
	l.Lon = &lon
	return l
}

// Locations are the trip's two anchors.
type Locations struct {
	Home  Location `json:"home"`
	Hotel Location `json:"hotel"`
}

// Transport is the cross-city leg sub-record.
type Transport struct {
	FlightOptions []Offer `json:"flight_options"`
	TrainOptions  []Offer `json:"train_options"`
	// Proposed is the machine choice awaiting approval.
	Proposed *Offer `json:"llm_selected,omitempty"`
	// Chosen is the offer the traveller approved or picked by hand.
	Chosen *Offer `json:"selected_option,omitempty"`
	// Selected is the chosen leg as an itinerary item, set by day planning.
	Selected *ItineraryItem `json:"selected,omitempty"`
	Approved *bool          `json:"approved,omitempty"`
}

// Options returns flight options followed by train options.
func (t Transport) Options() []Offer {
	out := make([]Offer, 0, len(t.FlightOptions)+len(t.TrainOptions))
	out = append(out, t.FlightOptions...)
	return append(out, t.TrainOptions...)
}

// Offer is one bookable flight or train.
type Offer struct {
	Type             string   `json:"type"` // Flight or Train
	ID               string   `json:"id"`
	DepartureDate    string   `json:"departure_date"`
	DepartureTime    string   `json:"departure_time"`
	ArrivalDate      string   `json:"arrival_date"`
	ArrivalTime      string   `json:"arrival_time"`
	DepartureHub     string   `json:"departure_hub"`
	ArrivalHub       string   `json:"arrival_hub"`
	DepartureHubName string   `json:"departure_hub_name"`
	ArrivalHubName   string   `json:"arrival_hub_name"`
	Duration         string   `json:"duration"`
	Price            *float64 `json:"price"`
}

// Offer types.
const (
	OfferFlight = "Flight"
	OfferTrain  = "Train"
)

// Departs returns the departure instant.
func (o Offer) Departs() (time.Time, error) {
	return ParseTime(o.DepartureDate + " " + o.DepartureTime)
}

// Arrives returns the arrival instant.
func (o Offer) Arrives() (time.Time, error) {
	return ParseTime(o.ArrivalDate + " " + o.ArrivalTime)
}

// Key identifies an offer across searches.
func (o Offer) Key() string {
	return o.Type + ":" + o.ID
}

// Company is a research target.
type Company struct {
	Name           string   `json:"name"`
	Address        string   `json:"address"`
	DisplayAddress string   `json:"display_address,omitempty"`
	Lat            *float64 `json:"lat"`
	Lon            *float64 `json:"lon"`
	Valid          bool     `json:"is_valid"`
}

// Location returns the company as a Location in city.
func (c Company) Location(city string) Location {
	return Location{City: city, Address: c.Address, Name: c.Name, Lat: c.Lat, Lon: c.Lon}
}

// Companies is the research sub-record.
type Companies struct {
	TargetNames []string  `json:"target_names"`
	Candidates  []Company `json:"candidates"`
}

// Itinerary holds the per-day plans, the merged plan and its report.
type Itinerary struct {
	FixedEvents []FixedEvent    `json:"fixed_events"`
	Day1        []ItineraryItem `json:"day1_plan"`
	Day2        []ItineraryItem `json:"day2_plan"`
	Day3        []ItineraryItem `json:"day3_plan"`
	Final       []ItineraryItem `json:"final_itinerary"`
	Report      string          `json:"final_report"`
	// Refinements counts renders driven by a refinement instruction.
	Refinements int `json:"refinements"`
}

// Days returns the per-day lists in order.
func (it Itinerary) Days() [][]ItineraryItem {
	return [][]ItineraryItem{it.Day1, it.Day2, it.Day3}
}

// ItineraryItem is one scheduled activity.
type ItineraryItem struct {
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Start       time.Time      `json:"start_time"`
	End         time.Time      `json:"end_time"`
	Location    Location       `json:"location"`
	Details     map[string]any `json:"details,omitempty"`
}

// Item type markers used by the generated plans and the report.
const (
	ItemFlight  = "✈️"
	ItemTrain   = "🚄"
	ItemCommute = "🚗"
	ItemVisit   = "🏢"
	ItemMeeting = "🤝"
	ItemHotel   = "🏨"
	ItemOther   = "📍"
)

// Control carries the last error and a pending refinement instruction.
type Control struct {
	ErrorMessage          string `json:"error_message,omitempty"`
	RefinementInstruction string `json:"refinement_instruction,omitempty"`
}
