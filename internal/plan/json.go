package plan

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// wallTime encodes a time.Time as "YYYY-MM-DD HH:MM". Generated plans
// and extracted requests use that shape; an empty string is the zero time.
type wallTime time.Time

func (w wallTime) MarshalJSON() ([]byte, error) {
	t := time.Time(w)
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(FormatTime(t))
}

func (w *wallTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("time must be a string: %w", err)
	}
	if strings.TrimSpace(s) == "" {
		*w = wallTime(time.Time{})
		return nil
	}
	t, err := ParseTime(s)
	if err != nil {
		return err
	}
	*w = wallTime(t)
	return nil
}

type fixedEventJSON struct {
	Name     string   `json:"name"`
	Start    wallTime `json:"start_time"`
	End      wallTime `json:"end_time"`
	Location Location `json:"location"`
}

// MarshalJSON writes start and end as wall-clock minutes.
func (e FixedEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(fixedEventJSON{
		Name:     e.Name,
		Start:    wallTime(e.Start),
		End:      wallTime(e.End),
		Location: e.Location,
	})
}

// UnmarshalJSON accepts the forms ParseTime accepts.
func (e *FixedEvent) UnmarshalJSON(data []byte) error {
	var raw fixedEventJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = FixedEvent{
		Name:     raw.Name,
		Start:    time.Time(raw.Start),
		End:      time.Time(raw.End),
		Location: raw.Location,
	}
	return nil
}

type itemJSON struct {
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Start       wallTime       `json:"start_time"`
	End         wallTime       `json:"end_time"`
	Location    Location       `json:"location"`
	Details     map[string]any `json:"details,omitempty"`
}

// MarshalJSON writes start and end as wall-clock minutes.
func (it ItineraryItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(itemJSON{
		Type:        it.Type,
		Description: it.Description,
		Start:       wallTime(it.Start),
		End:         wallTime(it.End),
		Location:    it.Location,
		Details:     it.Details,
	})
}

// UnmarshalJSON accepts the forms ParseTime accepts.
func (it *ItineraryItem) UnmarshalJSON(data []byte) error {
	var raw itemJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*it = ItineraryItem{
		Type:        raw.Type,
		Description: raw.Description,
		Start:       time.Time(raw.Start),
		End:         time.Time(raw.End),
		Location:    raw.Location,
		Details:     raw.Details,
	}
	return nil
}

type locationJSON struct {
	City    string          `json:"city"`
	Address string          `json:"address"`
	Name    string          `json:"name"`
	Lat     json.RawMessage `json:"lat"`
	Lon     json.RawMessage `json:"lon"`
}

// UnmarshalJSON tolerates coordinates given as numbers, numeric strings,
// null, or placeholder text, which generated plans produce freely.
// Placeholders decode as absent coordinates.
func (l *Location) UnmarshalJSON(data []byte) error {
	var raw locationJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*l = Location{
		City:    nullText(raw.City),
		Address: nullText(raw.Address),
		Name:    nullText(raw.Name),
		Lat:     looseFloat(raw.Lat),
		Lon:     looseFloat(raw.Lon),
	}
	return nil
}

func nullText(s string) string {
	if s == "None" || s == "null" {
		return ""
	}
	return s
}

func looseFloat(raw json.RawMessage) *float64 {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &f
}
