// Package itinerary assembles the per-day plans into the final itinerary
// and renders it as a report.
package itinerary

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/randalmurphal/tripflow/internal/plan"
)

// ErrEmptyItinerary is returned by Merge when every day list is empty.
var ErrEmptyItinerary = errors.New("itinerary is empty")

// Merge concatenates the day lists, adds each fixed event that falls on a
// day present in them and is not already scheduled, and stable-sorts the
// result by start time. Timestamps are normalized to plan.Zone. Items with
// equal starts keep their emission order.
func Merge(days [][]plan.ItineraryItem, fixed []plan.FixedEvent) ([]plan.ItineraryItem, error) {
	var out []plan.ItineraryItem
	for _, day := range days {
		out = append(out, day...)
	}
	if len(out) == 0 {
		return nil, ErrEmptyItinerary
	}

	included := make(map[string]bool)
	for _, it := range out {
		included[dateKey(it.Start)] = true
	}
	for _, ev := range fixed {
		if !included[dateKey(ev.Start)] || scheduled(out, ev) {
			continue
		}
		out = append(out, FromFixedEvent(ev))
	}

	for i := range out {
		out[i].Start = normalize(out[i].Start)
		out[i].End = normalize(out[i].End)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out, nil
}

// FromFixedEvent schedules ev as a meeting item.
func FromFixedEvent(ev plan.FixedEvent) plan.ItineraryItem {
	return plan.ItineraryItem{
		Type:        plan.ItemMeeting,
		Description: ev.Name,
		Start:       ev.Start,
		End:         ev.End,
		Location:    ev.Location,
		Details:     map[string]any{"fixed": true},
	}
}

// OnDate returns the events starting on day, in start order.
func OnDate(events []plan.FixedEvent, day time.Time) []plan.FixedEvent {
	var out []plan.FixedEvent
	for _, ev := range events {
		if plan.SameDay(ev.Start, day) {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// SplitByDate partitions items into one list per day, dropping items that
// start on none of them.
func SplitByDate(items []plan.ItineraryItem, days ...time.Time) [][]plan.ItineraryItem {
	out := make([][]plan.ItineraryItem, len(days))
	for _, it := range items {
		for i, d := range days {
			if plan.SameDay(it.Start, d) {
				out[i] = append(out[i], it)
				break
			}
		}
	}
	return out
}

func scheduled(items []plan.ItineraryItem, ev plan.FixedEvent) bool {
	for _, it := range items {
		if it.Start.Equal(ev.Start) && strings.Contains(it.Description, ev.Name) {
			return true
		}
	}
	return false
}

func dateKey(t time.Time) string {
	return t.In(plan.Zone).Format(plan.DateLayout)
}

func normalize(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.In(plan.Zone)
}
