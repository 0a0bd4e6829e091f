package plan_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/tripflow/internal/plan"
)

func at(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := plan.ParseTime(s)
	require.NoError(t, err)
	return v
}

func TestMerge_ReplacesNamedSubRecordsOnly(t *testing.T) {
	price := 880.0
	s := plan.State{
		User:      plan.User{RawInput: "去深圳"},
		Locations: plan.Locations{Home: plan.Location{City: "上海"}},
		Transport: plan.Transport{
			FlightOptions: []plan.Offer{{Type: plan.OfferFlight, ID: "MU5331", Price: &price}},
			Proposed:      &plan.Offer{Type: plan.OfferFlight, ID: "MU5331"},
		},
		Control: plan.Control{ErrorMessage: "old"},
	}

	approved := true
	out := plan.Merge(s, plan.Patch{
		Transport: &plan.Transport{Approved: &approved},
	})

	// Transport is replaced wholesale: fields not re-supplied are gone.
	assert.Nil(t, out.Transport.FlightOptions)
	assert.Nil(t, out.Transport.Proposed)
	require.NotNil(t, out.Transport.Approved)
	assert.True(t, *out.Transport.Approved)

	// Other sub-records are untouched.
	assert.Equal(t, s.User, out.User)
	assert.Equal(t, s.Locations, out.Locations)
	assert.Equal(t, "old", out.Control.ErrorMessage)

	// The input state is not mutated.
	assert.NotNil(t, s.Transport.Proposed)
}

func TestMerge_EmptyPatch(t *testing.T) {
	s := plan.State{User: plan.User{RawInput: "x"}}
	assert.Equal(t, s, plan.Merge(s, plan.Patch{}))
	assert.True(t, plan.Patch{}.Empty())
	assert.False(t, plan.Patch{Control: &plan.Control{}}.Empty())
}

func TestFailure_KeepsRefinementInstruction(t *testing.T) {
	s := plan.State{Control: plan.Control{RefinementInstruction: "把第二天提前"}}
	p := plan.Failure(s, "boom")

	require.NotNil(t, p.Control)
	assert.Equal(t, "boom", p.Control.ErrorMessage)
	assert.Equal(t, "把第二天提前", p.Control.RefinementInstruction)
	assert.Nil(t, p.Locations)
}

func TestClearError(t *testing.T) {
	assert.Nil(t, plan.ClearError(plan.State{}))

	c := plan.ClearError(plan.State{Control: plan.Control{ErrorMessage: "x", RefinementInstruction: "y"}})
	require.NotNil(t, c)
	assert.Empty(t, c.ErrorMessage)
	assert.Equal(t, "y", c.RefinementInstruction)
}

func TestParseTime(t *testing.T) {
	want := time.Date(2025, 12, 16, 9, 30, 0, 0, plan.Zone)

	for _, in := range []string{
		"2025-12-16 09:30",
		" 2025-12-16 09:30:00 ",
		"2025-12-16T09:30",
		"2025-12-16T01:30:00Z",
		"2025-12-16T09:30:00+08:00",
	} {
		t.Run(in, func(t *testing.T) {
			got, err := plan.ParseTime(in)
			require.NoError(t, err)
			assert.True(t, want.Equal(got), "got %s", got)
		})
	}

	_, err := plan.ParseTime("12/16 9am")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "YYYY-MM-DD HH:MM")
}

func TestFormatTimeAndSameDay(t *testing.T) {
	ts := at(t, "2025-12-16 23:50")
	assert.Equal(t, "2025-12-16 23:50", plan.FormatTime(ts))
	assert.True(t, plan.SameDay(ts, at(t, "2025-12-16 00:00")))
	assert.False(t, plan.SameDay(ts, at(t, "2025-12-17 00:10")))
}

func TestParams_Departure(t *testing.T) {
	d, err := plan.Params{DepartureDate: "2025-12-16"}.Departure()
	require.NoError(t, err)
	assert.Equal(t, "2025-12-16 00:00", plan.FormatTime(d))

	_, err = plan.Params{DepartureDate: "next monday"}.Departure()
	assert.Error(t, err)
}

func TestItineraryItem_JSON(t *testing.T) {
	raw := `{
		"type": "🤝",
		"description": "客户会议",
		"start_time": "2025-12-16 14:00",
		"end_time": "2025-12-16 16:00",
		"location": {"city": "深圳", "address": "南山区科技园", "name": "None", "lat": "22.54", "lon": null},
		"details": {"notes": "带合同"}
	}`

	var item plan.ItineraryItem
	require.NoError(t, json.Unmarshal([]byte(raw), &item))

	assert.Equal(t, "客户会议", item.Description)
	assert.Equal(t, "2025-12-16 14:00", plan.FormatTime(item.Start))
	assert.Equal(t, 2*time.Hour, item.End.Sub(item.Start))
	assert.Empty(t, item.Location.Name)
	require.NotNil(t, item.Location.Lat)
	assert.InDelta(t, 22.54, *item.Location.Lat, 1e-9)
	assert.Nil(t, item.Location.Lon)
	assert.False(t, item.Location.Geocoded())

	out, err := json.Marshal(item)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"start_time":"2025-12-16 14:00"`)

	var back plan.ItineraryItem
	require.NoError(t, json.Unmarshal(out, &back))
	assert.True(t, item.Start.Equal(back.Start))
}

func TestItineraryItem_JSONRejectsBadTime(t *testing.T) {
	var item plan.ItineraryItem
	err := json.Unmarshal([]byte(`{"start_time": "tomorrow"}`), &item)
	assert.Error(t, err)

	err = json.Unmarshal([]byte(`{"start_time": 1700000000}`), &item)
	assert.Error(t, err)
}

func TestState_RoundTrip(t *testing.T) {
	lat, lon := 31.23, 121.47
	s := plan.State{
		User: plan.User{Params: plan.Params{
			OriginCity: "上海",
			FixedEvents: []plan.FixedEvent{{
				Name:  "技术交流",
				Start: at(t, "2025-12-16 10:00"),
				End:   at(t, "2025-12-16 12:00"),
			}},
		}},
		Locations: plan.Locations{Home: plan.Location{City: "上海"}.WithCoordinates(lat, lon)},
		Itinerary: plan.Itinerary{Report: "| Day 1 |", Refinements: 2},
	}

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var back plan.State
	require.NoError(t, json.Unmarshal(data, &back))

	assert.True(t, s.User.Params.FixedEvents[0].Start.Equal(back.User.Params.FixedEvents[0].Start))
	assert.True(t, back.Locations.Home.Geocoded())
	assert.Equal(t, 2, back.Itinerary.Refinements)
}

func TestTransportOptionsAndOffer(t *testing.T) {
	tr := plan.Transport{
		FlightOptions: []plan.Offer{{Type: plan.OfferFlight, ID: "CZ3539"}},
		TrainOptions:  []plan.Offer{{Type: plan.OfferTrain, ID: "G101"}},
	}
	opts := tr.Options()
	require.Len(t, opts, 2)
	assert.Equal(t, "Flight:CZ3539", opts[0].Key())
	assert.Equal(t, "Train:G101", opts[1].Key())

	o := plan.Offer{DepartureDate: "2025-12-16", DepartureTime: "07:30", ArrivalDate: "2025-12-16", ArrivalTime: "13:30"}
	dep, err := o.Departs()
	require.NoError(t, err)
	arr, err := o.Arrives()
	require.NoError(t, err)
	assert.Equal(t, 6*time.Hour, arr.Sub(dep))
}

func TestDecodePrompt(t *testing.T) {
	p := plan.Prompt{Type: plan.PromptSelectTransport, Message: "请选择", Options: []string{"[0] a", "[1] b"}}
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"select_transport","message":"请选择","options":["[0] a","[1] b"]}`, string(raw))

	back, err := plan.DecodePrompt(raw)
	require.NoError(t, err)
	assert.Equal(t, p, back)

	_, err = plan.DecodePrompt(json.RawMessage(`{"message":"x"}`))
	assert.Error(t, err)
}
