package trip

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/randalmurphal/tripflow/internal/plan"
	"github.com/randalmurphal/tripflow/pkg/flowgraph"
	flowerrors "github.com/randalmurphal/tripflow/pkg/flowgraph/errors"
)

// requestSchema is the shape the extractor is asked to produce.
const requestSchema = `{
  "origin_city": "出发城市，如 北京",
  "destination_city": "目的城市，如 深圳",
  "departure_date": "YYYY-MM-DD",
  "home_address": "出发地详细地址",
  "hotel_address": "目的地酒店地址",
  "fixed_events": [
    {
      "name": "事务名称",
      "start_time": "YYYY-MM-DD HH:MM",
      "end_time": "YYYY-MM-DD HH:MM",
      "location": {"city": "城市", "address": "详细地址", "name": "地点名称"}
    }
  ]
}`

// extractedRequest keeps times as text so malformed values are reported
// as input errors rather than extraction failures.
type extractedRequest struct {
	OriginCity      string           `json:"origin_city"`
	DestinationCity string           `json:"destination_city"`
	DepartureDate   string           `json:"departure_date"`
	HomeAddress     string           `json:"home_address"`
	HotelAddress    string           `json:"hotel_address"`
	FixedEvents     []extractedEvent `json:"fixed_events"`
}

type extractedEvent struct {
	Name      string        `json:"name"`
	StartTime string        `json:"start_time"`
	EndTime   string        `json:"end_time"`
	Location  plan.Location `json:"location"`
}

// missing lists the required fields left empty, in schema order.
func (r extractedRequest) missing() []string {
	var out []string
	for _, f := range []struct {
		name  string
		empty bool
	}{
		{"origin_city", strings.TrimSpace(r.OriginCity) == ""},
		{"destination_city", strings.TrimSpace(r.DestinationCity) == ""},
		{"departure_date", strings.TrimSpace(r.DepartureDate) == ""},
		{"home_address", strings.TrimSpace(r.HomeAddress) == ""},
		{"hotel_address", strings.TrimSpace(r.HotelAddress) == ""},
		{"fixed_events", len(r.FixedEvents) == 0},
	} {
		if f.empty {
			out = append(out, f.name)
		}
	}
	return out
}

// params validates times and converts to plan.Params.
func (r extractedRequest) params() (plan.Params, error) {
	p := plan.Params{
		OriginCity:      strings.TrimSpace(r.OriginCity),
		DestinationCity: strings.TrimSpace(r.DestinationCity),
		DepartureDate:   strings.TrimSpace(r.DepartureDate),
		HomeAddress:     strings.TrimSpace(r.HomeAddress),
		HotelAddress:    strings.TrimSpace(r.HotelAddress),
	}
	if _, err := time.ParseInLocation(plan.DateLayout, p.DepartureDate, plan.Zone); err != nil {
		return plan.Params{}, fmt.Errorf("出发日期 %q 不是 YYYY-MM-DD 格式", p.DepartureDate)
	}

	for _, ev := range r.FixedEvents {
		start, err := plan.ParseTime(ev.StartTime)
		if err != nil {
			return plan.Params{}, fmt.Errorf("事件 %s 开始时间: %w", ev.Name, err)
		}
		end, err := plan.ParseTime(ev.EndTime)
		if err != nil {
			return plan.Params{}, fmt.Errorf("事件 %s 结束时间: %w", ev.Name, err)
		}
		if !end.After(start) {
			return plan.Params{}, fmt.Errorf("事件结束时间必须晚于开始时间: %s", ev.Name)
		}
		loc := ev.Location
		if loc.City == "" {
			loc.City = p.DestinationCity
		}
		if loc.Name == "" {
			loc.Name = ev.Name
		}
		p.FixedEvents = append(p.FixedEvents, plan.FixedEvent{
			Name:     ev.Name,
			Start:    start,
			End:      end,
			Location: loc,
		})
	}
	return p, nil
}

// checkConstraints extracts the trip parameters from the raw request,
// validates them and seeds the home and hotel locations.
func (p *Planner) checkConstraints(ctx flowgraph.Context, s plan.State) (result, error) {
	raw := strings.TrimSpace(s.User.RawInput)
	if raw == "" {
		return fail(s, ErrInvalidRequest, "缺少行程描述")
	}

	var req extractedRequest
	if err := p.extractor.Extract(ctx, raw, requestSchema, &req); err != nil {
		if flowerrors.IsStructural(err) {
			return fail(s, ErrInvalidRequest, fmt.Sprintf("LLM 结构化解析失败: %v", err))
		}
		return fail(s, ErrInvalidRequest, fmt.Sprintf("LLM 服务调用失败: %v", err))
	}

	if missing := req.missing(); len(missing) > 0 {
		return fail(s, ErrInvalidRequest, "缺少关键输入信息: "+strings.Join(missing, ", "))
	}

	params, err := req.params()
	if err != nil {
		return fail(s, ErrInvalidRequest, fmt.Sprintf("时间格式或逻辑错误: %v", err))
	}

	ctx.Logger().Info("trip request accepted",
		slog.String("origin", params.OriginCity),
		slog.String("destination", params.DestinationCity),
		slog.String("departure_date", params.DepartureDate),
		slog.Int("fixed_events", len(params.FixedEvents)))

	return flowgraph.Update(plan.Patch{
		User: &plan.User{RawInput: s.User.RawInput, Params: params},
		Locations: &plan.Locations{
			Home:  plan.Location{City: params.OriginCity, Address: params.HomeAddress, Name: "Home"},
			Hotel: plan.Location{City: params.DestinationCity, Address: params.HotelAddress, Name: "Hotel"},
		},
		Control: &plan.Control{},
	}), nil
}

// geocodeLocations places home, hotel and every fixed event. Addresses
// that cannot be placed keep nil coordinates; commute lookups for them
// fall back later.
func (p *Planner) geocodeLocations(ctx flowgraph.Context, s plan.State) (result, error) {
	locs := s.Locations
	locs.Home = p.place(ctx, locs.Home)
	locs.Hotel = p.place(ctx, locs.Hotel)

	user := s.User
	events := make([]plan.FixedEvent, len(user.Params.FixedEvents))
	for i, ev := range user.Params.FixedEvents {
		ev.Location = p.place(ctx, ev.Location)
		events[i] = ev
	}
	user.Params.FixedEvents = events

	return flowgraph.Update(plan.Patch{
		User:      &user,
		Locations: &locs,
		Control:   plan.ClearError(s),
	}), nil
}

// place geocodes l unless it has no address or is already placed.
func (p *Planner) place(ctx flowgraph.Context, l plan.Location) plan.Location {
	if l.Address == "" || l.Geocoded() {
		return l
	}
	pt, err := p.geocoder.Geocode(ctx, l.Address, l.City)
	if err != nil {
		ctx.Logger().Warn("geocoding failed",
			slog.String("name", l.Name),
			slog.String("address", l.Address),
			slog.Any("error", err))
		return l
	}
	return l.WithCoordinates(pt.Lat, pt.Lon)
}
