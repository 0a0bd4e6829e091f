package trip

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/tripflow/internal/plan"
	"github.com/randalmurphal/tripflow/pkg/flowgraph"
)

func TestCustomNames(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"1: 华为, 腾讯", []string{"华为", "腾讯"}},
		{"1:华为，腾讯", []string{"华为", "腾讯"}},
		{"1 华为 腾讯", []string{"华为", "腾讯"}},
		{"1:  ,", nil},
		{"1", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, customNames(tt.in), tt.in)
	}
}

func TestSplitList(t *testing.T) {
	got := splitList("1. 腾讯\n2) 华为、大疆；比亚迪\n- \"腾讯\"\n* 平安科技,\n\n")
	assert.Equal(t, []string{"腾讯", "华为", "大疆", "比亚迪", "平安科技"}, got)
	assert.Empty(t, splitList(" \n、"))
}

func TestSelection(t *testing.T) {
	got, err := selection([]any{" 华为", "腾讯 ", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"华为", "腾讯"}, got)

	got, err = selection("华为，腾讯,大疆")
	require.NoError(t, err)
	assert.Equal(t, []string{"华为", "腾讯", "大疆"}, got)

	got, err = selection([]string{"比亚迪"})
	require.NoError(t, err)
	assert.Equal(t, []string{"比亚迪"}, got)

	for _, bad := range []any{nil, 3.0, []any{1.0}, "", []any{}} {
		_, err := selection(bad)
		assert.ErrorIs(t, err, flowgraph.ErrInvalidResume, "%v", bad)
	}
}

func TestOptionIndex(t *testing.T) {
	valid := []struct {
		in   any
		want int
	}{
		{"0", 0},
		{" 2 ", 2},
		{1, 1},
		{2.0, 2},
		{json.Number("1"), 1},
	}
	for _, tt := range valid {
		got, err := optionIndex(tt.in, 3)
		require.NoError(t, err, "%v", tt.in)
		assert.Equal(t, tt.want, got)
	}

	for _, bad := range []any{"3", "-1", "二", 0.5, json.Number("1.0"), true, nil} {
		_, err := optionIndex(bad, 3)
		assert.ErrorIs(t, err, flowgraph.ErrInvalidResume, "%v", bad)
	}
}

func TestIsYes(t *testing.T) {
	for _, v := range []any{true, "是", " YES ", "y", "True"} {
		assert.True(t, isYes(v), "%v", v)
	}
	for _, v := range []any{false, "否", "no", "", nil, 1.0, "好的"} {
		assert.False(t, isYes(v), "%v", v)
	}
}

func TestApprovalMessage(t *testing.T) {
	msg := approvalMessage(plan.Offer{Type: plan.OfferTrain, ID: "G79", DepartureTime: "07:00"})
	assert.Contains(t, msg, "推荐交通方案：Train G79")
	assert.Contains(t, msg, "出发: 07:00 (从 N/A)")
	assert.Contains(t, msg, "抵达: N/A (到 N/A)")
}

func TestExtractedRequest_Params(t *testing.T) {
	r := extractedRequest{
		OriginCity:      " 北京 ",
		DestinationCity: "深圳",
		DepartureDate:   "2026-03-10",
		HomeAddress:     "望京",
		HotelAddress:    "万丽酒店",
		FixedEvents: []extractedEvent{
			{Name: "客户会议", StartTime: "2026-03-10 16:00", EndTime: "2026-03-10 17:30"},
		},
	}
	assert.Empty(t, r.missing())

	p, err := r.params()
	require.NoError(t, err)
	assert.Equal(t, "北京", p.OriginCity)
	require.Len(t, p.FixedEvents, 1)
	ev := p.FixedEvents[0]
	assert.Equal(t, "深圳", ev.Location.City, "city defaults to the destination")
	assert.Equal(t, "客户会议", ev.Location.Name)
	assert.Equal(t, 90.0, ev.End.Sub(ev.Start).Minutes())

	r.FixedEvents[0].EndTime = "2026-03-10 15:00"
	_, err = r.params()
	assert.ErrorContains(t, err, "事件结束时间必须晚于开始时间: 客户会议")
}

func TestCompile(t *testing.T) {
	p := &Planner{}
	_, err := p.Compile()
	require.NoError(t, err)
}
