package viewings

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propchat/propchat/internal/property"
)

type fakeSlotSource struct {
	booked    map[string]bool
	catalogue []TimeSlot
	err       error
}

func (f *fakeSlotSource) IsRangeBooked(_ context.Context, _ uuid.UUID, date time.Time, startTime, endTime string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	key := fmt.Sprintf("%s|%s-%s", date.Format("2006-01-02"), startTime, endTime)
	return f.booked[key], nil
}

func (f *fakeSlotSource) ListTimeSlots(_ context.Context) ([]TimeSlot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.catalogue, nil
}

// Wednesday, so the next Monday inside the lookahead is March 9.
var testNow = time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)

func testResolver(t *testing.T, source *fakeSlotSource, cfg ResolverConfig) *Resolver {
	t.Helper()
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return testNow }
	}
	return NewResolver(source, cfg)
}

func propertyWithRules(rules ...property.AvailabilityRule) *property.Property {
	return &property.Property{
		ID:           uuid.New(),
		Title:        "Sunny two-bed flat",
		Address:      "12 Harbour Road",
		City:         "Lisbon",
		OwnerID:      uuid.New(),
		Availability: rules,
	}
}

func TestAvailableSlotsFromOwnerRules(t *testing.T) {
	source := &fakeSlotSource{}
	resolver := testResolver(t, source, ResolverConfig{})
	prop := propertyWithRules(
		property.AvailabilityRule{Day: "Monday", StartTime: "10:00", EndTime: "12:00"},
	)

	result, err := resolver.AvailableSlots(context.Background(), prop)
	require.NoError(t, err)

	assert.False(t, result.UsedFallback)
	require.Len(t, result.Slots, 1)
	slot := result.Slots[0]
	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), slot.Date)
	assert.Equal(t, "10:00", slot.StartTime)
	assert.Equal(t, "12:00", slot.EndTime)
	assert.Nil(t, slot.TimeSlotID)
	assert.Contains(t, slot.Label, "Monday")
}

func TestAvailableSlotsSkipsBookedWindows(t *testing.T) {
	source := &fakeSlotSource{booked: map[string]bool{
		"2026-03-09|10:00-12:00": true,
	}}
	resolver := testResolver(t, source, ResolverConfig{})
	prop := propertyWithRules(
		property.AvailabilityRule{Day: "Monday", StartTime: "10:00", EndTime: "12:00"},
		property.AvailabilityRule{Day: "Monday", StartTime: "14:00", EndTime: "16:00"},
	)

	result, err := resolver.AvailableSlots(context.Background(), prop)
	require.NoError(t, err)

	require.Len(t, result.Slots, 1)
	assert.Equal(t, "14:00", result.Slots[0].StartTime)
}

func TestAvailableSlotsRulesFullyBooked(t *testing.T) {
	source := &fakeSlotSource{booked: map[string]bool{
		"2026-03-09|10:00-12:00": true,
	}}
	resolver := testResolver(t, source, ResolverConfig{})
	prop := propertyWithRules(
		property.AvailabilityRule{Day: "Monday", StartTime: "10:00", EndTime: "12:00"},
	)

	result, err := resolver.AvailableSlots(context.Background(), prop)
	require.NoError(t, err)

	// Rules exist but nothing is open. This must stay distinguishable from
	// the no-rules fallback so callers do not offer generic slots the owner
	// never agreed to.
	assert.Empty(t, result.Slots)
	assert.False(t, result.UsedFallback)
}

func TestAvailableSlotsFallbackCatalogue(t *testing.T) {
	slotID := uuid.New()
	source := &fakeSlotSource{catalogue: []TimeSlot{
		{ID: slotID, Label: "Morning (10 AM)", StartTime: "10:00", EndTime: "11:00"},
	}}
	resolver := testResolver(t, source, ResolverConfig{})
	prop := propertyWithRules() // no rules

	result, err := resolver.AvailableSlots(context.Background(), prop)
	require.NoError(t, err)

	assert.True(t, result.UsedFallback)
	// Lookahead covers Thu through Wed; Saturday and Sunday are skipped.
	require.Len(t, result.Slots, 5)
	for _, slot := range result.Slots {
		wd := slot.Date.Weekday()
		assert.NotEqual(t, time.Saturday, wd)
		assert.NotEqual(t, time.Sunday, wd)
		require.NotNil(t, slot.TimeSlotID)
		assert.Equal(t, slotID, *slot.TimeSlotID)
	}
}

func TestAvailableSlotsFallbackEmptyCatalogue(t *testing.T) {
	source := &fakeSlotSource{}
	resolver := testResolver(t, source, ResolverConfig{})
	prop := propertyWithRules()

	result, err := resolver.AvailableSlots(context.Background(), prop)
	require.NoError(t, err)

	assert.Empty(t, result.Slots)
	assert.True(t, result.UsedFallback)
}

func TestAvailableSlotsGranularity(t *testing.T) {
	source := &fakeSlotSource{}
	resolver := testResolver(t, source, ResolverConfig{Granularity: 30 * time.Minute})
	prop := propertyWithRules(
		property.AvailabilityRule{Day: "Monday", StartTime: "10:00", EndTime: "11:15"},
	)

	result, err := resolver.AvailableSlots(context.Background(), prop)
	require.NoError(t, err)

	// 10:00-10:30 and 10:30-11:00; the 15-minute remainder is dropped.
	require.Len(t, result.Slots, 2)
	assert.Equal(t, "10:00", result.Slots[0].StartTime)
	assert.Equal(t, "10:30", result.Slots[0].EndTime)
	assert.Equal(t, "10:30", result.Slots[1].StartTime)
	assert.Equal(t, "11:00", result.Slots[1].EndTime)
}

func TestAvailableSlotsTruncatesAtMax(t *testing.T) {
	source := &fakeSlotSource{}
	resolver := testResolver(t, source, ResolverConfig{MaxSlots: 3, Granularity: 30 * time.Minute})
	prop := propertyWithRules(
		property.AvailabilityRule{Day: "Monday", StartTime: "09:00", EndTime: "17:00"},
	)

	result, err := resolver.AvailableSlots(context.Background(), prop)
	require.NoError(t, err)
	assert.Len(t, result.Slots, 3)
}

func TestAvailableSlotsChronologicalOrder(t *testing.T) {
	source := &fakeSlotSource{}
	resolver := testResolver(t, source, ResolverConfig{})
	// Declaration order is deliberately scrambled, both across days and
	// within Monday.
	prop := propertyWithRules(
		property.AvailabilityRule{Day: "Thursday", StartTime: "10:00", EndTime: "11:00"},
		property.AvailabilityRule{Day: "Monday", StartTime: "15:00", EndTime: "16:00"},
		property.AvailabilityRule{Day: "Monday", StartTime: "09:00", EndTime: "10:00"},
	)

	result, err := resolver.AvailableSlots(context.Background(), prop)
	require.NoError(t, err)

	require.Len(t, result.Slots, 3)
	assert.Equal(t, time.Thursday, result.Slots[0].Date.Weekday())
	assert.True(t, result.Slots[0].Date.Before(result.Slots[1].Date))
	assert.Equal(t, result.Slots[1].Date, result.Slots[2].Date)
	assert.Equal(t, "09:00", result.Slots[1].StartTime)
	assert.Equal(t, "15:00", result.Slots[2].StartTime)
}

func TestAvailableSlotsOverlappingRulesCollapse(t *testing.T) {
	source := &fakeSlotSource{}
	resolver := testResolver(t, source, ResolverConfig{})
	prop := propertyWithRules(
		property.AvailabilityRule{Day: "Monday", StartTime: "11:00", EndTime: "13:00"},
		property.AvailabilityRule{Day: "Monday", StartTime: "10:00", EndTime: "12:00"},
	)

	result, err := resolver.AvailableSlots(context.Background(), prop)
	require.NoError(t, err)

	// The earlier window wins; offering both would let two buyers claim the
	// same 11:00-12:00 hour.
	require.Len(t, result.Slots, 1)
	assert.Equal(t, "10:00", result.Slots[0].StartTime)
	assert.Equal(t, "12:00", result.Slots[0].EndTime)
}

func TestRangesOverlap(t *testing.T) {
	tests := []struct {
		name                           string
		aStart, aEnd, bStart, bEnd     string
		want                           bool
	}{
		{"identical", "10:00", "11:00", "10:00", "11:00", true},
		{"partial", "10:00", "11:00", "10:30", "11:30", true},
		{"contained", "10:00", "12:00", "10:30", "11:00", true},
		{"back to back", "10:00", "11:00", "11:00", "12:00", false},
		{"disjoint", "10:00", "11:00", "12:00", "13:00", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rangesOverlap(tt.aStart, tt.aEnd, tt.bStart, tt.bEnd))
		})
	}
}

func TestRangesOverlapRandomizedAgainstAcceptedSet(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	var accepted [][2]int

	for i := 0; i < 500; i++ {
		start := rng.Intn(23 * 60)
		end := start + 15 + rng.Intn(120)
		if end > 24*60-1 {
			end = 24*60 - 1
		}

		want := false
		for _, a := range accepted {
			if start < a[1] && end > a[0] {
				want = true
				break
			}
		}

		got := overlapsAny(toWindows(accepted), window{
			start: clockFromMinutes(start),
			end:   clockFromMinutes(end),
		})
		require.Equal(t, want, got, "range %s-%s against %d accepted ranges",
			clockFromMinutes(start), clockFromMinutes(end), len(accepted))

		if !want {
			accepted = append(accepted, [2]int{start, end})
		}
	}
	require.NotEmpty(t, accepted)
}

func toWindows(ranges [][2]int) []window {
	out := make([]window, 0, len(ranges))
	for _, r := range ranges {
		out = append(out, window{start: clockFromMinutes(r[0]), end: clockFromMinutes(r[1])})
	}
	return out
}
