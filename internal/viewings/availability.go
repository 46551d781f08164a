package viewings

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/propchat/propchat/internal/property"
)

var resolverTracer = otel.Tracer("propchat.internal.viewings.availability")

// SlotSource is what the resolver needs from persistence: the overlap check
// and the generic fallback catalogue.
type SlotSource interface {
	IsRangeBooked(ctx context.Context, propertyID uuid.UUID, date time.Time, startTime, endTime string) (bool, error)
	ListTimeSlots(ctx context.Context) ([]TimeSlot, error)
}

// ResolverConfig tunes the availability window.
type ResolverConfig struct {
	// LookaheadDays is how many calendar days ahead to scan.
	LookaheadDays int
	// MaxSlots bounds the offered list so chat messages stay presentable.
	MaxSlots int
	// Granularity, when non-zero, subdivides owner rule windows into
	// fixed-size bookable increments. Zero keeps the whole window as one
	// atomic slot, which blocks the full range for a single viewer.
	Granularity time.Duration
	// Now overrides the clock in tests.
	Now func() time.Time
}

func (c ResolverConfig) withDefaults() ResolverConfig {
	if c.LookaheadDays <= 0 {
		c.LookaheadDays = 7
	}
	if c.MaxSlots <= 0 {
		c.MaxSlots = 15
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Resolver computes bookable candidate slots for a property over a lookahead
// window, from owner-declared weekly rules or the generic fallback catalogue.
type Resolver struct {
	slots SlotSource
	cfg   ResolverConfig
}

func NewResolver(slots SlotSource, cfg ResolverConfig) *Resolver {
	if slots == nil {
		panic("viewings: slot source required")
	}
	return &Resolver{slots: slots, cfg: cfg.withDefaults()}
}

// AvailabilityResult carries the candidate slots plus which path produced
// them. UsedFallback distinguishes "no owner rules, offered generic slots"
// from "owner rules exist but every window is booked"; the state machine
// must never treat the latter as an invitation to fall back.
type AvailabilityResult struct {
	Slots        []CandidateSlot
	UsedFallback bool
}

// AvailableSlots returns open candidate slots in chronological order,
// truncated to the configured maximum.
func (r *Resolver) AvailableSlots(ctx context.Context, prop *property.Property) (AvailabilityResult, error) {
	ctx, span := resolverTracer.Start(ctx, "viewings.available_slots")
	defer span.End()
	span.SetAttributes(attribute.String("propchat.property_id", prop.ID.String()))

	if prop.HasAvailabilityRules() {
		slots, err := r.fromOwnerRules(ctx, prop)
		if err != nil {
			return AvailabilityResult{}, err
		}
		return AvailabilityResult{Slots: slots}, nil
	}

	slots, err := r.fromGenericCatalogue(ctx, prop)
	if err != nil {
		return AvailabilityResult{}, err
	}
	return AvailabilityResult{Slots: slots, UsedFallback: true}, nil
}

func (r *Resolver) fromOwnerRules(ctx context.Context, prop *property.Property) ([]CandidateSlot, error) {
	today := dateOnly(r.cfg.Now())
	var out []CandidateSlot

	for day := 0; day < r.cfg.LookaheadDays; day++ {
		date := today.AddDate(0, 0, day+1)
		weekday := date.Weekday().String()

		var windows []window
		for _, rule := range prop.RulesForWeekday(weekday) {
			subdivided, err := r.subdivide(rule.StartTime, rule.EndTime)
			if err != nil {
				return nil, fmt.Errorf("viewings: availability rule for %s: %w", prop.ID, err)
			}
			windows = append(windows, subdivided...)
		}
		// Rules come back in owner-declaration order; the offered list must
		// be chronological within each date. Windows are normalized
		// zero-padded "HH:MM", so string order is time order.
		sort.Slice(windows, func(i, j int) bool { return windows[i].start < windows[j].start })

		var accepted []window
		for _, w := range windows {
			if overlapsAny(accepted, w) {
				continue
			}
			booked, err := r.slots.IsRangeBooked(ctx, prop.ID, date, w.start, w.end)
			if err != nil {
				return nil, err
			}
			if booked {
				continue
			}
			accepted = append(accepted, w)
			out = append(out, CandidateSlot{
				Date:      date,
				Label:     fmt.Sprintf("%s %s–%s", weekday, formatClock(w.start), formatClock(w.end)),
				StartTime: w.start,
				EndTime:   w.end,
			})
			if len(out) >= r.cfg.MaxSlots {
				return out, nil
			}
		}
	}
	return out, nil
}

// overlapsAny reports whether w intersects a window already offered for the
// same date, which happens when owner rules for a weekday overlap.
func overlapsAny(accepted []window, w window) bool {
	for _, a := range accepted {
		if rangesOverlap(a.start, a.end, w.start, w.end) {
			return true
		}
	}
	return false
}

func (r *Resolver) fromGenericCatalogue(ctx context.Context, prop *property.Property) ([]CandidateSlot, error) {
	catalogue, err := r.slots.ListTimeSlots(ctx)
	if err != nil {
		return nil, err
	}

	today := dateOnly(r.cfg.Now())
	var out []CandidateSlot

	for day := 0; day < r.cfg.LookaheadDays; day++ {
		date := today.AddDate(0, 0, day+1)
		if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		for _, slot := range catalogue {
			booked, err := r.slots.IsRangeBooked(ctx, prop.ID, date, slot.StartTime, slot.EndTime)
			if err != nil {
				return nil, err
			}
			if booked {
				continue
			}
			slotID := slot.ID
			out = append(out, CandidateSlot{
				Date:       date,
				Label:      slot.Label,
				StartTime:  slot.StartTime,
				EndTime:    slot.EndTime,
				TimeSlotID: &slotID,
			})
			if len(out) >= r.cfg.MaxSlots {
				return out, nil
			}
		}
	}
	return out, nil
}

type window struct {
	start, end string
}

// subdivide splits a rule window into granularity-sized increments, or keeps
// it whole when no granularity is configured. A trailing remainder shorter
// than the granularity is dropped.
func (r *Resolver) subdivide(startTime, endTime string) ([]window, error) {
	start, err := minuteOfDay(startTime)
	if err != nil {
		return nil, err
	}
	end, err := minuteOfDay(endTime)
	if err != nil {
		return nil, err
	}
	if end <= start {
		return nil, fmt.Errorf("viewings: window %s–%s is empty", startTime, endTime)
	}

	step := int(r.cfg.Granularity.Minutes())
	if step <= 0 {
		return []window{{start: clockFromMinutes(start), end: clockFromMinutes(end)}}, nil
	}

	var out []window
	for cur := start; cur+step <= end; cur += step {
		out = append(out, window{start: clockFromMinutes(cur), end: clockFromMinutes(cur + step)})
	}
	return out, nil
}
