package property

import (
	"strings"

	"github.com/google/uuid"
)

// AvailabilityRule is an owner-declared weekly-recurring viewing window.
// Times are "HH:MM" in the property's local time.
type AvailabilityRule struct {
	Day       string `json:"day"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// Property is the read-only view of a listing the viewing coordinator needs.
// It is owned by the property-management subsystem and never mutated here.
type Property struct {
	ID           uuid.UUID
	Title        string
	Address      string
	City         string
	OwnerID      uuid.UUID
	AgentID      *uuid.UUID
	Availability []AvailabilityRule
}

// HasAvailabilityRules reports whether the owner declared any weekly windows.
// When rules exist, the resolver never falls back to the generic catalogue,
// even if every window turns out to be booked.
func (p *Property) HasAvailabilityRules() bool {
	return len(p.Availability) > 0
}

// ContactID returns who should be notified about viewing requests: the agent
// when one is assigned, otherwise the owner.
func (p *Property) ContactID() uuid.UUID {
	if p.AgentID != nil && *p.AgentID != uuid.Nil {
		return *p.AgentID
	}
	return p.OwnerID
}

// RulesForWeekday returns the rules whose day matches the given weekday name.
func (p *Property) RulesForWeekday(weekday string) []AvailabilityRule {
	var out []AvailabilityRule
	for _, rule := range p.Availability {
		if strings.EqualFold(strings.TrimSpace(rule.Day), weekday) {
			out = append(out, rule)
		}
	}
	return out
}
