package viewings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/propchat/propchat/internal/conversation"
)

// PendingKind tags the stage of the booking flow a buyer is in.
type PendingKind string

const (
	KindSlotSelection        PendingKind = "slot_selection"
	KindPreferenceCollection PendingKind = "preference_collection"
	KindCoordinating         PendingKind = "coordinating"
	KindAwaitingConfirmation PendingKind = "awaiting_buyer_confirmation"
)

// PendingRequest is the per-phone booking-flow state. Exactly one variant
// matching Kind is populated; the others stay nil, so each stage carries
// only the fields it needs.
type PendingRequest struct {
	Kind       PendingKind        `json:"kind"`
	PropertyID uuid.UUID          `json:"property_id"`
	CreatedAt  time.Time          `json:"created_at"`
	Slots      *SlotSelection     `json:"slots,omitempty"`
	Preference *PreferenceRequest `json:"preference,omitempty"`
	Coord      *Coordination      `json:"coordination,omitempty"`
	Proposal   *Proposal          `json:"proposal,omitempty"`
}

// SlotSelection holds the ordered slot list so a numeric reply maps
// positionally.
type SlotSelection struct {
	Offered []CandidateSlot `json:"offered"`
}

// PreferenceRequest holds the buyer's original free-text message while the
// preference parse is awaited.
type PreferenceRequest struct {
	OriginalMessage string `json:"original_message"`
}

// Coordination holds the parsed preferences relayed to the owner.
type Coordination struct {
	Preferences conversation.TimePreferences `json:"preferences"`
}

// Proposal is a single concrete viewing window awaiting buyer yes/no.
type Proposal struct {
	Date      time.Time `json:"date"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
}

// Describe renders the proposal for a chat message.
func (p Proposal) Describe() string {
	return fmt.Sprintf("%s, %s from %s to %s",
		p.Date.Weekday(), p.Date.Format("January 2"), formatClock(p.StartTime), formatClock(p.EndTime))
}

func (r *PendingRequest) validate() error {
	switch r.Kind {
	case KindSlotSelection:
		if r.Slots == nil {
			return errors.New("viewings: slot_selection request missing slots")
		}
	case KindPreferenceCollection:
		if r.Preference == nil {
			return errors.New("viewings: preference_collection request missing message")
		}
	case KindCoordinating:
		if r.Coord == nil {
			return errors.New("viewings: coordinating request missing preferences")
		}
	case KindAwaitingConfirmation:
		if r.Proposal == nil {
			return errors.New("viewings: awaiting confirmation request missing proposal")
		}
	default:
		return fmt.Errorf("viewings: unknown pending kind %q", r.Kind)
	}
	return nil
}

// PendingStore keeps at most one live booking-flow entry per phone number in
// Redis. SET with expiry gives supersede-on-write and TTL expiry atomically,
// so an expiring stale entry can never delete a newer one.
type PendingStore struct {
	redis *redis.Client
	ttl   time.Duration
}

const defaultPendingTTL = 20 * time.Minute

func NewPendingStore(client *redis.Client, ttl time.Duration) *PendingStore {
	if client == nil {
		panic("viewings: redis client required")
	}
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	return &PendingStore{redis: client, ttl: ttl}
}

func pendingKey(phone string) string {
	return fmt.Sprintf("pending_request:%s", phone)
}

// Set stores the pending request for a phone, superseding any prior entry
// and restarting the inactivity window.
func (s *PendingStore) Set(ctx context.Context, phone string, req *PendingRequest) error {
	if phone == "" {
		return errors.New("viewings: phone required")
	}
	if req == nil {
		return errors.New("viewings: pending request required")
	}
	if err := req.validate(); err != nil {
		return err
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("viewings: marshal pending request: %w", err)
	}
	if err := s.redis.Set(ctx, pendingKey(phone), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("viewings: persist pending request: %w", err)
	}
	return nil
}

// Get returns the live pending request for a phone, or nil when none exists
// or it has expired.
func (s *PendingStore) Get(ctx context.Context, phone string) (*PendingRequest, error) {
	data, err := s.redis.Get(ctx, pendingKey(phone)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("viewings: load pending request: %w", err)
	}
	var req PendingRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("viewings: decode pending request: %w", err)
	}
	return &req, nil
}

// Delete removes the pending request for a phone. Deleting a missing entry
// is a no-op.
func (s *PendingStore) Delete(ctx context.Context, phone string) error {
	if err := s.redis.Del(ctx, pendingKey(phone)).Err(); err != nil {
		return fmt.Errorf("viewings: delete pending request: %w", err)
	}
	return nil
}

// OwnerLink maps an owner/agent phone back to the buyer whose preferences
// were relayed to them, so a free-text owner reply (which carries no
// appointment ID yet) can be routed to the right coordination.
type OwnerLink struct {
	BuyerPhone string    `json:"buyer_phone"`
	PropertyID uuid.UUID `json:"property_id"`
}

func ownerLinkKey(phone string) string {
	return fmt.Sprintf("coordination_owner:%s", phone)
}

// SetOwnerLink stores the owner-side coordination pointer with the same TTL
// as the buyer's pending request.
func (s *PendingStore) SetOwnerLink(ctx context.Context, ownerPhone string, link *OwnerLink) error {
	if ownerPhone == "" {
		return errors.New("viewings: owner phone required")
	}
	if link == nil || link.BuyerPhone == "" {
		return errors.New("viewings: owner link requires buyer phone")
	}
	data, err := json.Marshal(link)
	if err != nil {
		return fmt.Errorf("viewings: marshal owner link: %w", err)
	}
	if err := s.redis.Set(ctx, ownerLinkKey(ownerPhone), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("viewings: persist owner link: %w", err)
	}
	return nil
}

// GetOwnerLink returns the coordination pointer for an owner phone, or nil.
func (s *PendingStore) GetOwnerLink(ctx context.Context, ownerPhone string) (*OwnerLink, error) {
	data, err := s.redis.Get(ctx, ownerLinkKey(ownerPhone)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("viewings: load owner link: %w", err)
	}
	var link OwnerLink
	if err := json.Unmarshal(data, &link); err != nil {
		return nil, fmt.Errorf("viewings: decode owner link: %w", err)
	}
	return &link, nil
}

// DeleteOwnerLink removes the owner-side coordination pointer.
func (s *PendingStore) DeleteOwnerLink(ctx context.Context, ownerPhone string) error {
	if err := s.redis.Del(ctx, ownerLinkKey(ownerPhone)).Err(); err != nil {
		return fmt.Errorf("viewings: delete owner link: %w", err)
	}
	return nil
}

// Property context outlives the booking flow itself: a buyer who asks about a
// listing and books "it" an hour later should not have to repeat the ref.
const propertyContextTTL = 24 * time.Hour

func propertyContextKey(phone string) string {
	return fmt.Sprintf("property_context:%s", phone)
}

// SetPropertyContext remembers the last property a buyer referenced.
func (s *PendingStore) SetPropertyContext(ctx context.Context, phone string, propertyID uuid.UUID) error {
	if err := s.redis.Set(ctx, propertyContextKey(phone), propertyID.String(), propertyContextTTL).Err(); err != nil {
		return fmt.Errorf("viewings: persist property context: %w", err)
	}
	return nil
}

// GetPropertyContext returns the last property the buyer referenced, or
// uuid.Nil when none is remembered.
func (s *PendingStore) GetPropertyContext(ctx context.Context, phone string) (uuid.UUID, error) {
	val, err := s.redis.Get(ctx, propertyContextKey(phone)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return uuid.Nil, nil
		}
		return uuid.Nil, fmt.Errorf("viewings: load property context: %w", err)
	}
	id, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, fmt.Errorf("viewings: decode property context: %w", err)
	}
	return id, nil
}
