package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propchat/propchat/internal/conversation"
	"github.com/propchat/propchat/internal/property"
	"github.com/propchat/propchat/internal/users"
	"github.com/propchat/propchat/internal/viewings"
)

type stubDirectory struct {
	byPhone map[string]*users.User
}

func (s *stubDirectory) FindByPhone(_ context.Context, phone string) (*users.User, error) {
	if u, ok := s.byPhone[phone]; ok {
		return u, nil
	}
	return nil, users.ErrNotFound
}

type stubProperties struct {
	byRef map[string]*property.Property
	byID  map[uuid.UUID]*property.Property
}

func (s *stubProperties) FindByRef(_ context.Context, ref string) (*property.Property, error) {
	if p, ok := s.byRef[strings.ToLower(ref)]; ok {
		return p, nil
	}
	return nil, property.ErrNotFound
}

func (s *stubProperties) GetWithDetails(_ context.Context, id uuid.UUID) (*property.Property, error) {
	if p, ok := s.byID[id]; ok {
		return p, nil
	}
	return nil, property.ErrNotFound
}

// stubFlow records which stage consumed the message.
type stubFlow struct {
	slotReplies     []viewings.Reply
	prefReplies     []viewings.Reply
	coordReplies    []viewings.Reply
	ownerReplies    []viewings.Reply
	interestReplies []viewings.Reply

	interestProp uuid.UUID
	intent       conversation.IntentResult
}

func (s *stubFlow) IsAppointmentRequest(_ context.Context, _ string) conversation.IntentResult {
	return s.intent
}

func (s *stubFlow) HandleViewingInterest(_ context.Context, _ string, _ *users.User, propertyID uuid.UUID) []viewings.Reply {
	s.interestProp = propertyID
	return s.interestReplies
}

func (s *stubFlow) ProcessSlotSelection(_ context.Context, _ string, _ *users.User) []viewings.Reply {
	return s.slotReplies
}

func (s *stubFlow) ProcessBuyerPreferences(_ context.Context, _ string, _ *users.User) []viewings.Reply {
	return s.prefReplies
}

func (s *stubFlow) ProcessCoordinationResponse(_ context.Context, _ string, _ *users.User) []viewings.Reply {
	return s.coordReplies
}

func (s *stubFlow) HandleOwnerResponse(_ context.Context, _ string, _ *users.User) []viewings.Reply {
	return s.ownerReplies
}

type stubContext struct {
	mu     sync.Mutex
	stored map[string]uuid.UUID
}

func (s *stubContext) SetPropertyContext(_ context.Context, phone string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stored == nil {
		s.stored = map[string]uuid.UUID{}
	}
	s.stored[phone] = id
	return nil
}

func (s *stubContext) GetPropertyContext(_ context.Context, phone string) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stored[phone], nil
}

type recordingMessenger struct {
	sent []conversation.OutboundReply
}

func (r *recordingMessenger) SendReply(_ context.Context, reply conversation.OutboundReply) error {
	r.sent = append(r.sent, reply)
	return nil
}

type webhookFixture struct {
	handler   *WhatsAppWebhookHandler
	flow      *stubFlow
	messenger *recordingMessenger
	pctx      *stubContext
	buyer     *users.User
	owner     *users.User
	prop      *property.Property
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	buyer := &users.User{ID: uuid.New(), Name: "Ben", Phone: "+15550001111", Role: users.RoleBuyer}
	owner := &users.User{ID: uuid.New(), Name: "Olivia", Phone: "+15550002222", Role: users.RoleOwner}
	prop := &property.Property{ID: uuid.MustParse("a1b2c3d4-0000-4000-8000-000000000000"), Title: "Sunny flat", OwnerID: owner.ID}

	f := &webhookFixture{
		flow:      &stubFlow{},
		messenger: &recordingMessenger{},
		pctx:      &stubContext{},
		buyer:     buyer,
		owner:     owner,
		prop:      prop,
	}
	f.handler = NewWhatsAppWebhookHandler(WhatsAppWebhookConfig{
		SkipSignatureCheck: true,
		Users:              &stubDirectory{byPhone: map[string]*users.User{buyer.Phone: buyer, owner.Phone: owner}},
		Properties: &stubProperties{
			byRef: map[string]*property.Property{"a1b2c3d4": prop},
			byID:  map[uuid.UUID]*property.Property{prop.ID: prop},
		},
		Flow:      f.flow,
		Context:   f.pctx,
		Messenger: f.messenger,
	})
	return f
}

func (f *webhookFixture) post(t *testing.T, from, body string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{
		"MessageSid": {"SM123"},
		"From":       {"whatsapp:" + from},
		"To":         {"whatsapp:+15550009999"},
		"Body":       {body},
	}
	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	f := newWebhookFixture(t)
	f.handler.cfg.SkipSignatureCheck = false
	f.handler.cfg.AuthToken = "secret"
	f.handler.cfg.WebhookURL = "https://propchat.example.com/webhooks/whatsapp"

	rec := f.post(t, f.buyer.Phone, "hello")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, f.messenger.sent)
}

func TestWebhookUnknownSender(t *testing.T) {
	f := newWebhookFixture(t)

	rec := f.post(t, "+15559990000", "hello")
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, f.messenger.sent, 1)
	assert.Contains(t, f.messenger.sent[0].Body, "register")
}

func TestWebhookDeliveryReceiptIgnored(t *testing.T) {
	f := newWebhookFixture(t)

	rec := f.post(t, f.buyer.Phone, "   ")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.messenger.sent)
}

func TestWebhookInFlightStageWins(t *testing.T) {
	f := newWebhookFixture(t)
	f.flow.slotReplies = []viewings.Reply{{To: f.buyer.Phone, Body: "slot picked"}}
	// Even an appointment-shaped message goes to the live stage first.
	f.flow.intent = conversation.IntentResult{IsAppointmentRequest: true}

	rec := f.post(t, f.buyer.Phone, "2")
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, f.messenger.sent, 1)
	assert.Equal(t, "slot picked", f.messenger.sent[0].Body)
	assert.Equal(t, uuid.Nil, f.flow.interestProp)
}

func TestWebhookNewInterestWithListingRef(t *testing.T) {
	f := newWebhookFixture(t)
	f.flow.intent = conversation.IntentResult{IsAppointmentRequest: true, IntentType: conversation.IntentScheduleViewing}
	f.flow.interestReplies = []viewings.Reply{{To: f.buyer.Phone, Body: "here are some slots"}}

	rec := f.post(t, f.buyer.Phone, "I'd like to view listing a1b2c3d4")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, f.prop.ID, f.flow.interestProp)
	require.Len(t, f.messenger.sent, 1)
	assert.Equal(t, "here are some slots", f.messenger.sent[0].Body)

	// The listing is remembered for follow-ups.
	assert.Equal(t, f.prop.ID, f.pctx.stored[f.buyer.Phone])
}

func TestWebhookContextualReference(t *testing.T) {
	f := newWebhookFixture(t)
	require.NoError(t, f.pctx.SetPropertyContext(context.Background(), f.buyer.Phone, f.prop.ID))
	f.flow.intent = conversation.IntentResult{IsAppointmentRequest: true, HasContextualReference: true}
	f.flow.interestReplies = []viewings.Reply{{To: f.buyer.Phone, Body: "slots"}}

	f.post(t, f.buyer.Phone, "can I see it tomorrow?")
	assert.Equal(t, f.prop.ID, f.flow.interestProp)
}

func TestWebhookInterestWithoutPropertyAsksForRef(t *testing.T) {
	f := newWebhookFixture(t)
	f.flow.intent = conversation.IntentResult{IsAppointmentRequest: true}

	f.post(t, f.buyer.Phone, "I want to book a viewing")
	require.Len(t, f.messenger.sent, 1)
	assert.Contains(t, f.messenger.sent[0].Body, "listing reference")
	assert.Equal(t, uuid.Nil, f.flow.interestProp)
}

func TestWebhookUnrelatedMessageFallsThrough(t *testing.T) {
	f := newWebhookFixture(t)
	f.flow.intent = conversation.IntentResult{IntentType: conversation.IntentNone}

	f.post(t, f.buyer.Phone, "what's the square footage?")
	require.Len(t, f.messenger.sent, 1)
	assert.Contains(t, f.messenger.sent[0].Body, "book property viewings")
}

func TestWebhookOwnerRouting(t *testing.T) {
	f := newWebhookFixture(t)
	f.flow.ownerReplies = []viewings.Reply{{To: f.owner.Phone, Body: "confirmed"}}

	f.post(t, f.owner.Phone, "confirm a1b2c3d4")
	require.Len(t, f.messenger.sent, 1)
	assert.Equal(t, "confirmed", f.messenger.sent[0].Body)
}

func TestWebhookOwnerFallthrough(t *testing.T) {
	f := newWebhookFixture(t)

	f.post(t, f.owner.Phone, "thanks")
	require.Len(t, f.messenger.sent, 1)
	assert.Contains(t, f.messenger.sent[0].Body, "confirm <id>")
}
