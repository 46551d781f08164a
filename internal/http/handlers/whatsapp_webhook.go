package handlers

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/propchat/propchat/internal/conversation"
	"github.com/propchat/propchat/internal/messaging"
	observemetrics "github.com/propchat/propchat/internal/observability/metrics"
	"github.com/propchat/propchat/internal/property"
	"github.com/propchat/propchat/internal/users"
	"github.com/propchat/propchat/internal/viewings"
	"github.com/propchat/propchat/pkg/logging"
)

// UserDirectory resolves inbound phone numbers to known users.
type UserDirectory interface {
	FindByPhone(ctx context.Context, phone string) (*users.User, error)
}

// PropertyFinder resolves listing references typed in chat.
type PropertyFinder interface {
	FindByRef(ctx context.Context, ref string) (*property.Property, error)
	GetWithDetails(ctx context.Context, id uuid.UUID) (*property.Property, error)
}

// ViewingFlow is the booking state machine surface the router dispatches to.
// Each Process* method returns nil when the message does not belong to its
// stage, so the router can keep trying.
type ViewingFlow interface {
	IsAppointmentRequest(ctx context.Context, message string) conversation.IntentResult
	HandleViewingInterest(ctx context.Context, message string, buyer *users.User, propertyID uuid.UUID) []viewings.Reply
	ProcessSlotSelection(ctx context.Context, message string, buyer *users.User) []viewings.Reply
	ProcessBuyerPreferences(ctx context.Context, message string, buyer *users.User) []viewings.Reply
	ProcessCoordinationResponse(ctx context.Context, message string, buyer *users.User) []viewings.Reply
	HandleOwnerResponse(ctx context.Context, message string, owner *users.User) []viewings.Reply
}

// PropertyContext remembers which listing a phone number last talked about.
type PropertyContext interface {
	SetPropertyContext(ctx context.Context, phone string, propertyID uuid.UUID) error
	GetPropertyContext(ctx context.Context, phone string) (uuid.UUID, error)
}

// WhatsAppWebhookConfig wires the inbound message router.
type WhatsAppWebhookConfig struct {
	AuthToken  string
	WebhookURL string
	// SkipSignatureCheck disables Twilio signature validation for local
	// development.
	SkipSignatureCheck bool

	Users      UserDirectory
	Properties PropertyFinder
	Flow       ViewingFlow
	Context    PropertyContext
	Messenger  conversation.ReplyMessenger
	Logger     *logging.Logger
	Metrics    *observemetrics.ViewingMetrics
}

// WhatsAppWebhookHandler receives Twilio WhatsApp webhooks and routes each
// message through the booking flow. Replies go out through the messenger;
// the webhook response itself is an empty TwiML document.
type WhatsAppWebhookHandler struct {
	cfg WhatsAppWebhookConfig
}

func NewWhatsAppWebhookHandler(cfg WhatsAppWebhookConfig) *WhatsAppWebhookHandler {
	if cfg.Users == nil || cfg.Properties == nil || cfg.Flow == nil || cfg.Context == nil || cfg.Messenger == nil {
		panic("handlers: users, properties, flow, context and messenger are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &WhatsAppWebhookHandler{cfg: cfg}
}

func (h *WhatsAppWebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		h.cfg.Metrics.ObserveWebhookLatency("whatsapp", time.Since(start).Seconds())
	}()

	if !h.cfg.SkipSignatureCheck {
		if !messaging.ValidateTwilioSignature(r, h.cfg.AuthToken, h.cfg.WebhookURL) {
			h.cfg.Logger.Warn("webhook signature validation failed", "remote_ip", r.RemoteAddr)
			http.Error(w, "invalid signature", http.StatusForbidden)
			return
		}
	}

	msg, err := messaging.ParseTwilioWebhook(r)
	if err != nil {
		h.cfg.Logger.Warn("webhook parse failed", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if msg.From == "" || strings.TrimSpace(msg.Body) == "" {
		// Delivery receipts and media-only messages: acknowledge and move on.
		writeTwiML(w)
		return
	}

	h.route(r.Context(), msg)
	writeTwiML(w)
}

func (h *WhatsAppWebhookHandler) route(ctx context.Context, msg *messaging.InboundMessage) {
	user, err := h.cfg.Users.FindByPhone(ctx, msg.From)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			h.deliver(ctx, msg.From,
				"Hi! I don't have your number on file yet. Please register with your agent first, then message me again.")
			return
		}
		h.cfg.Logger.Error("user lookup failed", "error", err, "phone", msg.From)
		return
	}

	var replies []viewings.Reply
	fallthroughReply := "I can help you book property viewings. Send a listing reference or tell me which property you'd like to see."
	if user.IsOwnerSide() {
		replies = h.cfg.Flow.HandleOwnerResponse(ctx, msg.Body, user)
		fallthroughReply = "Reply \"confirm <id>\" or \"decline <id>\" to answer a viewing request, or suggest another time."
	} else {
		replies = h.routeBuyer(ctx, msg.Body, user)
	}

	if replies == nil {
		h.deliver(ctx, user.Phone, fallthroughReply)
		return
	}
	for _, reply := range replies {
		h.deliver(ctx, reply.To, reply.Body)
	}
}

// routeBuyer tries the in-flight booking stages first, then fresh interest.
func (h *WhatsAppWebhookHandler) routeBuyer(ctx context.Context, body string, buyer *users.User) []viewings.Reply {
	if replies := h.cfg.Flow.ProcessSlotSelection(ctx, body, buyer); replies != nil {
		return replies
	}
	if replies := h.cfg.Flow.ProcessBuyerPreferences(ctx, body, buyer); replies != nil {
		return replies
	}
	if replies := h.cfg.Flow.ProcessCoordinationResponse(ctx, body, buyer); replies != nil {
		return replies
	}

	intent := h.cfg.Flow.IsAppointmentRequest(ctx, body)
	if !intent.IsAppointmentRequest {
		return nil
	}

	prop := h.resolveProperty(ctx, body, buyer.Phone, intent.HasContextualReference)
	if prop == nil {
		return []viewings.Reply{{To: buyer.Phone,
			Body: "Which property would you like to view? Reply with the listing reference from the ad."}}
	}
	if err := h.cfg.Context.SetPropertyContext(ctx, buyer.Phone, prop.ID); err != nil {
		h.cfg.Logger.Warn("property context save failed", "error", err, "phone", buyer.Phone)
	}
	return h.cfg.Flow.HandleViewingInterest(ctx, body, buyer, prop.ID)
}

var listingRefRE = regexp.MustCompile(`(?i)\b(?:ref|listing|property)?\s*#?([0-9a-f]{6,32})\b`)

// resolveProperty finds which listing the message is about: an explicit ref
// in the text first, then the remembered context when the message refers back
// ("can I see it tomorrow?").
func (h *WhatsAppWebhookHandler) resolveProperty(ctx context.Context, body, phone string, contextual bool) *property.Property {
	if m := listingRefRE.FindStringSubmatch(body); m != nil {
		prop, err := h.cfg.Properties.FindByRef(ctx, m[1])
		if err == nil {
			return prop
		}
		if !errors.Is(err, property.ErrNotFound) {
			h.cfg.Logger.Error("listing ref lookup failed", "error", err, "ref", m[1])
			return nil
		}
	}

	if !contextual {
		return nil
	}
	id, err := h.cfg.Context.GetPropertyContext(ctx, phone)
	if err != nil {
		h.cfg.Logger.Warn("property context load failed", "error", err, "phone", phone)
		return nil
	}
	if id == uuid.Nil {
		return nil
	}
	prop, err := h.cfg.Properties.GetWithDetails(ctx, id)
	if err != nil {
		return nil
	}
	return prop
}

func (h *WhatsAppWebhookHandler) deliver(ctx context.Context, to, body string) {
	err := h.cfg.Messenger.SendReply(ctx, conversation.OutboundReply{To: to, Body: body})
	if err != nil {
		h.cfg.Logger.Warn("reply dispatch failed", "error", err, "to", to)
	}
}

func writeTwiML(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Response></Response>`))
}
