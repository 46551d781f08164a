package viewings

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/propchat/propchat/internal/conversation"
	observemetrics "github.com/propchat/propchat/internal/observability/metrics"
	"github.com/propchat/propchat/internal/property"
	"github.com/propchat/propchat/internal/users"
	"github.com/propchat/propchat/pkg/logging"
)

var serviceTracer = otel.Tracer("propchat.internal.viewings")

// PropertySource loads property records; read-only from this package's view.
type PropertySource interface {
	GetWithDetails(ctx context.Context, id uuid.UUID) (*property.Property, error)
}

// UserSource resolves user references to reachable users.
type UserSource interface {
	FindByID(ctx context.Context, id uuid.UUID) (*users.User, error)
}

// AppointmentStore is the persistence surface the state machine needs.
type AppointmentStore interface {
	Insert(ctx context.Context, appt *Appointment) error
	FindByShortID(ctx context.Context, prefix string) (*Appointment, error)
	UpdateStatusFromPending(ctx context.Context, id uuid.UUID, to Status) error
}

// SessionStore tracks per-phone booking-flow state with TTL expiry.
type SessionStore interface {
	Set(ctx context.Context, phone string, req *PendingRequest) error
	Get(ctx context.Context, phone string) (*PendingRequest, error)
	Delete(ctx context.Context, phone string) error
	SetOwnerLink(ctx context.Context, ownerPhone string, link *OwnerLink) error
	GetOwnerLink(ctx context.Context, ownerPhone string) (*OwnerLink, error)
	DeleteOwnerLink(ctx context.Context, ownerPhone string) error
}

// SlotResolver computes bookable candidate slots for a property.
type SlotResolver interface {
	AvailableSlots(ctx context.Context, prop *property.Property) (AvailabilityResult, error)
}

// IntentClassifier detects appointment-shaped messages.
type IntentClassifier interface {
	Classify(ctx context.Context, message string) (conversation.IntentResult, error)
}

// ConfirmationClassifier decides whether a buyer reply accepts a proposal.
type ConfirmationClassifier interface {
	Classify(ctx context.Context, message string) (conversation.ConfirmationResult, error)
}

// PreferenceParser converts free-text availability into structured preferences.
type PreferenceParser interface {
	Parse(ctx context.Context, message string) (conversation.TimePreferences, error)
}

// OwnerParser interprets owner/agent replies.
type OwnerParser interface {
	Parse(ctx context.Context, message string) (conversation.OwnerResponse, error)
}

// ServiceConfig wires the coordination service.
type ServiceConfig struct {
	Properties   PropertySource
	Users        UserSource
	Appointments AppointmentStore
	Pending      SessionStore
	Resolver     SlotResolver
	Messenger    conversation.ReplyMessenger
	Intent       IntentClassifier
	Confirmation ConfirmationClassifier
	Preferences  PreferenceParser
	OwnerParser  OwnerParser
	Logger       *logging.Logger
	Metrics      *observemetrics.ViewingMetrics
	Now          func() time.Time
}

// Service is the appointment-coordination state machine. Each public method
// is one resumption point of the asynchronous flow; all failures degrade to
// chat replies and nothing escapes as an error.
type Service struct {
	properties   PropertySource
	users        UserSource
	appointments AppointmentStore
	pending      SessionStore
	resolver     SlotResolver
	messenger    conversation.ReplyMessenger
	intent       IntentClassifier
	confirmation ConfirmationClassifier
	preferences  PreferenceParser
	ownerParser  OwnerParser
	logger       *logging.Logger
	metrics      *observemetrics.ViewingMetrics
	now          func() time.Time
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.Properties == nil || cfg.Users == nil || cfg.Appointments == nil ||
		cfg.Pending == nil || cfg.Resolver == nil || cfg.Messenger == nil {
		panic("viewings: properties, users, appointments, pending, resolver and messenger are required")
	}
	if cfg.Intent == nil || cfg.Confirmation == nil || cfg.Preferences == nil || cfg.OwnerParser == nil {
		panic("viewings: all parser collaborators are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		properties:   cfg.Properties,
		users:        cfg.Users,
		appointments: cfg.Appointments,
		pending:      cfg.Pending,
		resolver:     cfg.Resolver,
		messenger:    cfg.Messenger,
		intent:       cfg.Intent,
		confirmation: cfg.Confirmation,
		preferences:  cfg.Preferences,
		ownerParser:  cfg.OwnerParser,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		now:          cfg.Now,
	}
}

// IsAppointmentRequest classifies whether a message starts or continues a
// viewing flow. Delegates to the intent classifier, which never fails.
func (s *Service) IsAppointmentRequest(ctx context.Context, message string) conversation.IntentResult {
	result, err := s.intent.Classify(ctx, message)
	if err != nil {
		// Classifiers fall back internally; an error here still must not
		// reach the user.
		s.logger.Warn("intent classification failed", "error", err)
		return conversation.DetectAppointmentIntent(message)
	}
	return result
}

// HandleViewingInterest starts a booking flow: resolve availability and
// either offer slots or collect free-text preferences.
func (s *Service) HandleViewingInterest(ctx context.Context, message string, buyer *users.User, propertyID uuid.UUID) []Reply {
	ctx, span := serviceTracer.Start(ctx, "viewings.handle_interest")
	defer span.End()
	span.SetAttributes(
		attribute.String("propchat.property_id", propertyID.String()),
		attribute.String("propchat.buyer_id", buyer.ID.String()),
	)

	prop, err := s.properties.GetWithDetails(ctx, propertyID)
	if err != nil {
		if errors.Is(err, property.ErrNotFound) {
			s.clearPending(ctx, buyer.Phone)
			return []Reply{{To: buyer.Phone, Body: msgPropertyNotFound()}}
		}
		s.logger.Error("property lookup failed", "error", err, "property_id", propertyID)
		return []Reply{{To: buyer.Phone, Body: msgGenericFailure()}}
	}

	result, err := s.resolver.AvailableSlots(ctx, prop)
	if err != nil {
		s.logger.Error("availability resolution failed", "error", err, "property_id", propertyID)
		return []Reply{{To: buyer.Phone, Body: msgGenericFailure()}}
	}

	if len(result.Slots) > 0 {
		s.metrics.ObserveResolverPath(resolverPathLabel(result.UsedFallback))
		req := &PendingRequest{
			Kind:       KindSlotSelection,
			PropertyID: prop.ID,
			Slots:      &SlotSelection{Offered: result.Slots},
		}
		if err := s.pending.Set(ctx, buyer.Phone, req); err != nil {
			s.logger.Error("pending request save failed", "error", err, "phone", buyer.Phone)
			return []Reply{{To: buyer.Phone, Body: msgGenericFailure()}}
		}
		return []Reply{{To: buyer.Phone, Body: msgSlotList(prop, result.Slots)}}
	}

	if !result.UsedFallback {
		// Owner rules exist but every window is booked: a legitimate
		// fully-booked result, never an invitation to fall back.
		s.metrics.ObserveResolverPath("rules_exhausted")
		return []Reply{{To: buyer.Phone, Body: msgFullyBooked(prop)}}
	}

	s.metrics.ObserveResolverPath("preference_collection")
	req := &PendingRequest{
		Kind:       KindPreferenceCollection,
		PropertyID: prop.ID,
		Preference: &PreferenceRequest{OriginalMessage: message},
	}
	if err := s.pending.Set(ctx, buyer.Phone, req); err != nil {
		s.logger.Error("pending request save failed", "error", err, "phone", buyer.Phone)
		return []Reply{{To: buyer.Phone, Body: msgGenericFailure()}}
	}
	return []Reply{{To: buyer.Phone, Body: msgAskPreferences(prop)}}
}

var slotNumberRE = regexp.MustCompile(`\d+`)

// ProcessSlotSelection consumes a numeric reply while the buyer is choosing
// from an offered slot list. Returns nil when the buyer is not in that stage.
func (s *Service) ProcessSlotSelection(ctx context.Context, message string, buyer *users.User) []Reply {
	ctx, span := serviceTracer.Start(ctx, "viewings.process_slot_selection")
	defer span.End()

	pending, err := s.pending.Get(ctx, buyer.Phone)
	if err != nil {
		s.logger.Error("pending request load failed", "error", err, "phone", buyer.Phone)
		return []Reply{{To: buyer.Phone, Body: msgGenericFailure()}}
	}
	if pending == nil || pending.Kind != KindSlotSelection {
		return nil
	}
	offered := pending.Slots.Offered

	idx := -1
	if m := slotNumberRE.FindString(message); m != "" {
		if n, convErr := strconv.Atoi(m); convErr == nil {
			idx = n
		}
	}
	if idx < 1 || idx > len(offered) {
		return []Reply{{To: buyer.Phone, Body: msgInvalidSelection(len(offered))}}
	}
	slot := offered[idx-1]

	prop, err := s.properties.GetWithDetails(ctx, pending.PropertyID)
	if err != nil {
		s.clearPending(ctx, buyer.Phone)
		return []Reply{{To: buyer.Phone, Body: msgPropertyNotFound()}}
	}

	appt := &Appointment{
		PropertyID: prop.ID,
		UserID:     buyer.ID,
		Date:       slot.Date,
		StartTime:  slot.StartTime,
		EndTime:    slot.EndTime,
		TimeSlotID: slot.TimeSlotID,
		Status:     StatusPendingOwnerApproval,
	}
	if err := s.appointments.Insert(ctx, appt); err != nil {
		if errors.Is(err, ErrSlotTaken) {
			// Lost the race: keep the pending request so the buyer can pick
			// another number.
			s.metrics.ObserveBooking("conflict")
			return []Reply{{To: buyer.Phone, Body: msgSlotTaken()}}
		}
		s.metrics.ObserveBooking("error")
		s.logger.Error("appointment insert failed", "error", err, "property_id", prop.ID)
		return []Reply{{To: buyer.Phone, Body: msgGenericFailure()}}
	}
	s.metrics.ObserveBooking("requested")

	if contact := s.lookupContact(ctx, prop); contact != nil {
		s.send(ctx, contact.Phone, msgOwnerNewRequest(prop, buyer.Name, slot, appt.ShortID()))
	}
	s.clearPending(ctx, buyer.Phone)

	s.logger.Info("viewing requested",
		"appointment_id", appt.ID, "property_id", prop.ID, "buyer_id", buyer.ID)
	return []Reply{{To: buyer.Phone, Body: msgBookingRequested(prop, slot, appt.ShortID())}}
}

// ProcessBuyerPreferences consumes the buyer's free-text availability while
// in preference collection. Returns nil when the buyer is not in that stage.
func (s *Service) ProcessBuyerPreferences(ctx context.Context, message string, buyer *users.User) []Reply {
	ctx, span := serviceTracer.Start(ctx, "viewings.process_preferences")
	defer span.End()

	pending, err := s.pending.Get(ctx, buyer.Phone)
	if err != nil {
		s.logger.Error("pending request load failed", "error", err, "phone", buyer.Phone)
		return []Reply{{To: buyer.Phone, Body: msgGenericFailure()}}
	}
	if pending == nil || pending.Kind != KindPreferenceCollection {
		return nil
	}

	prop, err := s.properties.GetWithDetails(ctx, pending.PropertyID)
	if err != nil {
		s.clearPending(ctx, buyer.Phone)
		return []Reply{{To: buyer.Phone, Body: msgPropertyNotFound()}}
	}

	prefs, err := s.preferences.Parse(ctx, message)
	if err != nil {
		// Parsers fall back internally; treat a hard error as the generic
		// low-confidence result.
		s.metrics.ObserveParserFallback("preferences")
		prefs = conversation.ExtractTimePreferences(message)
	}

	return s.startCoordination(ctx, buyer, prop, prefs)
}

// startCoordination stores the coordinating state, links the owner back to
// the buyer, and relays the preference summary.
func (s *Service) startCoordination(ctx context.Context, buyer *users.User, prop *property.Property, prefs conversation.TimePreferences) []Reply {
	req := &PendingRequest{
		Kind:       KindCoordinating,
		PropertyID: prop.ID,
		Coord:      &Coordination{Preferences: prefs},
	}
	if err := s.pending.Set(ctx, buyer.Phone, req); err != nil {
		s.logger.Error("pending request save failed", "error", err, "phone", buyer.Phone)
		return []Reply{{To: buyer.Phone, Body: msgGenericFailure()}}
	}

	contact := s.lookupContact(ctx, prop)
	if contact != nil {
		if err := s.pending.SetOwnerLink(ctx, contact.Phone, &OwnerLink{BuyerPhone: buyer.Phone, PropertyID: prop.ID}); err != nil {
			s.logger.Warn("owner link save failed", "error", err, "property_id", prop.ID)
		}
		s.send(ctx, contact.Phone, msgOwnerPreferences(prop, buyer.Name, prefs.Summary))
	}

	return []Reply{{To: buyer.Phone, Body: msgPreferencesRelayed(prop)}}
}

// ProcessCoordinationResponse consumes buyer messages while coordinating or
// awaiting confirmation. Returns nil for unrelated messages so the outer
// conversation router handles them.
func (s *Service) ProcessCoordinationResponse(ctx context.Context, message string, buyer *users.User) []Reply {
	ctx, span := serviceTracer.Start(ctx, "viewings.process_coordination")
	defer span.End()

	pending, err := s.pending.Get(ctx, buyer.Phone)
	if err != nil {
		s.logger.Error("pending request load failed", "error", err, "phone", buyer.Phone)
		return []Reply{{To: buyer.Phone, Body: msgGenericFailure()}}
	}
	if pending == nil {
		return nil
	}

	switch pending.Kind {
	case KindCoordinating:
		return s.coordinatingReply(ctx, message, buyer, pending)
	case KindAwaitingConfirmation:
		return s.confirmationReply(ctx, message, buyer, pending)
	default:
		return nil
	}
}

func (s *Service) coordinatingReply(ctx context.Context, message string, buyer *users.User, pending *PendingRequest) []Reply {
	prop, err := s.properties.GetWithDetails(ctx, pending.PropertyID)
	if err != nil {
		s.clearPending(ctx, buyer.Phone)
		return []Reply{{To: buyer.Phone, Body: msgPropertyNotFound()}}
	}

	conf, err := s.confirmation.Classify(ctx, message)
	if err != nil {
		s.metrics.ObserveParserFallback("confirmation")
		conf.IsConfirmation = conversation.IsLikelyConfirmation(message)
	}

	if conf.IsConfirmation {
		// Restating interest while the owner is quiet: nudge the owner,
		// stay coordinating.
		contact := s.lookupContact(ctx, prop)
		if contact != nil {
			s.send(ctx, contact.Phone, msgOwnerPreferences(prop, buyer.Name, pending.Coord.Preferences.Summary))
		}
		return []Reply{{To: buyer.Phone, Body: msgOwnerReminded(prop)}}
	}

	if conversation.ContainsTimeReference(message) {
		prefs, parseErr := s.preferences.Parse(ctx, message)
		if parseErr != nil {
			s.metrics.ObserveParserFallback("preferences")
			prefs = conversation.ExtractTimePreferences(message)
		}
		return s.startCoordination(ctx, buyer, prop, prefs)
	}

	return nil
}

func (s *Service) confirmationReply(ctx context.Context, message string, buyer *users.User, pending *PendingRequest) []Reply {
	prop, err := s.properties.GetWithDetails(ctx, pending.PropertyID)
	if err != nil {
		s.clearPending(ctx, buyer.Phone)
		return []Reply{{To: buyer.Phone, Body: msgPropertyNotFound()}}
	}

	conf, err := s.confirmation.Classify(ctx, message)
	if err != nil {
		s.metrics.ObserveParserFallback("confirmation")
		conf.IsConfirmation = conversation.IsLikelyConfirmation(message)
	}

	if conf.IsConfirmation {
		proposal := pending.Proposal
		appt := &Appointment{
			PropertyID: prop.ID,
			UserID:     buyer.ID,
			Date:       proposal.Date,
			StartTime:  proposal.StartTime,
			EndTime:    proposal.EndTime,
			// The owner proposed this time, so approval is implicit.
			Status: StatusConfirmed,
		}
		if err := s.appointments.Insert(ctx, appt); err != nil {
			if errors.Is(err, ErrSlotTaken) {
				s.metrics.ObserveBooking("conflict")
				// No numbered list exists at this stage; invite a fresh
				// time instead.
				return []Reply{{To: buyer.Phone, Body: msgProposalTaken()}}
			}
			s.metrics.ObserveBooking("error")
			s.logger.Error("appointment insert failed", "error", err, "property_id", prop.ID)
			return []Reply{{To: buyer.Phone, Body: msgGenericFailure()}}
		}
		s.metrics.ObserveBooking("booked")

		invite := formatInviteMessage(appt, "Viewing: "+propertyName(prop), prop.Address, s.now())
		contact := s.lookupContact(ctx, prop)
		if contact != nil {
			s.send(ctx, contact.Phone, invite)
			s.clearOwnerLink(ctx, contact.Phone)
		}
		s.clearPending(ctx, buyer.Phone)

		s.logger.Info("viewing booked",
			"appointment_id", appt.ID, "property_id", prop.ID, "buyer_id", buyer.ID)
		return []Reply{{To: buyer.Phone, Body: invite}}
	}

	if conversation.ContainsTimeReference(message) {
		// Counter-proposal: renegotiate from the top of coordination.
		prefs, parseErr := s.preferences.Parse(ctx, message)
		if parseErr != nil {
			s.metrics.ObserveParserFallback("preferences")
			prefs = conversation.ExtractTimePreferences(message)
		}
		return s.startCoordination(ctx, buyer, prop, prefs)
	}

	return nil
}

// HandleOwnerResponse consumes owner/agent messages. Returns nil when the
// message is neither an appointment reference nor a live coordination reply.
func (s *Service) HandleOwnerResponse(ctx context.Context, message string, owner *users.User) []Reply {
	ctx, span := serviceTracer.Start(ctx, "viewings.handle_owner_response")
	defer span.End()

	parsed, err := s.ownerParser.Parse(ctx, message)
	if err != nil {
		s.metrics.ObserveParserFallback("owner")
		parsed = conversation.ParseOwnerResponse(message)
	}

	if parsed.AppointmentID != "" && parsed.Intent != conversation.OwnerIntentUnclear {
		return s.ownerShortIDReply(ctx, message, owner, parsed)
	}

	return s.ownerCoordinationReply(ctx, message, owner, parsed)
}

func (s *Service) ownerShortIDReply(ctx context.Context, message string, owner *users.User, parsed conversation.OwnerResponse) []Reply {
	appt, err := s.appointments.FindByShortID(ctx, parsed.AppointmentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return []Reply{{To: owner.Phone, Body: msgAppointmentNotFound(parsed.AppointmentID)}}
		}
		s.logger.Error("appointment lookup failed", "error", err, "short_id", parsed.AppointmentID)
		return []Reply{{To: owner.Phone, Body: msgGenericFailure()}}
	}

	prop, err := s.properties.GetWithDetails(ctx, appt.PropertyID)
	if err != nil {
		s.logger.Error("property lookup failed", "error", err, "property_id", appt.PropertyID)
		return []Reply{{To: owner.Phone, Body: msgGenericFailure()}}
	}
	buyer, err := s.users.FindByID(ctx, appt.UserID)
	if err != nil {
		s.logger.Error("buyer lookup failed", "error", err, "user_id", appt.UserID)
		return []Reply{{To: owner.Phone, Body: msgGenericFailure()}}
	}

	switch parsed.Intent {
	case conversation.OwnerIntentConfirm:
		if err := s.appointments.UpdateStatusFromPending(ctx, appt.ID, StatusConfirmed); err != nil {
			if errors.Is(err, ErrNotPending) {
				return []Reply{{To: owner.Phone, Body: msgAlreadyHandled(appt.ShortID())}}
			}
			s.logger.Error("status update failed", "error", err, "appointment_id", appt.ID)
			return []Reply{{To: owner.Phone, Body: msgGenericFailure()}}
		}
		s.metrics.ObserveBooking("booked")
		invite := formatInviteMessage(appt, "Viewing: "+propertyName(prop), prop.Address, s.now())
		s.send(ctx, buyer.Phone, invite)
		s.logger.Info("viewing confirmed by owner",
			"appointment_id", appt.ID, "property_id", prop.ID)
		return []Reply{{To: owner.Phone, Body: invite}}

	case conversation.OwnerIntentDecline:
		if err := s.appointments.UpdateStatusFromPending(ctx, appt.ID, StatusDeclined); err != nil {
			if errors.Is(err, ErrNotPending) {
				return []Reply{{To: owner.Phone, Body: msgAlreadyHandled(appt.ShortID())}}
			}
			s.logger.Error("status update failed", "error", err, "appointment_id", appt.ID)
			return []Reply{{To: owner.Phone, Body: msgGenericFailure()}}
		}
		s.metrics.ObserveBooking("declined")
		// The buyer re-enters coordination rather than being dropped.
		if setErr := s.pending.Set(ctx, buyer.Phone, &PendingRequest{
			Kind:       KindPreferenceCollection,
			PropertyID: prop.ID,
			Preference: &PreferenceRequest{OriginalMessage: message},
		}); setErr != nil {
			s.logger.Warn("pending request save failed", "error", setErr, "phone", buyer.Phone)
		}
		s.send(ctx, buyer.Phone, msgOwnerDeclined(prop))
		return []Reply{{To: owner.Phone, Body: msgDeclineRecorded(appt.ShortID())}}

	case conversation.OwnerIntentSuggestNewTime:
		// Status untouched: the original request stays pending while the
		// buyer considers the alternative.
		if proposed, ok := conversation.ExtractProposedTime(parsed.NewTimeSuggestion, s.now()); ok {
			proposal := Proposal{Date: proposed.Date, StartTime: proposed.StartTime, EndTime: proposed.EndTime}
			if setErr := s.pending.Set(ctx, buyer.Phone, &PendingRequest{
				Kind:       KindAwaitingConfirmation,
				PropertyID: prop.ID,
				Proposal:   &proposal,
			}); setErr != nil {
				s.logger.Warn("pending request save failed", "error", setErr, "phone", buyer.Phone)
			}
			if linkErr := s.pending.SetOwnerLink(ctx, owner.Phone, &OwnerLink{BuyerPhone: buyer.Phone, PropertyID: prop.ID}); linkErr != nil {
				s.logger.Warn("owner link save failed", "error", linkErr, "property_id", prop.ID)
			}
			s.send(ctx, buyer.Phone, msgProposalToBuyer(prop, proposal))
		} else {
			s.send(ctx, buyer.Phone, msgSuggestionRelayed(parsed.NewTimeSuggestion))
		}
		return []Reply{{To: owner.Phone, Body: "I've passed your suggestion to the buyer and will let you know what they say."}}
	}

	return nil
}

func (s *Service) ownerCoordinationReply(ctx context.Context, message string, owner *users.User, parsed conversation.OwnerResponse) []Reply {
	link, err := s.pending.GetOwnerLink(ctx, owner.Phone)
	if err != nil {
		s.logger.Error("owner link load failed", "error", err, "phone", owner.Phone)
		return []Reply{{To: owner.Phone, Body: msgGenericFailure()}}
	}
	if link == nil {
		return nil
	}

	prop, err := s.properties.GetWithDetails(ctx, link.PropertyID)
	if err != nil {
		s.clearOwnerLink(ctx, owner.Phone)
		return []Reply{{To: owner.Phone, Body: msgPropertyNotFound()}}
	}

	if parsed.Intent == conversation.OwnerIntentDecline {
		s.clearOwnerLink(ctx, owner.Phone)
		s.clearPending(ctx, link.BuyerPhone)
		s.send(ctx, link.BuyerPhone, msgOwnerDeclined(prop))
		return []Reply{{To: owner.Phone, Body: "Understood — I've let the buyer know."}}
	}

	proposed, ok := conversation.ExtractProposedTime(message, s.now())
	if !ok {
		return nil
	}

	proposal := Proposal{Date: proposed.Date, StartTime: proposed.StartTime, EndTime: proposed.EndTime}
	if err := s.pending.Set(ctx, link.BuyerPhone, &PendingRequest{
		Kind:       KindAwaitingConfirmation,
		PropertyID: prop.ID,
		Proposal:   &proposal,
	}); err != nil {
		s.logger.Error("pending request save failed", "error", err, "phone", link.BuyerPhone)
		return []Reply{{To: owner.Phone, Body: msgGenericFailure()}}
	}
	s.send(ctx, link.BuyerPhone, msgProposalToBuyer(prop, proposal))

	return []Reply{{To: owner.Phone, Body: "Thanks — I've proposed " + proposal.Describe() + " to the buyer."}}
}

// lookupContact resolves who answers for the property: the agent when
// assigned, otherwise the owner. Nil when the lookup fails; callers treat a
// missing contact as a best-effort notification that could not be sent.
func (s *Service) lookupContact(ctx context.Context, prop *property.Property) *users.User {
	contact, err := s.users.FindByID(ctx, prop.ContactID())
	if err != nil {
		s.logger.Warn("contact lookup failed", "error", err, "property_id", prop.ID)
		return nil
	}
	return contact
}

// send dispatches a counterparty notification. Failures are logged, never
// surfaced to the primary action.
func (s *Service) send(ctx context.Context, phone, body string) {
	err := s.messenger.SendReply(ctx, conversation.OutboundReply{To: phone, Body: body})
	if err != nil {
		s.logger.Warn("notification dispatch failed", "error", err, "to", phone)
	}
}

func (s *Service) clearPending(ctx context.Context, phone string) {
	if err := s.pending.Delete(ctx, phone); err != nil {
		s.logger.Warn("pending request delete failed", "error", err, "phone", phone)
	}
}

func (s *Service) clearOwnerLink(ctx context.Context, phone string) {
	if err := s.pending.DeleteOwnerLink(ctx, phone); err != nil {
		s.logger.Warn("owner link delete failed", "error", err, "phone", phone)
	}
}

func resolverPathLabel(usedFallback bool) string {
	if usedFallback {
		return "fallback"
	}
	return "rules"
}
