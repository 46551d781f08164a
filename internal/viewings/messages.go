package viewings

import (
	"fmt"
	"strings"

	"github.com/propchat/propchat/internal/property"
)

// Reply is a single outbound chat message produced by a coordination step.
type Reply struct {
	To   string
	Body string
}

func msgSlotList(prop *property.Property, slots []CandidateSlot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Here are the available viewing times for %s:\n\n", propertyName(prop))
	for i, slot := range slots {
		fmt.Fprintf(&b, "%d. %s\n", i+1, slot.Describe())
	}
	b.WriteString("\nReply with the number of the slot you'd like.")
	return b.String()
}

func msgAskPreferences(prop *property.Property) string {
	return fmt.Sprintf(
		"The owner of %s hasn't set fixed viewing hours. When would suit you? "+
			"Tell me days and times that work (e.g. \"weekday evenings\" or \"Saturday morning\") and I'll check with them.",
		propertyName(prop))
}

func msgFullyBooked(prop *property.Property) string {
	return fmt.Sprintf(
		"All viewing windows for %s are booked over the coming days. "+
			"Try again in a few days, or ask me about another property.",
		propertyName(prop))
}

func msgBookingRequested(prop *property.Property, slot CandidateSlot, shortID string) string {
	return fmt.Sprintf(
		"Done! I've requested a viewing of %s for %s and asked the owner to approve it. "+
			"I'll message you as soon as they reply. Your reference is %s.",
		propertyName(prop), slot.Describe(), shortID)
}

func msgSlotTaken() string {
	return "Sorry, that slot was just taken by someone else. Pick another number from the list."
}

func msgProposalTaken() string {
	return "Sorry, that time was just booked by someone else. Tell me another time that works and I'll check with the owner."
}

func msgInvalidSelection(count int) string {
	return fmt.Sprintf("Please reply with a number between 1 and %d to pick a slot.", count)
}

func msgOwnerNewRequest(prop *property.Property, buyerName string, slot CandidateSlot, shortID string) string {
	return fmt.Sprintf(
		"New viewing request for %s: %s would like to visit on %s. "+
			"Reply \"confirm %s\" to approve, \"decline %s\" to refuse, or suggest another time.",
		propertyName(prop), displayName(buyerName), slot.Describe(), shortID, shortID)
}

func msgOwnerPreferences(prop *property.Property, buyerName, summary string) string {
	return fmt.Sprintf(
		"%s would like to view %s. Their availability: %s. "+
			"Reply with a day and time that works for you and I'll propose it to them.",
		displayName(buyerName), propertyName(prop), summary)
}

func msgPreferencesRelayed(prop *property.Property) string {
	return fmt.Sprintf(
		"Got it — I've passed your availability to the owner of %s and will message you when they reply.",
		propertyName(prop))
}

func msgProposalToBuyer(prop *property.Property, proposal Proposal) string {
	return fmt.Sprintf(
		"The owner of %s proposed %s. Does that work for you? Reply \"yes\" to confirm or suggest another time.",
		propertyName(prop), proposal.Describe())
}

func msgOwnerReminded(prop *property.Property) string {
	return fmt.Sprintf("I've nudged the owner of %s again — hang tight.", propertyName(prop))
}

func msgSuggestionRelayed(suggestion string) string {
	return fmt.Sprintf(
		"The owner suggested a different time: \"%s\". Reply \"yes\" to accept or tell me what suits you instead.",
		strings.TrimSpace(suggestion))
}

func msgOwnerDeclined(prop *property.Property) string {
	return fmt.Sprintf(
		"Unfortunately the owner of %s declined that viewing time. "+
			"Tell me other times that work and I'll try again.",
		propertyName(prop))
}

func msgAppointmentNotFound(shortID string) string {
	return fmt.Sprintf("I couldn't find a viewing request with reference %s. Check the reference and try again.", shortID)
}

func msgDeclineRecorded(shortID string) string {
	return fmt.Sprintf("Understood. I've declined request %s and let the buyer know.", shortID)
}

func msgAlreadyHandled(shortID string) string {
	return fmt.Sprintf("Request %s has already been handled; no changes were made.", shortID)
}

func msgPropertyNotFound() string {
	return "Sorry, I couldn't find that property. It may have been removed from the listings."
}

func msgGenericFailure() string {
	return "Something went wrong on my side. Please try again in a moment."
}

func propertyName(prop *property.Property) string {
	if prop == nil {
		return "the property"
	}
	if prop.Title != "" {
		return prop.Title
	}
	if prop.Address != "" {
		return prop.Address
	}
	return "the property"
}

func displayName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "A buyer"
	}
	return name
}
