package rental

import (
	"encoding/hex"
	"strconv"

	"leasehub/core/events"
)

const (
	EventTypeListed           = "rental.listed"
	EventTypeRented           = "rental.rented"
	EventTypeCompleted        = "rental.completed"
	EventTypeCancelled        = "rental.cancelled"
	EventTypeClaimed          = "rental.claimed"
	EventTypeFeePolicyUpdated = "rental.fee_policy_updated"
)

// NewListedEvent returns the canonical event payload for a new listing.
func NewListedEvent(r *Rental) *events.Event { return newRentalEvent(EventTypeListed, r) }

// NewRentedEvent returns the canonical event payload emitted when a rental
// begins.
func NewRentedEvent(r *Rental) *events.Event { return newRentalEvent(EventTypeRented, r) }

// NewCompletedEvent returns the canonical event payload for an on-time
// return with collateral refunded.
func NewCompletedEvent(r *Rental) *events.Event { return newRentalEvent(EventTypeCompleted, r) }

// NewCancelledEvent returns the canonical event payload for a withdrawn
// listing.
func NewCancelledEvent(r *Rental) *events.Event { return newRentalEvent(EventTypeCancelled, r) }

// NewClaimedEvent returns the canonical event payload for an owner default
// claim with collateral forfeited.
func NewClaimedEvent(r *Rental) *events.Event { return newRentalEvent(EventTypeClaimed, r) }

// NewFeePolicyUpdatedEvent returns the event payload emitted when the fee
// collector changes the platform fee policy.
func NewFeePolicyUpdatedEvent(p *FeePolicy) *events.Event {
	attrs := make(map[string]string)
	if p != nil {
		attrs["collector"] = hex.EncodeToString(p.Collector[:])
		attrs["feeBps"] = strconv.FormatUint(uint64(p.FeeBps), 10)
	}
	return &events.Event{Type: EventTypeFeePolicyUpdated, Attributes: attrs}
}

func newRentalEvent(eventType string, r *Rental) *events.Event {
	attrs := make(map[string]string)
	if r == nil {
		return &events.Event{Type: eventType, Attributes: attrs}
	}
	sanitized, err := Sanitize(r)
	if err != nil {
		return &events.Event{Type: eventType, Attributes: attrs}
	}
	attrs["id"] = strconv.FormatUint(sanitized.ID, 10)
	attrs["collection"] = hex.EncodeToString(sanitized.Asset.Collection[:])
	attrs["tokenId"] = strconv.FormatUint(sanitized.Asset.TokenID, 10)
	attrs["owner"] = hex.EncodeToString(sanitized.Owner[:])
	attrs["pricePerUnit"] = sanitized.PricePerUnit.String()
	attrs["collateral"] = sanitized.Collateral.String()
	attrs["status"] = sanitized.Status.String()
	if sanitized.Renter != ([20]byte{}) {
		attrs["renter"] = hex.EncodeToString(sanitized.Renter[:])
	}
	if sanitized.StartTime != 0 {
		attrs["startTime"] = strconv.FormatInt(sanitized.StartTime, 10)
		attrs["endTime"] = strconv.FormatInt(sanitized.EndTime, 10)
	}
	return &events.Event{Type: eventType, Attributes: attrs}
}
