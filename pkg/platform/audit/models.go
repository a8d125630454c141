// Package audit captures key booking actions as events. Domain code emits
// through a Recorder; a worker persists events to the transactional outbox
// and a publisher ships them to Kafka. Kafka is the source of truth for the
// audit trail.
package audit

import (
	"context"
	"time"

	id "candilib/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose, enabling
// different retention policies and routing downstream.
type EventCategory string

const (
	// CategoryCompliance covers events with legal significance: bookings,
	// cancellations, penalties. Long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers authentication-relevant events: magic links,
	// admin logins, rejected tokens.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging and operational
	// visibility. Short retention, may be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic. Keep it transport-agnostic so stores
// and sinks can fan out.
type Event struct {
	Timestamp   time.Time
	CandidateID id.CandidateID
	Action      Action
	// CentreID and PlaceAt locate the slot an event concerns, when any.
	CentreID string
	PlaceAt  string
	// Reason carries the rejection reason or penalty date for context.
	Reason string
	// Email is set for events that predate a candidate record (magic links).
	Email string
	// RequestID correlates the event with the HTTP request that caused it.
	RequestID string
	// ClientIP and UserAgent come from request metadata.
	ClientIP  string
	UserAgent string
}

// Action names an auditable occurrence.
type Action string

const (
	ActionPlaceBooked      Action = "place_booked"
	ActionPlaceCancelled   Action = "place_cancelled"
	ActionPlaceModified    Action = "place_modified"
	ActionBookingRejected  Action = "booking_rejected"
	ActionPenaltyApplied   Action = "penalty_applied"
	ActionMagicLinkSent    Action = "magic_link_sent"
	ActionAdminLoggedIn    Action = "admin_logged_in"
	ActionPlanningImported Action = "planning_imported"
	ActionPlanningDeleted  Action = "planning_deleted"
	ActionWhitelistAdded   Action = "whitelist_added"
	ActionWhitelistRemoved Action = "whitelist_removed"
)

var eventCategories = map[Action]EventCategory{
	ActionPlaceBooked:      CategoryCompliance,
	ActionPlaceCancelled:   CategoryCompliance,
	ActionPlaceModified:    CategoryCompliance,
	ActionPenaltyApplied:   CategoryCompliance,
	ActionBookingRejected:  CategoryOperations,
	ActionMagicLinkSent:    CategorySecurity,
	ActionAdminLoggedIn:    CategorySecurity,
	ActionPlanningImported: CategoryOperations,
	ActionPlanningDeleted:  CategoryOperations,
	ActionWhitelistAdded:   CategorySecurity,
	ActionWhitelistRemoved: CategorySecurity,
}

// Category derives the event category from the action. The map is the
// source of truth; unknown actions land in operations.
func (a Action) Category() EventCategory {
	if c, ok := eventCategories[a]; ok {
		return c
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}
