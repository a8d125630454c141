// Package models holds the booking domain entities shared by stores, rules
// and the reservation service.
package models

import (
	"time"

	id "candilib/pkg/domain"
)

// Candidate is a driving-exam candidate and their eligibility state.
type Candidate struct {
	ID        id.CandidateID
	Email     string
	FirstName string
	LastName  string
	BirthName string
	// NEPH is the national exam reference code.
	NEPH       string
	Department string

	// ETGSucceededAt is the theory-test success date. Nil until the candidate
	// passes the theory exam; no practical slot may be offered past its
	// validity window.
	ETGSucceededAt *time.Time

	// LastExamFailedAt is the most recent practical-exam failure, if any.
	LastExamFailedAt *time.Time
	FailureCount     int

	// CanBookFrom is the earliest date the candidate may book. Nil means no
	// restriction. Once set it only ever moves forward: a later penalty never
	// shortens an earlier one.
	CanBookFrom *time.Time
}

// ExamCentre is immutable reference data for a test centre.
type ExamCentre struct {
	ID         id.CentreID
	Name       string
	Department string
	Address    string
}

// Place is one bookable exam slot: a (centre, date-time) unit that is either
// fully free or assigned to exactly one candidate.
type Place struct {
	ID       id.PlaceID
	CentreID id.CentreID
	At       time.Time

	BookedBy *id.CandidateID
	BookedAt *time.Time
}

// IsBooked reports whether the place is currently assigned.
func (p Place) IsBooked() bool { return p.BookedBy != nil }

// Reservation is a read view pairing a candidate's current place with its
// centre, denormalized for display.
type Reservation struct {
	Place      Place
	Centre     ExamCentre
	Department string
}

// ArchiveReason tags why a place left a candidate's hands.
type ArchiveReason string

const (
	ArchiveReasonCancelled ArchiveReason = "cancelled"
	ArchiveReasonModified  ArchiveReason = "modified"
)

// ArchivedPlace is an immutable audit entry written when a booked place is
// released. It snapshots the slot as it was, so later planning changes cannot
// rewrite history.
type ArchivedPlace struct {
	CandidateID id.CandidateID
	CentreID    id.CentreID
	At          time.Time
	Reason      ArchiveReason
	ArchivedAt  time.Time
}
