package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Typed identifiers keep candidate, centre and place references from being
// mixed up at call sites. They are uuid-backed domain primitives: parse once
// at the boundary, pass the typed value everywhere else.

// CandidateID identifies a candidate.
type CandidateID uuid.UUID

// CentreID identifies an exam centre.
type CentreID uuid.UUID

// PlaceID identifies a single bookable exam place.
type PlaceID uuid.UUID

// ParseCandidateID validates and returns a CandidateID.
func ParseCandidateID(s string) (CandidateID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return CandidateID{}, fmt.Errorf("invalid candidate id: %w", err)
	}
	return CandidateID(u), nil
}

// ParseCentreID validates and returns a CentreID.
func ParseCentreID(s string) (CentreID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return CentreID{}, fmt.Errorf("invalid centre id: %w", err)
	}
	return CentreID(u), nil
}

// ParsePlaceID validates and returns a PlaceID.
func ParsePlaceID(s string) (PlaceID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return PlaceID{}, fmt.Errorf("invalid place id: %w", err)
	}
	return PlaceID(u), nil
}

func (id CandidateID) String() string { return uuid.UUID(id).String() }
func (id CentreID) String() string    { return uuid.UUID(id).String() }
func (id PlaceID) String() string     { return uuid.UUID(id).String() }

func (id CandidateID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id CentreID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id PlaceID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }

// NewCandidateID returns a fresh random CandidateID.
func NewCandidateID() CandidateID { return CandidateID(uuid.New()) }

// NewCentreID returns a fresh random CentreID.
func NewCentreID() CentreID { return CentreID(uuid.New()) }

// NewPlaceID returns a fresh random PlaceID.
func NewPlaceID() PlaceID { return PlaceID(uuid.New()) }
