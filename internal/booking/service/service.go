// Package service is the reservation orchestrator. It sequences eligibility
// checks, the atomic slot assignment, candidate penalties, archival and mail
// for every booking attempt. Business rejections are values on the result,
// never errors: an ineligible candidate is an expected outcome.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"candilib/internal/booking/models"
	"candilib/internal/booking/rules"
	"candilib/internal/notification"
	"candilib/internal/platform/metrics"
	id "candilib/pkg/domain"
	dErrors "candilib/pkg/domain-errors"
	"candilib/pkg/platform/audit"
	"candilib/pkg/platform/sentinel"
	"candilib/pkg/requestcontext"
)

const dateOnlyLayout = "02/01/2006"

// PlaceStore is the slot-pool contract the orchestrator consumes.
type PlaceStore interface {
	ListAvailable(ctx context.Context, centreID id.CentreID, begin, end time.Time) ([]time.Time, error)
	FindAndAssign(ctx context.Context, candidateID id.CandidateID, centreID id.CentreID, at, bookedAt time.Time) (*models.Place, error)
	Release(ctx context.Context, placeID id.PlaceID, candidateID id.CandidateID) error
	FindByCandidate(ctx context.Context, candidateID id.CandidateID) (*models.Place, error)
}

// CandidateStore resolves candidates and persists booking restrictions.
type CandidateStore interface {
	FindByID(ctx context.Context, candidateID id.CandidateID) (*models.Candidate, error)
	UpdateCanBookFrom(ctx context.Context, candidateID id.CandidateID, canBookFrom time.Time) error
}

// CentreStore resolves exam centres.
type CentreStore interface {
	FindByID(ctx context.Context, centreID id.CentreID) (*models.ExamCentre, error)
}

// ArchiveStore records released places.
type ArchiveStore interface {
	Append(ctx context.Context, entry models.ArchivedPlace) error
}

// RejectionReason tags an expected business rejection.
type RejectionReason string

const (
	RejectSameSlot      RejectionReason = "same_slot"
	RejectNotYetAllowed RejectionReason = "not_yet_allowed"
	RejectNoSlot        RejectionReason = "no_slot"
	RejectETGExpired    RejectionReason = "etg_expired"
)

// Rejection is an expected business outcome, reported to the client with a
// French reason and, when relevant, the date eligibility opens.
type Rejection struct {
	Reason       RejectionReason
	Message      string
	EligibleFrom *time.Time
}

// BookResult is the outcome of one booking attempt. Exactly one of
// Reservation and Rejection is set.
type BookResult struct {
	Reservation *models.Reservation
	Rejection   *Rejection
	// StatusMail is false when the confirmation mail failed. The booking
	// itself is committed regardless.
	StatusMail bool
	Message    string
}

// CancelResult is the outcome of a cancellation.
type CancelResult struct {
	StatusMail   bool
	Message      string
	PenaltyUntil *time.Time
}

// PenaltyDate renders the penalty in date-only form for API responses.
func (r CancelResult) PenaltyDate() string {
	if r.PenaltyUntil == nil {
		return ""
	}
	return r.PenaltyUntil.Format(dateOnlyLayout)
}

// Service orchestrates reservations.
type Service struct {
	engine     rules.Engine
	places     PlaceStore
	candidates CandidateStore
	centres    CentreStore
	archives   ArchiveStore
	notifier   notification.Notifier
	recorder   *audit.Recorder
	metrics    *metrics.Metrics
	cache      *ListingCache
	logger     *slog.Logger
}

// New builds the orchestrator. cache may be nil when Redis is not configured.
func New(
	engine rules.Engine,
	places PlaceStore,
	candidates CandidateStore,
	centres CentreStore,
	archives ArchiveStore,
	notifier notification.Notifier,
	recorder *audit.Recorder,
	m *metrics.Metrics,
	cache *ListingCache,
	logger *slog.Logger,
) *Service {
	return &Service{
		engine:     engine,
		places:     places,
		candidates: candidates,
		centres:    centres,
		archives:   archives,
		notifier:   notifier,
		recorder:   recorder,
		metrics:    m,
		cache:      cache,
		logger:     logger,
	}
}

// GetReservation returns the candidate's current reservation view, or nil
// when they hold no place.
func (s *Service) GetReservation(ctx context.Context, candidateID id.CandidateID) (*models.Reservation, error) {
	place, err := s.places.FindByCandidate(ctx, candidateID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find reservation: %w", err)
	}
	centre, err := s.centres.FindByID(ctx, place.CentreID)
	if err != nil {
		return nil, fmt.Errorf("resolve centre %s: %w", place.CentreID, err)
	}
	return &models.Reservation{
		Place:      *place,
		Centre:     *centre,
		Department: centre.Department,
	}, nil
}

// ListAvailableSlots returns the distinct free date-times visible to the
// candidate within the clamped window. rules.ErrETGExpired and
// rules.ErrETGMissing pass through so the handler can answer with a dedicated
// error rather than an empty list.
func (s *Service) ListAvailableSlots(ctx context.Context, candidateID id.CandidateID, centreID id.CentreID, reqBegin, reqEnd *time.Time) ([]time.Time, error) {
	cand, err := s.resolveCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}

	now := s.engine.Calendar().In(requestcontext.Now(ctx))
	begin, end, err := s.engine.VisibleWindow(reqBegin, reqEnd, *cand, now)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if dates, ok := s.cache.Get(ctx, centreID, begin, end); ok {
			return dates, nil
		}
	}

	dates, err := s.places.ListAvailable(ctx, centreID, begin, end)
	if err != nil {
		return nil, fmt.Errorf("list available slots: %w", err)
	}
	if s.cache != nil {
		s.cache.Set(ctx, centreID, begin, end, dates)
	}
	return dates, nil
}

// Book runs one booking attempt. An existing reservation is treated as a
// modification: the new place is assigned first, then the old one is
// released with its own penalty evaluation.
func (s *Service) Book(ctx context.Context, candidateID id.CandidateID, centreID id.CentreID, requestedAt time.Time) (*BookResult, error) {
	cand, err := s.resolveCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	centre, err := s.centres.FindByID(ctx, centreID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeBadRequest, "Centre d'examen inconnu")
		}
		return nil, fmt.Errorf("resolve centre %s: %w", centreID, err)
	}

	cal := s.engine.Calendar()
	now := cal.In(requestcontext.Now(ctx))
	requestedAt = cal.In(requestedAt)

	existing, err := s.places.FindByCandidate(ctx, candidateID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, fmt.Errorf("find existing reservation: %w", err)
	}

	// Idempotence guard: re-requesting the held slot mutates nothing.
	if existing != nil && existing.CentreID == centreID && existing.At.Equal(requestedAt) {
		return s.reject(ctx, cand, centre, requestedAt, Rejection{
			Reason:  RejectSameSlot,
			Message: "Vous avez déjà une réservation sur ce créneau.",
		}), nil
	}

	if rej := s.eligibilityGate(cand, existing, requestedAt, now); rej != nil {
		return s.reject(ctx, cand, centre, requestedAt, *rej), nil
	}

	place, err := s.places.FindAndAssign(ctx, candidateID, centreID, requestedAt, now)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return s.reject(ctx, cand, centre, requestedAt, Rejection{
				Reason:  RejectNoSlot,
				Message: "Cette place n'est plus disponible. Veuillez choisir un autre créneau.",
			}), nil
		}
		return nil, fmt.Errorf("assign place: %w", err)
	}

	// From here the booking is durable. Releasing the previous place and
	// mailing are follow-ups that must not undo the assignment.
	isModification := existing != nil
	if isModification {
		if err := s.releaseHeldPlace(ctx, cand, existing, now, models.ArchiveReasonModified); err != nil {
			s.logger.ErrorContext(ctx, "release previous place after modification",
				"error", err,
				"candidate_id", cand.ID,
				"place_id", existing.ID,
			)
		}
	}

	reservation := &models.Reservation{
		Place:      *place,
		Centre:     *centre,
		Department: centre.Department,
	}

	statusMail := true
	if err := s.notifier.SendBookingConfirmation(ctx, cand.Email, *reservation); err != nil {
		statusMail = false
		s.metrics.IncMailFailure("booking")
		s.logger.WarnContext(ctx, "booking confirmation mail failed",
			"error", err,
			"candidate_id", cand.ID,
			"centre", centre.Name,
			"place_at", place.At,
		)
	}

	s.metrics.BookingsTotal.Inc()
	action := audit.ActionPlaceBooked
	if isModification {
		action = audit.ActionPlaceModified
	}
	s.recorder.Emit(ctx, audit.Event{
		CandidateID: cand.ID,
		Action:      action,
		CentreID:    centre.ID.String(),
		PlaceAt:     place.At.Format(time.RFC3339),
	})
	s.invalidateListings(ctx, centreID, existing)

	return &BookResult{
		Reservation: reservation,
		StatusMail:  statusMail,
		Message:     "Votre réservation à l'examen pratique a bien été prise en compte.",
	}, nil
}

// Cancel releases the candidate's current reservation. The penalty, when one
// applies, is persisted before the slot is freed: a crash in between leaves a
// recorded penalty with the slot still held, which reconciliation can fix,
// never a freed slot with no penalty.
func (s *Service) Cancel(ctx context.Context, candidateID id.CandidateID) (*CancelResult, error) {
	cand, err := s.resolveCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	place, err := s.places.FindByCandidate(ctx, candidateID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "Vous n'avez pas de réservation en cours")
		}
		return nil, fmt.Errorf("find reservation: %w", err)
	}
	centre, err := s.centres.FindByID(ctx, place.CentreID)
	if err != nil {
		return nil, fmt.Errorf("resolve centre %s: %w", place.CentreID, err)
	}

	now := s.engine.Calendar().In(requestcontext.Now(ctx))

	penaltyUntil, err := s.applyPenaltyIfLate(ctx, cand, place, now)
	if err != nil {
		return nil, err
	}

	if err := s.places.Release(ctx, place.ID, cand.ID); err != nil {
		return nil, fmt.Errorf("release place: %w", err)
	}
	if err := s.archives.Append(ctx, models.ArchivedPlace{
		CandidateID: cand.ID,
		CentreID:    place.CentreID,
		At:          place.At,
		Reason:      models.ArchiveReasonCancelled,
		ArchivedAt:  now,
	}); err != nil {
		s.logger.ErrorContext(ctx, "archive cancelled place",
			"error", err,
			"candidate_id", cand.ID,
			"place_id", place.ID,
		)
	}

	statusMail := true
	if err := s.notifier.SendCancellationNotice(ctx, cand.Email, *cand, *place, *centre, penaltyUntil); err != nil {
		statusMail = false
		s.metrics.IncMailFailure("cancellation")
		s.logger.WarnContext(ctx, "cancellation mail failed",
			"error", err,
			"candidate_id", cand.ID,
			"place_at", place.At,
		)
	}

	s.metrics.IncCancellation(penaltyUntil != nil)
	s.recorder.Emit(ctx, audit.Event{
		CandidateID: cand.ID,
		Action:      audit.ActionPlaceCancelled,
		CentreID:    place.CentreID.String(),
		PlaceAt:     place.At.Format(time.RFC3339),
	})
	s.invalidateListings(ctx, place.CentreID, nil)

	result := &CancelResult{
		StatusMail:   statusMail,
		PenaltyUntil: penaltyUntil,
		Message:      "Votre annulation a bien été prise en compte.",
	}
	if penaltyUntil != nil {
		result.Message = fmt.Sprintf(
			"Votre annulation a bien été prise en compte. Cependant, en raison du délai d'annulation, vous ne pourrez réserver une nouvelle place qu'à partir du %s.",
			penaltyUntil.Format(dateOnlyLayout),
		)
	}
	return result, nil
}

// eligibilityGate applies the temporal rules to one booking attempt. Returns
// nil when the requested date is bookable.
func (s *Service) eligibilityGate(cand *models.Candidate, existing *models.Place, requestedAt, now time.Time) *Rejection {
	cutoff, ok := s.engine.ETGExpiryCutoff(*cand)
	if !ok || requestedAt.After(cutoff) {
		return &Rejection{
			Reason:  RejectETGExpired,
			Message: "Votre code de la route n'est plus valide à cette date.",
		}
	}

	// Holding a slot whose cancellation would be penalized gates the new
	// booking on the restriction recomputed from the held slot: the request
	// must land strictly after it.
	if existing != nil && !s.engine.CanCancelWithoutPenalty(existing.At, now) {
		restriction := s.engine.NextEligibleDateAfterFailure(*cand, existing.At)
		if !requestedAt.After(restriction) {
			return &Rejection{
				Reason:       RejectNotYetAllowed,
				Message:      notYetAllowedMessage(restriction),
				EligibleFrom: &restriction,
			}
		}
		return nil
	}

	eligible := s.engine.EarliestBookableDate(*cand, now)
	if requestedAt.Before(eligible) {
		return &Rejection{
			Reason:       RejectNotYetAllowed,
			Message:      notYetAllowedMessage(eligible),
			EligibleFrom: &eligible,
		}
	}
	return nil
}

// releaseHeldPlace frees the previous place during a modification, applying
// its penalty first, then archiving it. No cancellation mail: the candidate
// gets the new convocation instead.
func (s *Service) releaseHeldPlace(ctx context.Context, cand *models.Candidate, place *models.Place, now time.Time, reason models.ArchiveReason) error {
	if _, err := s.applyPenaltyIfLate(ctx, cand, place, now); err != nil {
		return err
	}
	if err := s.places.Release(ctx, place.ID, cand.ID); err != nil {
		return fmt.Errorf("release place: %w", err)
	}
	if err := s.archives.Append(ctx, models.ArchivedPlace{
		CandidateID: cand.ID,
		CentreID:    place.CentreID,
		At:          place.At,
		Reason:      reason,
		ArchivedAt:  now,
	}); err != nil {
		return fmt.Errorf("archive place: %w", err)
	}
	return nil
}

// applyPenaltyIfLate persists the booking restriction when the place is
// cancelled inside its blackout window. Returns the restriction when one was
// applied.
func (s *Service) applyPenaltyIfLate(ctx context.Context, cand *models.Candidate, place *models.Place, now time.Time) (*time.Time, error) {
	if s.engine.CanCancelWithoutPenalty(place.At, now) {
		return nil, nil
	}
	restriction := s.engine.NextEligibleDateAfterFailure(*cand, place.At)
	if err := s.candidates.UpdateCanBookFrom(ctx, cand.ID, restriction); err != nil {
		return nil, fmt.Errorf("persist booking restriction: %w", err)
	}
	cand.CanBookFrom = &restriction
	s.recorder.Emit(ctx, audit.Event{
		CandidateID: cand.ID,
		Action:      audit.ActionPenaltyApplied,
		CentreID:    place.CentreID.String(),
		PlaceAt:     place.At.Format(time.RFC3339),
		Reason:      restriction.Format(dateOnlyLayout),
	})
	return &restriction, nil
}

func (s *Service) reject(ctx context.Context, cand *models.Candidate, centre *models.ExamCentre, requestedAt time.Time, rej Rejection) *BookResult {
	s.metrics.IncBookingRejected(string(rej.Reason))
	s.recorder.Emit(ctx, audit.Event{
		CandidateID: cand.ID,
		Action:      audit.ActionBookingRejected,
		CentreID:    centre.ID.String(),
		PlaceAt:     requestedAt.Format(time.RFC3339),
		Reason:      string(rej.Reason),
	})
	return &BookResult{Rejection: &rej, StatusMail: true, Message: rej.Message}
}

func (s *Service) resolveCandidate(ctx context.Context, candidateID id.CandidateID) (*models.Candidate, error) {
	cand, err := s.candidates.FindByID(ctx, candidateID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "Candidat introuvable")
		}
		return nil, fmt.Errorf("resolve candidate %s: %w", candidateID, err)
	}
	return cand, nil
}

func (s *Service) invalidateListings(ctx context.Context, centreID id.CentreID, previous *models.Place) {
	if s.cache == nil {
		return
	}
	s.cache.Invalidate(ctx, centreID)
	if previous != nil && previous.CentreID != centreID {
		s.cache.Invalidate(ctx, previous.CentreID)
	}
}

func notYetAllowedMessage(eligible time.Time) string {
	return fmt.Sprintf("Vous ne pouvez réserver une place qu'à partir du %s.", eligible.Format(dateOnlyLayout))
}
