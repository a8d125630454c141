// Package notification is the outbound mail gateway. Sending is always
// best-effort from the orchestrator's point of view: a failed mail downgrades
// the reported status, it never rolls back a booking.
package notification

import (
	"context"
	"time"

	"candilib/internal/booking/models"
)

//go:generate mockgen -source=notifier.go -destination=mocks/mock_notifier.go -package=mocks

// Notifier sends candidate-facing mail.
type Notifier interface {
	// SendBookingConfirmation mails the convocation for a fresh reservation.
	SendBookingConfirmation(ctx context.Context, to string, reservation models.Reservation) error

	// SendCancellationNotice mails the cancellation receipt. penaltyUntil is
	// set when the cancellation triggered a booking restriction.
	SendCancellationNotice(ctx context.Context, to string, candidate models.Candidate, place models.Place, centre models.ExamCentre, penaltyUntil *time.Time) error

	// SendMagicLink mails a connection link to a whitelisted candidate.
	SendMagicLink(ctx context.Context, to, link string) error
}
