package notification

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"text/template"
	"time"

	"candilib/internal/booking/models"
	"candilib/pkg/email"
)

const dateLayout = "02/01/2006 à 15h04"

var bookingTemplate = template.Must(template.New("booking").Parse(
	`Bonjour {{.FirstName}} {{.LastName}},

Votre réservation à l'examen pratique du permis de conduire est confirmée :

Centre : {{.Centre}} ({{.Department}})
Date : {{.Date}}

Présentez-vous 30 minutes avant l'heure de convocation, muni de votre pièce d'identité et de votre livret d'apprentissage.

L'équipe Candilib
`))

var cancellationTemplate = template.Must(template.New("cancellation").Parse(
	`Bonjour {{.FirstName}} {{.LastName}},

Votre réservation du {{.Date}} au centre {{.Centre}} a bien été annulée.
{{if .PenaltyUntil}}
Cette annulation étant intervenue à moins de {{.ForbidDays}} jours de la date d'examen, vous pourrez réserver une nouvelle place à partir du {{.PenaltyUntil}}.
{{end}}
L'équipe Candilib
`))

var magicLinkTemplate = template.Must(template.New("magiclink").Parse(
	`Bonjour {{.FirstName}},

Voici votre lien de connexion à Candilib :

{{.Link}}

Ce lien est valable quelques heures et ne doit pas être partagé.

L'équipe Candilib
`))

// SMTPMailer sends mail through a plain SMTP relay.
type SMTPMailer struct {
	addr       string
	from       string
	forbidDays int
	logger     *slog.Logger
}

// NewSMTPMailer builds a mailer for the given relay address ("host:port").
func NewSMTPMailer(addr, from string, forbidDays int, logger *slog.Logger) *SMTPMailer {
	return &SMTPMailer{addr: addr, from: from, forbidDays: forbidDays, logger: logger}
}

func (m *SMTPMailer) SendBookingConfirmation(ctx context.Context, to string, reservation models.Reservation) error {
	first, last := displayName(to, "", "")
	body, err := render(bookingTemplate, map[string]any{
		"FirstName":  first,
		"LastName":   last,
		"Centre":     reservation.Centre.Name,
		"Department": reservation.Department,
		"Date":       reservation.Place.At.Format(dateLayout),
	})
	if err != nil {
		return err
	}
	return m.send(ctx, to, "Convocation à l'examen pratique du permis de conduire", body)
}

func (m *SMTPMailer) SendCancellationNotice(ctx context.Context, to string, candidate models.Candidate, place models.Place, centre models.ExamCentre, penaltyUntil *time.Time) error {
	first, last := displayName(to, candidate.FirstName, candidate.LastName)
	data := map[string]any{
		"FirstName":  first,
		"LastName":   last,
		"Centre":     centre.Name,
		"Date":       place.At.Format(dateLayout),
		"ForbidDays": m.forbidDays,
	}
	if penaltyUntil != nil {
		data["PenaltyUntil"] = penaltyUntil.Format("02/01/2006")
	}
	body, err := render(cancellationTemplate, data)
	if err != nil {
		return err
	}
	return m.send(ctx, to, "Annulation de votre réservation", body)
}

func (m *SMTPMailer) SendMagicLink(ctx context.Context, to, link string) error {
	first, _ := email.DeriveNameFromEmail(to)
	body, err := render(magicLinkTemplate, map[string]any{
		"FirstName": first,
		"Link":      link,
	})
	if err != nil {
		return err
	}
	return m.send(ctx, to, "Votre lien de connexion Candilib", body)
}

func (m *SMTPMailer) send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s",
		m.from, to, subject, body)
	if err := smtp.SendMail(m.addr, nil, m.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	m.logger.InfoContext(ctx, "mail sent", "to", to, "subject", subject)
	return nil
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render mail template: %w", err)
	}
	return buf.String(), nil
}

func displayName(to, first, last string) (string, string) {
	if first != "" || last != "" {
		return first, last
	}
	return email.DeriveNameFromEmail(to)
}
