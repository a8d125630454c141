package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"candilib/internal/booking/models"
	"candilib/internal/booking/rules"
	"candilib/internal/booking/store/archive"
	"candilib/internal/booking/store/candidate"
	"candilib/internal/booking/store/centre"
	"candilib/internal/booking/store/place"
	"candilib/internal/civiltime"
	"candilib/internal/notification/mocks"
	"candilib/internal/platform/metrics"
	id "candilib/pkg/domain"
	dErrors "candilib/pkg/domain-errors"
	"candilib/pkg/platform/audit"
	"candilib/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite

	cal        civiltime.Calendar
	ctrl       *gomock.Controller
	notifier   *mocks.MockNotifier
	places     *place.InMemoryStore
	candidates *candidate.InMemoryStore
	centres    *centre.InMemoryStore
	archives   *archive.InMemoryStore
	svc        *Service

	now        time.Time
	ctx        context.Context
	cand       *models.Candidate
	examCentre *models.ExamCentre
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.cal = civiltime.MustCalendar("Europe/Paris")
	s.ctrl = gomock.NewController(s.T())
	s.notifier = mocks.NewMockNotifier(s.ctrl)
	s.places = place.NewMemory()
	s.candidates = candidate.NewMemory()
	s.centres = centre.NewMemory()
	s.archives = archive.NewMemory()

	cfg := rules.Rules{
		DelayToBookDays:  0,
		ForbidCancelDays: 2,
		RetryTimeoutDays: 45,
		ETGValidityYears: 5,
		VisibleMonths:    3,
	}
	engine := rules.NewEngine(cfg, s.cal)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.svc = New(
		engine,
		s.places,
		s.candidates,
		s.centres,
		s.archives,
		s.notifier,
		audit.NopRecorder(),
		metrics.NewWith(prometheus.NewRegistry()),
		nil,
		logger,
	)

	s.now = time.Date(2024, 6, 1, 10, 0, 0, 0, s.cal.Location())
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	etg := time.Date(2023, 1, 15, 9, 0, 0, 0, s.cal.Location())
	s.cand = &models.Candidate{
		ID:             id.NewCandidateID(),
		Email:          "jean.dupont@example.com",
		FirstName:      "Jean",
		LastName:       "Dupont",
		NEPH:           "012345678901",
		Department:     "93",
		ETGSucceededAt: &etg,
	}
	s.Require().NoError(s.candidates.Save(s.ctx, s.cand))

	s.examCentre = &models.ExamCentre{
		ID:         id.NewCentreID(),
		Name:       "Bobigny",
		Department: "93",
		Address:    "1 rue de la Paix",
	}
	s.Require().NoError(s.centres.Save(s.ctx, s.examCentre))
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) addPlace(at time.Time) *models.Place {
	p := &models.Place{ID: id.NewPlaceID(), CentreID: s.examCentre.ID, At: at}
	s.Require().NoError(s.places.BulkCreate(s.ctx, []*models.Place{p}))
	return p
}

func (s *ServiceSuite) bookHeldPlace(at time.Time) *models.Place {
	s.addPlace(at)
	held, err := s.places.FindAndAssign(s.ctx, s.cand.ID, s.examCentre.ID, at, s.now)
	s.Require().NoError(err)
	return held
}

func (s *ServiceSuite) TestBookSuccess() {
	slotAt := s.cal.AddDays(s.now, 1)
	s.addPlace(slotAt)
	s.notifier.EXPECT().
		SendBookingConfirmation(gomock.Any(), s.cand.Email, gomock.Any()).
		Return(nil)

	result, err := s.svc.Book(s.ctx, s.cand.ID, s.examCentre.ID, slotAt)

	s.Require().NoError(err)
	s.Require().Nil(result.Rejection)
	s.Require().NotNil(result.Reservation)
	s.True(result.StatusMail)
	s.True(result.Reservation.Place.At.Equal(slotAt))
	s.Equal(s.examCentre.Name, result.Reservation.Centre.Name)

	held, err := s.places.FindByCandidate(s.ctx, s.cand.ID)
	s.Require().NoError(err)
	s.Equal(s.cand.ID, *held.BookedBy)
}

func (s *ServiceSuite) TestBookCommitsWhenMailFails() {
	slotAt := s.cal.AddDays(s.now, 1)
	s.addPlace(slotAt)
	s.notifier.EXPECT().
		SendBookingConfirmation(gomock.Any(), s.cand.Email, gomock.Any()).
		Return(errors.New("smtp down"))

	result, err := s.svc.Book(s.ctx, s.cand.ID, s.examCentre.ID, slotAt)

	s.Require().NoError(err)
	s.Require().NotNil(result.Reservation)
	s.False(result.StatusMail)

	// The assignment survived the mail failure.
	held, err := s.places.FindByCandidate(s.ctx, s.cand.ID)
	s.Require().NoError(err)
	s.True(held.At.Equal(slotAt))
}

func (s *ServiceSuite) TestBookSameSlotRejected() {
	slotAt := s.cal.AddDays(s.now, 10)
	held := s.bookHeldPlace(slotAt)

	result, err := s.svc.Book(s.ctx, s.cand.ID, s.examCentre.ID, slotAt)

	s.Require().NoError(err)
	s.Require().NotNil(result.Rejection)
	s.Equal(RejectSameSlot, result.Rejection.Reason)

	// Idempotence: nothing moved.
	still, err := s.places.FindByCandidate(s.ctx, s.cand.ID)
	s.Require().NoError(err)
	s.Equal(held.ID, still.ID)
	s.Empty(s.archives.All())
}

func (s *ServiceSuite) TestBookBeforeEligibleDateRejected() {
	restriction := s.cal.AddDays(s.now, 30)
	s.cand.CanBookFrom = &restriction
	s.Require().NoError(s.candidates.Save(s.ctx, s.cand))

	slotAt := s.cal.AddDays(s.now, 10)
	s.addPlace(slotAt)

	result, err := s.svc.Book(s.ctx, s.cand.ID, s.examCentre.ID, slotAt)

	s.Require().NoError(err)
	s.Require().NotNil(result.Rejection)
	s.Equal(RejectNotYetAllowed, result.Rejection.Reason)
	s.Require().NotNil(result.Rejection.EligibleFrom)
	s.True(result.Rejection.EligibleFrom.Equal(restriction))
	s.Contains(result.Rejection.Message, restriction.Format("02/01/2006"))
}

func (s *ServiceSuite) TestBookNoAvailableSlot() {
	slotAt := s.cal.AddDays(s.now, 5)
	// No place created: the pool has nothing at the requested time.
	result, err := s.svc.Book(s.ctx, s.cand.ID, s.examCentre.ID, slotAt)

	s.Require().NoError(err)
	s.Require().NotNil(result.Rejection)
	s.Equal(RejectNoSlot, result.Rejection.Reason)
}

func (s *ServiceSuite) TestBookPastETGExpiryRejected() {
	old := time.Date(2019, 3, 1, 9, 0, 0, 0, s.cal.Location())
	s.cand.ETGSucceededAt = &old
	s.Require().NoError(s.candidates.Save(s.ctx, s.cand))

	// Validity ended 2024-03-01 end of day; request lands past it.
	slotAt := s.cal.AddDays(s.now, 10)
	s.addPlace(slotAt)

	result, err := s.svc.Book(s.ctx, s.cand.ID, s.examCentre.ID, slotAt)

	s.Require().NoError(err)
	s.Require().NotNil(result.Rejection)
	s.Equal(RejectETGExpired, result.Rejection.Reason)
}

func (s *ServiceSuite) TestBookModificationReleasesPreviousPlace() {
	oldAt := s.cal.AddDays(s.now, 20)
	held := s.bookHeldPlace(oldAt)

	newAt := s.cal.AddDays(s.now, 25)
	s.addPlace(newAt)
	s.notifier.EXPECT().
		SendBookingConfirmation(gomock.Any(), s.cand.Email, gomock.Any()).
		Return(nil)

	result, err := s.svc.Book(s.ctx, s.cand.ID, s.examCentre.ID, newAt)

	s.Require().NoError(err)
	s.Require().NotNil(result.Reservation)
	s.True(result.Reservation.Place.At.Equal(newAt))

	// The candidate now holds only the new place.
	held2, err := s.places.FindByCandidate(s.ctx, s.cand.ID)
	s.Require().NoError(err)
	s.True(held2.At.Equal(newAt))
	s.NotEqual(held.ID, held2.ID)

	entries := s.archives.All()
	s.Require().Len(entries, 1)
	s.Equal(models.ArchiveReasonModified, entries[0].Reason)
	s.True(entries[0].At.Equal(oldAt))

	// Far-away slot: no penalty on the switch.
	cand, err := s.candidates.FindByID(s.ctx, s.cand.ID)
	s.Require().NoError(err)
	s.Nil(cand.CanBookFrom)
}

func (s *ServiceSuite) TestBookInsideHeldSlotPenaltyWindow() {
	// Held slot is tomorrow: cancelling it now would be penalized, so the
	// new booking is gated by the restriction recomputed from that slot.
	heldAt := s.cal.AddDays(s.now, 1)
	s.bookHeldPlace(heldAt)

	restriction := s.cal.AddDays(s.cal.EndOfDay(heldAt), 45)

	s.Run("on the restriction date is still rejected", func() {
		result, err := s.svc.Book(s.ctx, s.cand.ID, s.examCentre.ID, restriction)
		s.Require().NoError(err)
		s.Require().NotNil(result.Rejection)
		s.Equal(RejectNotYetAllowed, result.Rejection.Reason)
	})

	s.Run("strictly after the restriction succeeds", func() {
		newAt := s.cal.AddDays(restriction, 1)
		s.addPlace(newAt)
		s.notifier.EXPECT().
			SendBookingConfirmation(gomock.Any(), s.cand.Email, gomock.Any()).
			Return(nil)

		result, err := s.svc.Book(s.ctx, s.cand.ID, s.examCentre.ID, newAt)

		s.Require().NoError(err)
		s.Require().NotNil(result.Reservation)

		// Switching away from a slot inside its blackout applied the penalty.
		cand, err := s.candidates.FindByID(s.ctx, s.cand.ID)
		s.Require().NoError(err)
		s.Require().NotNil(cand.CanBookFrom)
		s.True(cand.CanBookFrom.Equal(restriction))
	})
}

func (s *ServiceSuite) TestCancelWithoutPenalty() {
	slotAt := s.cal.AddDays(s.now, 10)
	held := s.bookHeldPlace(slotAt)

	s.notifier.EXPECT().
		SendCancellationNotice(gomock.Any(), s.cand.Email, gomock.Any(), gomock.Any(), gomock.Any(), gomock.Nil()).
		Return(nil)

	result, err := s.svc.Cancel(s.ctx, s.cand.ID)

	s.Require().NoError(err)
	s.True(result.StatusMail)
	s.Nil(result.PenaltyUntil)
	s.Equal("Votre annulation a bien été prise en compte.", result.Message)

	_, err = s.places.FindByCandidate(s.ctx, s.cand.ID)
	s.Error(err)

	entries := s.archives.All()
	s.Require().Len(entries, 1)
	s.Equal(models.ArchiveReasonCancelled, entries[0].Reason)
	s.Equal(held.CentreID, entries[0].CentreID)

	cand, err := s.candidates.FindByID(s.ctx, s.cand.ID)
	s.Require().NoError(err)
	s.Nil(cand.CanBookFrom)
}

func (s *ServiceSuite) TestCancelInsideBlackoutAppliesPenalty() {
	// Slot 2024-06-10 09:00, cancelled on 2024-06-09 with a 2-day blackout.
	slotAt := time.Date(2024, 6, 10, 9, 0, 0, 0, s.cal.Location())
	cancelNow := time.Date(2024, 6, 9, 11, 0, 0, 0, s.cal.Location())
	ctx := requestcontext.WithTime(context.Background(), cancelNow)

	s.addPlace(slotAt)
	_, err := s.places.FindAndAssign(ctx, s.cand.ID, s.examCentre.ID, slotAt, cancelNow)
	s.Require().NoError(err)

	s.notifier.EXPECT().
		SendCancellationNotice(gomock.Any(), s.cand.Email, gomock.Any(), gomock.Any(), gomock.Any(), gomock.Not(gomock.Nil())).
		Return(nil)

	result, err := s.svc.Cancel(ctx, s.cand.ID)

	s.Require().NoError(err)
	s.Require().NotNil(result.PenaltyUntil)

	expected := s.cal.AddDays(s.cal.EndOfDay(slotAt), 45)
	s.True(result.PenaltyUntil.Equal(expected))
	s.Contains(result.Message, expected.Format("02/01/2006"))

	cand, err := s.candidates.FindByID(ctx, s.cand.ID)
	s.Require().NoError(err)
	s.Require().NotNil(cand.CanBookFrom)
	s.True(cand.CanBookFrom.Equal(expected))
}

func (s *ServiceSuite) TestCancelPenaltyIsMonotonic() {
	// A stored restriction later than the newly computed one must survive.
	slotAt := s.cal.AddDays(s.now, 1)
	s.bookHeldPlace(slotAt)

	later := s.cal.AddDays(s.cal.EndOfDay(slotAt), 90)
	s.cand.CanBookFrom = &later
	s.Require().NoError(s.candidates.Save(s.ctx, s.cand))

	s.notifier.EXPECT().
		SendCancellationNotice(gomock.Any(), s.cand.Email, gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil)

	_, err := s.svc.Cancel(s.ctx, s.cand.ID)
	s.Require().NoError(err)

	cand, err := s.candidates.FindByID(s.ctx, s.cand.ID)
	s.Require().NoError(err)
	s.Require().NotNil(cand.CanBookFrom)
	s.True(cand.CanBookFrom.Equal(later))
}

func (s *ServiceSuite) TestCancelMailFailureStillCommits() {
	slotAt := s.cal.AddDays(s.now, 10)
	s.bookHeldPlace(slotAt)

	s.notifier.EXPECT().
		SendCancellationNotice(gomock.Any(), s.cand.Email, gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(errors.New("smtp down"))

	result, err := s.svc.Cancel(s.ctx, s.cand.ID)

	s.Require().NoError(err)
	s.False(result.StatusMail)

	_, err = s.places.FindByCandidate(s.ctx, s.cand.ID)
	s.Error(err)
}

func (s *ServiceSuite) TestCancelWithoutReservation() {
	_, err := s.svc.Cancel(s.ctx, s.cand.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestGetReservation() {
	s.Run("none", func() {
		res, err := s.svc.GetReservation(s.ctx, s.cand.ID)
		s.Require().NoError(err)
		s.Nil(res)
	})

	s.Run("current", func() {
		slotAt := s.cal.AddDays(s.now, 10)
		s.bookHeldPlace(slotAt)

		res, err := s.svc.GetReservation(s.ctx, s.cand.ID)
		s.Require().NoError(err)
		s.Require().NotNil(res)
		s.True(res.Place.At.Equal(slotAt))
		s.Equal(s.examCentre.Name, res.Centre.Name)
		s.Equal("93", res.Department)
	})
}

func (s *ServiceSuite) TestListAvailableSlots() {
	s.Run("visible window listing", func() {
		in := s.cal.AddDays(s.now, 10)
		s.addPlace(in)
		s.addPlace(s.cal.AddMonths(s.now, 4)) // beyond the 3 visible months

		dates, err := s.svc.ListAvailableSlots(s.ctx, s.cand.ID, s.examCentre.ID, nil, nil)
		s.Require().NoError(err)
		s.Require().Len(dates, 1)
		s.True(dates[0].Equal(in))
	})

	s.Run("expired theory test is an error, not an empty list", func() {
		old := time.Date(2017, 3, 1, 9, 0, 0, 0, s.cal.Location())
		s.cand.ETGSucceededAt = &old
		s.Require().NoError(s.candidates.Save(s.ctx, s.cand))

		_, err := s.svc.ListAvailableSlots(s.ctx, s.cand.ID, s.examCentre.ID, nil, nil)
		s.Require().ErrorIs(err, rules.ErrETGExpired)
	})
}
