package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"candilib/internal/booking/models"
	"candilib/internal/civiltime"
)

type EngineSuite struct {
	suite.Suite
	cal civiltime.Calendar
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupSuite() {
	s.cal = civiltime.MustCalendar("Europe/Paris")
}

func (s *EngineSuite) date(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, s.cal.Location())
}

func (s *EngineSuite) engine(r Rules) Engine {
	return NewEngine(r, s.cal)
}

func (s *EngineSuite) TestEarliestBookableDate() {
	now := s.date(2024, time.June, 3, 11, 30)

	s.Run("no configured delay defaults to end of today", func() {
		e := s.engine(Rules{DelayToBookDays: 0})
		got := e.EarliestBookableDate(models.Candidate{}, now)
		s.Equal(s.cal.EndOfDay(now), got)
	})

	s.Run("configured delay advances to start of day", func() {
		e := s.engine(Rules{DelayToBookDays: 7})
		got := e.EarliestBookableDate(models.Candidate{}, now)
		s.Equal(s.date(2024, time.June, 10, 0, 0), got)
	})

	s.Run("later CanBookFrom overrides the default", func() {
		e := s.engine(Rules{DelayToBookDays: 7})
		restriction := s.date(2024, time.July, 20, 23, 59)
		got := e.EarliestBookableDate(models.Candidate{CanBookFrom: &restriction}, now)
		s.True(got.Equal(restriction))
	})

	s.Run("earlier CanBookFrom does not shorten the default", func() {
		e := s.engine(Rules{DelayToBookDays: 7})
		restriction := s.date(2024, time.June, 5, 0, 0)
		got := e.EarliestBookableDate(models.Candidate{CanBookFrom: &restriction}, now)
		s.Equal(s.date(2024, time.June, 10, 0, 0), got)
	})
}

func (s *EngineSuite) TestCancellationPenaltyWindow() {
	placeAt := s.date(2024, time.June, 10, 9, 0)

	s.Run("last penalty-free date floors to start of day", func() {
		e := s.engine(Rules{ForbidCancelDays: 2})
		s.Equal(s.date(2024, time.June, 8, 0, 0), e.LastPenaltyFreeCancelDate(placeAt))
	})

	s.Run("cancelling one day before incurs a penalty", func() {
		e := s.engine(Rules{ForbidCancelDays: 2})
		now := s.date(2024, time.June, 9, 10, 0)
		s.False(e.CanCancelWithoutPenalty(placeAt, now))
	})

	s.Run("cancelling exactly on the last penalty-free day is free", func() {
		e := s.engine(Rules{ForbidCancelDays: 2})
		now := s.date(2024, time.June, 8, 23, 45)
		s.True(e.CanCancelWithoutPenalty(placeAt, now))
	})

	s.Run("cancelling well before the blackout is free", func() {
		e := s.engine(Rules{ForbidCancelDays: 7})
		now := s.date(2024, time.May, 12, 9, 0)
		s.True(e.CanCancelWithoutPenalty(placeAt, now))
	})
}

func (s *EngineSuite) TestNextEligibleDateAfterFailure() {
	examAt := s.date(2024, time.June, 10, 9, 0)

	s.Run("adds the retry timeout to the exam day's end", func() {
		e := s.engine(Rules{RetryTimeoutDays: 45})
		got := e.NextEligibleDateAfterFailure(models.Candidate{}, examAt)
		s.Equal(s.cal.AddDays(s.cal.EndOfDay(examAt), 45), got)
		s.Equal(s.date(2024, time.July, 25, 23, 59).Truncate(time.Minute), got.Truncate(time.Minute))
	})

	s.Run("a later stored restriction is kept", func() {
		e := s.engine(Rules{RetryTimeoutDays: 45})
		later := s.date(2024, time.September, 1, 0, 0)
		got := e.NextEligibleDateAfterFailure(models.Candidate{CanBookFrom: &later}, examAt)
		s.True(got.Equal(later))
	})

	s.Run("an earlier stored restriction never wins", func() {
		e := s.engine(Rules{RetryTimeoutDays: 45})
		earlier := s.date(2024, time.June, 1, 0, 0)
		got := e.NextEligibleDateAfterFailure(models.Candidate{CanBookFrom: &earlier}, examAt)
		s.Equal(s.cal.AddDays(s.cal.EndOfDay(examAt), 45), got)
	})
}

func (s *EngineSuite) TestETGExpiryCutoff() {
	s.Run("no theory success means no cutoff", func() {
		e := s.engine(Default())
		_, ok := e.ETGExpiryCutoff(models.Candidate{})
		s.False(ok)
	})

	s.Run("cutoff is end of day, validity years later", func() {
		e := s.engine(Rules{ETGValidityYears: 5})
		etg := s.date(2020, time.March, 14, 10, 0)
		cutoff, ok := e.ETGExpiryCutoff(models.Candidate{ETGSucceededAt: &etg})
		s.True(ok)
		s.Equal(s.cal.EndOfDay(s.date(2025, time.March, 14, 0, 0)), cutoff)
	})
}

func (s *EngineSuite) TestVisibleWindow() {
	now := s.date(2024, time.June, 3, 11, 30)
	etg := s.date(2022, time.January, 10, 9, 0)
	candidate := models.Candidate{ETGSucceededAt: &etg}
	cfg := Rules{DelayToBookDays: 7, ETGValidityYears: 5, VisibleMonths: 3}

	s.Run("missing bounds fall back to computed defaults", func() {
		e := s.engine(cfg)
		begin, end, err := e.VisibleWindow(nil, nil, candidate, now)
		s.Require().NoError(err)
		s.Equal(s.date(2024, time.June, 10, 0, 0), begin)
		s.Equal(s.cal.EndOfDay(s.date(2024, time.September, 3, 0, 0)), end)
	})

	s.Run("requested begin later than earliest is honored", func() {
		e := s.engine(cfg)
		reqBegin := s.date(2024, time.July, 1, 0, 0)
		begin, _, err := e.VisibleWindow(&reqBegin, nil, candidate, now)
		s.Require().NoError(err)
		s.True(begin.Equal(reqBegin))
	})

	s.Run("requested begin earlier than earliest is clamped", func() {
		e := s.engine(cfg)
		reqBegin := s.date(2024, time.June, 4, 0, 0)
		begin, _, err := e.VisibleWindow(&reqBegin, nil, candidate, now)
		s.Require().NoError(err)
		s.Equal(s.date(2024, time.June, 10, 0, 0), begin)
	})

	s.Run("end never exceeds the theory validity cutoff", func() {
		e := s.engine(Rules{DelayToBookDays: 7, ETGValidityYears: 5, VisibleMonths: 3})
		shortETG := s.date(2019, time.August, 1, 9, 0)
		c := models.Candidate{ETGSucceededAt: &shortETG}
		_, end, err := e.VisibleWindow(nil, nil, c, now)
		s.Require().NoError(err)
		s.Equal(s.cal.EndOfDay(s.date(2024, time.August, 1, 0, 0)), end)
	})

	s.Run("expired theory test is a dedicated error, not an empty window", func() {
		e := s.engine(cfg)
		expiredETG := s.date(2019, time.May, 1, 9, 0)
		c := models.Candidate{ETGSucceededAt: &expiredETG}
		_, _, err := e.VisibleWindow(nil, nil, c, now)
		s.Require().ErrorIs(err, ErrETGExpired)
	})

	s.Run("candidate without theory success is rejected", func() {
		e := s.engine(cfg)
		_, _, err := e.VisibleWindow(nil, nil, models.Candidate{}, now)
		s.Require().ErrorIs(err, ErrETGMissing)
	})
}

// Scenario from operations: forbid-cancel 2 days, retry timeout 45 days,
// slot on 2024-06-10T09:00, cancellation on 2024-06-09.
func (s *EngineSuite) TestPenaltyScenario() {
	e := s.engine(Rules{ForbidCancelDays: 2, RetryTimeoutDays: 45})
	placeAt := s.date(2024, time.June, 10, 9, 0)
	now := s.date(2024, time.June, 9, 8, 0)

	s.False(e.CanCancelWithoutPenalty(placeAt, now))

	next := e.NextEligibleDateAfterFailure(models.Candidate{}, placeAt)
	s.Equal(s.cal.AddDays(s.cal.EndOfDay(placeAt), 45), next)
}
