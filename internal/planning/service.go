// Package planning imports exam-centre schedules. A planning CSV carries one
// row per inspector and time slot; importing it creates that many places in
// the shared pool.
package planning

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"candilib/internal/booking/models"
	"candilib/internal/civiltime"
	"candilib/internal/platform/metrics"
	id "candilib/pkg/domain"
	"candilib/pkg/platform/audit"
	"candilib/pkg/platform/sentinel"
)

// CSV layout: date;heure;inspecteur;centre;departement
const (
	csvColumns = 5
	dateLayout = "02/01/06"
	hourLayout = "15:04"
)

// PlaceStore is the slice of the slot pool the importer needs.
type PlaceStore interface {
	BulkCreate(ctx context.Context, places []*models.Place) error
	DeleteUnassigned(ctx context.Context, centreID id.CentreID, at time.Time) (int64, error)
}

// CentreStore resolves and creates centres during import.
type CentreStore interface {
	FindByNameAndDepartment(ctx context.Context, name, department string) (*models.ExamCentre, error)
	Save(ctx context.Context, c *models.ExamCentre) error
}

// ImportReport summarizes one CSV import. Row errors don't abort the import;
// valid rows still land.
type ImportReport struct {
	Created int
	Errors  []string
}

// Service implements planning administration.
type Service struct {
	places   PlaceStore
	centres  CentreStore
	cal      civiltime.Calendar
	recorder *audit.Recorder
	metrics  *metrics.Metrics
}

func NewService(places PlaceStore, centres CentreStore, cal civiltime.Calendar, recorder *audit.Recorder, m *metrics.Metrics) *Service {
	return &Service{
		places:   places,
		centres:  centres,
		cal:      cal,
		recorder: recorder,
		metrics:  m,
	}
}

// ImportCSV parses a planning file and creates its places. Unknown centres
// are created on the fly; malformed rows are reported and skipped.
func (s *Service) ImportCSV(ctx context.Context, r io.Reader) (*ImportReport, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = csvColumns

	// Header row.
	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty planning file")
		}
		return nil, fmt.Errorf("read planning header: %w", err)
	}

	report := &ImportReport{}
	centreCache := make(map[string]*models.ExamCentre)
	var places []*models.Place

	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("ligne %d: %v", line, err))
			continue
		}

		at, err := s.parseSlotTime(record[0], record[1])
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("ligne %d: %v", line, err))
			continue
		}

		centreName := strings.TrimSpace(record[3])
		department := strings.TrimSpace(record[4])
		if centreName == "" || department == "" {
			report.Errors = append(report.Errors, fmt.Sprintf("ligne %d: centre ou departement manquant", line))
			continue
		}

		centre, err := s.resolveCentre(ctx, centreCache, centreName, department)
		if err != nil {
			return nil, err
		}

		places = append(places, &models.Place{
			ID:       id.NewPlaceID(),
			CentreID: centre.ID,
			At:       at,
		})
	}

	if len(places) > 0 {
		if err := s.places.BulkCreate(ctx, places); err != nil {
			return nil, fmt.Errorf("create planning places: %w", err)
		}
	}
	report.Created = len(places)

	s.metrics.PlacesImported.Add(float64(report.Created))
	s.recorder.Emit(ctx, audit.Event{
		Action: audit.ActionPlanningImported,
		Reason: fmt.Sprintf("%d places", report.Created),
	})
	return report, nil
}

// DeleteUnassignedDay withdraws the free places of a centre at one date-time.
// Booked places survive: withdrawing a candidate's reservation is a
// cancellation, not a planning edit.
func (s *Service) DeleteUnassignedDay(ctx context.Context, centreID id.CentreID, at time.Time) (int64, error) {
	n, err := s.places.DeleteUnassigned(ctx, centreID, s.cal.In(at))
	if err != nil {
		return 0, fmt.Errorf("delete planning places: %w", err)
	}
	s.recorder.Emit(ctx, audit.Event{
		Action:   audit.ActionPlanningDeleted,
		CentreID: centreID.String(),
		PlaceAt:  at.Format(time.RFC3339),
		Reason:   fmt.Sprintf("%d places", n),
	})
	return n, nil
}

func (s *Service) parseSlotTime(rawDate, rawHour string) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, strings.TrimSpace(rawDate), s.cal.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("date invalide %q", rawDate)
	}
	h, err := time.Parse(hourLayout, strings.TrimSpace(rawHour))
	if err != nil {
		return time.Time{}, fmt.Errorf("heure invalide %q", rawHour)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), h.Hour(), h.Minute(), 0, 0, s.cal.Location()), nil
}

func (s *Service) resolveCentre(ctx context.Context, cache map[string]*models.ExamCentre, name, department string) (*models.ExamCentre, error) {
	key := name + "|" + department
	if c, ok := cache[key]; ok {
		return c, nil
	}

	centre, err := s.centres.FindByNameAndDepartment(ctx, name, department)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, fmt.Errorf("resolve centre %s (%s): %w", name, department, err)
		}
		centre = &models.ExamCentre{
			ID:         id.NewCentreID(),
			Name:       name,
			Department: department,
		}
		if err := s.centres.Save(ctx, centre); err != nil {
			return nil, fmt.Errorf("create centre %s (%s): %w", name, department, err)
		}
	}
	cache[key] = centre
	return centre, nil
}
