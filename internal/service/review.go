package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/kiuth/recruitment-api/internal/model"
	"github.com/kiuth/recruitment-api/internal/repository"
	"github.com/rs/zerolog/log"
)

const topDepartments = 5

// ValidationError is a client mistake; handlers answer 400 with its message
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ApplicationReviewer is the slice of the application repository the admin console needs
type ApplicationReviewer interface {
	List(ctx context.Context, filter repository.ApplicationFilter) ([]model.Application, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Application, error)
	UpdateStatus(ctx context.Context, ids []uuid.UUID, status, changedBy string) ([]model.Application, error)
	GetHistory(ctx context.Context, applicationID uuid.UUID) ([]model.StatusHistory, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
	CountByDepartment(ctx context.Context, limit int) ([]model.DepartmentCount, error)
}

// ReviewService implements the admin status workflow
type ReviewService struct {
	apps ApplicationReviewer
}

func NewReviewService(apps ApplicationReviewer) *ReviewService {
	return &ReviewService{apps: apps}
}

func (s *ReviewService) List(ctx context.Context, filter repository.ApplicationFilter) ([]model.Application, error) {
	if filter.Status != "" && !model.ValidStatus(filter.Status) {
		return nil, &ValidationError{Message: "Unknown status filter"}
	}
	return s.apps.List(ctx, filter)
}

// UpdateStatus moves one application. Any status may move to any other.
func (s *ReviewService) UpdateStatus(ctx context.Context, id uuid.UUID, status, admin string) (*model.Application, *model.ApplicationStats, error) {
	if !model.ValidStatus(status) {
		return nil, nil, &ValidationError{Message: "Status must be one of Pending, Shortlisted, Rejected"}
	}

	updated, err := s.apps.UpdateStatus(ctx, []uuid.UUID{id}, status, admin)
	if err != nil {
		return nil, nil, err
	}
	if len(updated) == 0 {
		return nil, nil, repository.ErrNotFound
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		return nil, nil, err
	}

	log.Info().Str("application_id", id.String()).Str("status", status).Str("admin", admin).Msg("Application status updated")
	return &updated[0], stats, nil
}

// BulkUpdate moves every listed application in one statement
func (s *ReviewService) BulkUpdate(ctx context.Context, ids []uuid.UUID, status string, confirm bool, admin string) ([]model.Application, *model.ApplicationStats, error) {
	if !model.ValidStatus(status) {
		return nil, nil, &ValidationError{Message: "Status must be one of Pending, Shortlisted, Rejected"}
	}
	if len(ids) == 0 {
		return nil, nil, &ValidationError{Message: "Select at least one application"}
	}
	if !confirm {
		return nil, nil, &ValidationError{Message: "Bulk updates must be confirmed"}
	}

	seen := make(map[uuid.UUID]bool, len(ids))
	unique := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	updated, err := s.apps.UpdateStatus(ctx, unique, status, admin)
	if err != nil {
		return nil, nil, err
	}
	stats, err := s.Stats(ctx)
	if err != nil {
		return nil, nil, err
	}

	log.Info().Int("requested", len(unique)).Int("updated", len(updated)).Str("status", status).Str("admin", admin).Msg("Bulk status update")
	return updated, stats, nil
}

// History returns the audit trail, ErrNotFound for unknown applications
func (s *ReviewService) History(ctx context.Context, id uuid.UUID) ([]model.StatusHistory, error) {
	app, err := s.apps.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, repository.ErrNotFound
	}
	return s.apps.GetHistory(ctx, id)
}

// Stats feeds the admin charts
func (s *ReviewService) Stats(ctx context.Context) (*model.ApplicationStats, error) {
	byStatus, err := s.apps.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	depts, err := s.apps.CountByDepartment(ctx, topDepartments)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, n := range byStatus {
		total += n
	}
	return &model.ApplicationStats{
		Total:          total,
		ByStatus:       byStatus,
		TopDepartments: depts,
	}, nil
}

var csvHeader = []string{
	"Reference Number", "Full Name", "Email", "Phone", "Date of Birth", "State of Origin", "LGA", "NIN",
	"Address", "Position", "Department", "Specialty", "Qualification", "Year of Graduation",
	"License Number", "Institution", "CV URL", "Photo URL", "Status", "Applied At",
}

// ExportCSV writes the filtered applications as CSV
func (s *ReviewService) ExportCSV(ctx context.Context, filter repository.ApplicationFilter, w io.Writer) (int, error) {
	apps, err := s.List(ctx, filter)
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return 0, fmt.Errorf("writing csv header: %w", err)
	}
	for _, a := range apps {
		record := []string{
			a.ReferenceNumber, a.FullName, a.Email, a.Phone, a.DateOfBirth, a.StateOfOrigin, a.LGA, a.NINNumber,
			a.Address, a.Position, a.Department, a.Specialty, a.Qualification, a.YearOfGraduation,
			a.LicenseNumber, a.Institution, a.CVURL, a.PhotoURL, a.EffectiveStatus(),
			a.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		if err := cw.Write(record); err != nil {
			return 0, fmt.Errorf("writing csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("flushing csv: %w", err)
	}
	return len(apps), nil
}
