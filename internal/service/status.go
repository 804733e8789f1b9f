package service

import (
	"context"
	"strings"

	"github.com/kiuth/recruitment-api/internal/model"
	"github.com/kiuth/recruitment-api/internal/repository"
)

// ApplicationLookup is the read side used by applicants
type ApplicationLookup interface {
	FindByReference(ctx context.Context, reference string) (*model.Application, error)
	FindLatestByEmail(ctx context.Context, email string) (*model.Application, error)
}

// StatusView is what an applicant sees about their application
type StatusView struct {
	Application *model.Application    `json:"application"`
	Status      string                `json:"status"`
	Timeline    []model.TimelineStage `json:"timeline"`
}

type StatusService struct {
	apps ApplicationLookup
}

func NewStatusService(apps ApplicationLookup) *StatusService {
	return &StatusService{apps: apps}
}

// ByReference returns repository.ErrNotFound when nothing matches
func (s *StatusService) ByReference(ctx context.Context, reference string) (*StatusView, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, repository.ErrNotFound
	}
	app, err := s.apps.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, repository.ErrNotFound
	}
	return NewStatusView(app), nil
}

// ByEmail finds the newest application for a signed-in applicant
func (s *StatusService) ByEmail(ctx context.Context, email string) (*StatusView, error) {
	if strings.TrimSpace(email) == "" {
		return nil, repository.ErrNotFound
	}
	app, err := s.apps.FindLatestByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, repository.ErrNotFound
	}
	return NewStatusView(app), nil
}

func NewStatusView(a *model.Application) *StatusView {
	return &StatusView{
		Application: a,
		Status:      a.EffectiveStatus(),
		Timeline:    Timeline(a.EffectiveStatus()),
	}
}

// Timeline derives the progress stages from a status
func Timeline(status string) []model.TimelineStage {
	stages := []model.TimelineStage{
		{Label: "Submitted", State: "done", Complete: true},
		{Label: "Under Review"},
		{Label: "Decision"},
	}
	switch status {
	case model.StatusShortlisted:
		stages[1] = model.TimelineStage{Label: "Under Review", State: "done", Complete: true}
		stages[2] = model.TimelineStage{Label: "Shortlisted", State: "done", Complete: true}
	case model.StatusRejected:
		stages[1] = model.TimelineStage{Label: "Under Review", State: "done", Complete: true}
		stages[2] = model.TimelineStage{Label: "Not Successful", State: "rejected", Complete: true}
	default:
		stages[1].State = "current"
		stages[2].State = "upcoming"
	}
	return stages
}
