package service

import (
	"context"
	"testing"

	"github.com/kiuth/recruitment-api/internal/model"
	"github.com/kiuth/recruitment-api/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusByReference(t *testing.T) {
	apps := &fakeApps{}
	seedApplications(t, apps, 1)
	ref := apps.rows[0].ReferenceNumber
	svc := NewStatusService(apps)

	view, err := svc.ByReference(context.Background(), " "+ref+" ")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, view.Status)
	assert.Equal(t, "current", view.Timeline[1].State)

	_, err = svc.ByReference(context.Background(), "KIUTH-2025-NOPE0000")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = svc.ByReference(context.Background(), "")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStatusByEmailIsCaseInsensitive(t *testing.T) {
	apps := &fakeApps{}
	seedApplications(t, apps, 1)

	view, err := NewStatusService(apps).ByEmail(context.Background(), "APPLICANT@example.com")
	require.NoError(t, err)
	assert.Equal(t, apps.rows[0].ID, view.Application.ID)
}

func TestTimeline(t *testing.T) {
	pending := Timeline(model.StatusPending)
	assert.Equal(t, []string{"done", "current", "upcoming"}, states(pending))

	shortlisted := Timeline(model.StatusShortlisted)
	assert.Equal(t, []string{"done", "done", "done"}, states(shortlisted))
	assert.Equal(t, "Shortlisted", shortlisted[2].Label)

	rejected := Timeline(model.StatusRejected)
	assert.Equal(t, "rejected", rejected[2].State)
}

func states(stages []model.TimelineStage) []string {
	out := make([]string, len(stages))
	for i, s := range stages {
		out[i] = s.State
	}
	return out
}
