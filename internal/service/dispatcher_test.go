package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiuth/recruitment-api/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestDispatcher(outbox *fakeOutbox, apps *fakeApps, mail *fakeMailer, sms *fakeSMS, slips *fakeSlips) *Dispatcher {
	d := NewDispatcher(outbox, apps, mail, sms, slips, DispatcherConfig{
		Interval:    time.Minute,
		BatchSize:   10,
		Workers:     2,
		BaseBackoff: 30 * time.Second,
		MaxBackoff:  10 * time.Minute,
	})
	d.now = func() time.Time { return fixedNow }
	return d
}

func storedApplication(t *testing.T, apps *fakeApps) model.Application {
	t.Helper()
	created, err := apps.CreateWithNotifications(context.Background(), &model.Application{
		ReferenceNumber: "KIUTH-2025-ABCD1234",
		FullName:        "Amina Yusuf",
		Email:           "amina@example.com",
		Phone:           "08031234567",
		Position:        "Staff Nurse",
	}, nil)
	require.NoError(t, err)
	return *created
}

func TestDispatcherSendsEmailWithSlip(t *testing.T) {
	apps := &fakeApps{}
	app := storedApplication(t, apps)
	note := model.Notification{
		ID: uuid.New(), ApplicationID: &app.ID, Channel: model.ChannelEmail,
		Recipient: app.Email, Subject: "Received", Body: "<p>hi</p>", AttachSlip: true, MaxAttempts: 6,
	}
	outbox := newFakeOutbox(note)
	mail := &fakeMailer{}

	sent, err := newTestDispatcher(outbox, apps, mail, &fakeSMS{}, &fakeSlips{}).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []uuid.UUID{note.ID}, outbox.sent)

	require.Len(t, mail.sent, 1)
	msg := mail.sent[0]
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "KIUTH_Slip_KIUTH-2025-ABCD1234.pdf", msg.Attachments[0].Name)
	assert.Equal(t, "application/pdf", msg.Attachments[0].ContentType)
}

func TestDispatcherSendsSMS(t *testing.T) {
	note := model.Notification{ID: uuid.New(), Channel: model.ChannelSMS, Recipient: "+2348031234567", Body: "Ref: X", MaxAttempts: 6}
	outbox := newFakeOutbox(note)
	sms := &fakeSMS{}

	sent, err := newTestDispatcher(outbox, &fakeApps{}, &fakeMailer{}, sms, &fakeSlips{}).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.Len(t, sms.sent, 1)
	assert.Equal(t, "+2348031234567", sms.sent[0].To)
}

func TestDispatcherReschedulesWithBackoff(t *testing.T) {
	note := model.Notification{ID: uuid.New(), Channel: model.ChannelSMS, Recipient: "+234803", Body: "x", Attempts: 2, MaxAttempts: 6}
	outbox := newFakeOutbox(note)

	sent, err := newTestDispatcher(outbox, &fakeApps{}, &fakeMailer{}, &fakeSMS{err: errGatewayDown}, &fakeSlips{}).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)

	// third attempt: 30s doubled twice
	assert.Equal(t, fixedNow.Add(2*time.Minute), outbox.retried[note.ID])
	assert.Empty(t, outbox.failed)
}

func TestDispatcherTreatsGatewayErrorStatusAsFailure(t *testing.T) {
	note := model.Notification{ID: uuid.New(), Channel: model.ChannelSMS, Recipient: "+234803", Body: "x", MaxAttempts: 6}
	outbox := newFakeOutbox(note)

	_, err := newTestDispatcher(outbox, &fakeApps{}, &fakeMailer{}, &fakeSMS{status: 422}, &fakeSlips{}).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Contains(t, outbox.retried, note.ID)
	assert.Empty(t, outbox.sent)
}

func TestDispatcherGivesUpAfterMaxAttempts(t *testing.T) {
	note := model.Notification{ID: uuid.New(), Channel: model.ChannelEmail, Recipient: "a@b.c", Body: "x", Attempts: 5, MaxAttempts: 6}
	outbox := newFakeOutbox(note)

	_, err := newTestDispatcher(outbox, &fakeApps{}, &fakeMailer{err: errors.New("smtp refused")}, &fakeSMS{}, &fakeSlips{}).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "smtp refused", outbox.failed[note.ID])
	assert.Empty(t, outbox.retried)
}

func TestDispatcherBackoffCap(t *testing.T) {
	d := newTestDispatcher(newFakeOutbox(), &fakeApps{}, &fakeMailer{}, &fakeSMS{}, &fakeSlips{})
	assert.Equal(t, 30*time.Second, d.backoff(1))
	assert.Equal(t, time.Minute, d.backoff(2))
	assert.Equal(t, 10*time.Minute, d.backoff(10))
}

func TestDispatcherEmptyBatch(t *testing.T) {
	sent, err := newTestDispatcher(newFakeOutbox(), &fakeApps{}, &fakeMailer{}, &fakeSMS{}, &fakeSlips{}).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
}
