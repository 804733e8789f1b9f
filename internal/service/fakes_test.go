package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiuth/recruitment-api/internal/model"
	"github.com/kiuth/recruitment-api/internal/repository"
)

// ── Applications ───────────────────────────────────────

type fakeApps struct {
	mu             sync.Mutex
	rows           []model.Application
	notes          []model.Notification
	history        []model.StatusHistory
	refCollisions  int
	insertAttempts int
}

func (f *fakeApps) CreateWithNotifications(_ context.Context, a *model.Application, notes []model.Notification) (*model.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.insertAttempts++
	if f.refCollisions > 0 {
		f.refCollisions--
		return nil, repository.ErrDuplicateReference
	}
	for _, r := range f.rows {
		if r.ReferenceNumber == a.ReferenceNumber {
			return nil, repository.ErrDuplicateReference
		}
		if a.IdempotencyKey != nil && r.IdempotencyKey != nil && *r.IdempotencyKey == *a.IdempotencyKey {
			return nil, repository.ErrDuplicateIdempotencyKey
		}
	}

	row := *a
	row.ID = uuid.New()
	row.CreatedAt = time.Now()
	row.UpdatedAt = row.CreatedAt
	f.rows = append(f.rows, row)
	for _, n := range notes {
		id := row.ID
		n.ID = uuid.New()
		n.ApplicationID = &id
		n.Status = model.NotificationPending
		f.notes = append(f.notes, n)
	}
	return &row, nil
}

func (f *fakeApps) FindByIdempotencyKey(_ context.Context, key string) (*model.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.IdempotencyKey != nil && *r.IdempotencyKey == key {
			row := r
			return &row, nil
		}
	}
	return nil, nil
}

func (f *fakeApps) FindByID(_ context.Context, id uuid.UUID) (*model.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == id {
			row := r
			return &row, nil
		}
	}
	return nil, nil
}

func (f *fakeApps) FindByReference(_ context.Context, reference string) (*model.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if strings.EqualFold(r.ReferenceNumber, strings.TrimSpace(reference)) {
			row := r
			return &row, nil
		}
	}
	return nil, nil
}

func (f *fakeApps) FindLatestByEmail(_ context.Context, email string) (*model.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *model.Application
	for i := range f.rows {
		r := f.rows[i]
		if model.NormalizeEmail(r.Email) == model.NormalizeEmail(email) {
			if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
				latest = &r
			}
		}
	}
	return latest, nil
}

func (f *fakeApps) List(_ context.Context, filter repository.ApplicationFilter) ([]model.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Application{}
	for _, r := range f.rows {
		if filter.Status != "" && r.EffectiveStatus() != filter.Status {
			continue
		}
		if filter.Department != "" && r.Department != filter.Department {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(r.FullName), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeApps) UpdateStatus(_ context.Context, ids []uuid.UUID, status, changedBy string) ([]model.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	selected := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		selected[id] = true
	}
	updated := []model.Application{}
	for i := range f.rows {
		if !selected[f.rows[i].ID] {
			continue
		}
		from := f.rows[i].EffectiveStatus()
		s := status
		f.rows[i].Status = &s
		if from != status {
			f.history = append(f.history, model.StatusHistory{
				ID: uuid.New(), ApplicationID: f.rows[i].ID, FromStatus: from, ToStatus: status,
				ChangedBy: changedBy, ChangedAt: time.Now(),
			})
		}
		updated = append(updated, f.rows[i])
	}
	return updated, nil
}

func (f *fakeApps) GetHistory(_ context.Context, id uuid.UUID) ([]model.StatusHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.StatusHistory{}
	for _, h := range f.history {
		if h.ApplicationID == id {
			out = append(out, h)
		}
	}
	return out, nil
}

func (f *fakeApps) CountByStatus(_ context.Context) (map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[string]int{model.StatusPending: 0, model.StatusShortlisted: 0, model.StatusRejected: 0}
	for _, r := range f.rows {
		counts[r.EffectiveStatus()]++
	}
	return counts, nil
}

func (f *fakeApps) CountByDepartment(_ context.Context, limit int) ([]model.DepartmentCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[string]int{}
	for _, r := range f.rows {
		d := r.Department
		if d == "" {
			d = "Unspecified"
		}
		counts[d]++
	}
	out := []model.DepartmentCount{}
	for d, n := range counts {
		out = append(out, model.DepartmentCount{Department: d, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Department < out[j].Department
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeApps) notesFor(id uuid.UUID) []model.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Notification
	for _, n := range f.notes {
		if n.ApplicationID != nil && *n.ApplicationID == id {
			out = append(out, n)
		}
	}
	return out
}

// ── Jobs ───────────────────────────────────────────────

type fakeJobs struct {
	jobs []model.Job
}

func (f *fakeJobs) List(_ context.Context, filter repository.JobFilter) ([]model.Job, error) {
	out := []model.Job{}
	for _, j := range f.jobs {
		if j.IsActive || filter.IncludeInactive {
			out = append(out, j)
		}
	}
	return out, nil
}

// ── Outbox ─────────────────────────────────────────────

type fakeOutbox struct {
	mu      sync.Mutex
	due     []model.Notification
	sent    []uuid.UUID
	retried map[uuid.UUID]time.Time
	failed  map[uuid.UUID]string
}

func newFakeOutbox(due ...model.Notification) *fakeOutbox {
	return &fakeOutbox{due: due, retried: map[uuid.UUID]time.Time{}, failed: map[uuid.UUID]string{}}
}

func (f *fakeOutbox) ClaimDue(_ context.Context, limit int, _ time.Duration) ([]model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := min(limit, len(f.due))
	claimed := f.due[:n]
	f.due = f.due[n:]
	return claimed, nil
}

func (f *fakeOutbox) MarkSent(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeOutbox) MarkRetry(_ context.Context, id uuid.UUID, next time.Time, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retried[id] = next
	return nil
}

func (f *fakeOutbox) MarkFailed(_ context.Context, id uuid.UUID, lastErr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[id] = lastErr
	return nil
}

// ── Senders ────────────────────────────────────────────

type fakeMailer struct {
	mu   sync.Mutex
	sent []MailMessage
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg MailMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeSMS struct {
	mu     sync.Mutex
	sent   []SMSMessage
	status int
	err    error
}

func (f *fakeSMS) Send(_ context.Context, msg SMSMessage) (*SMSResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, msg)
	status := f.status
	if status == 0 {
		status = 200
	}
	return &SMSResponse{StatusCode: status, Body: []byte(`{"status":"ok"}`)}, nil
}

type fakeSlips struct {
	err error
}

func (f *fakeSlips) Render(_ context.Context, a *model.Application) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.3 slip for " + a.ReferenceNumber), nil
}

var errGatewayDown = errors.New("gateway down")
