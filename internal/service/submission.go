package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/kiuth/recruitment-api/internal/model"
	"github.com/kiuth/recruitment-api/internal/repository"
	"github.com/kiuth/recruitment-api/internal/storage"
	"github.com/kiuth/recruitment-api/internal/wizard"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"
)

const referenceAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

var (
	ErrRecruitmentClosed = errors.New("recruitment is closed")
	ErrUploadMissing     = errors.New("uploaded file not found")
)

// ApplicationWriter is the slice of the application repository used by submissions
type ApplicationWriter interface {
	CreateWithNotifications(ctx context.Context, a *model.Application, notes []model.Notification) (*model.Application, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*model.Application, error)
}

// JobLister lists the catalog
type JobLister interface {
	List(ctx context.Context, filter repository.JobFilter) ([]model.Job, error)
}

type SubmissionConfig struct {
	ReferencePrefix     string
	Deadline            *time.Time
	PublicBaseURL       string
	NotifyMaxAttempts   int
	ReferenceMaxRetries uint
}

// SubmitResult is returned for both new and replayed submissions
type SubmitResult struct {
	Application *model.Application
	Duplicate   bool
}

// SubmissionService turns a completed wizard into a stored application
type SubmissionService struct {
	apps  ApplicationWriter
	jobs  JobLister
	store storage.Store
	cfg   SubmissionConfig
	now   func() time.Time
}

func NewSubmissionService(apps ApplicationWriter, jobs JobLister, store storage.Store, cfg SubmissionConfig) *SubmissionService {
	if cfg.ReferenceMaxRetries == 0 {
		cfg.ReferenceMaxRetries = 5
	}
	if cfg.Deadline != nil && cfg.Deadline.IsZero() {
		cfg.Deadline = nil
	}
	return &SubmissionService{apps: apps, jobs: jobs, store: store, cfg: cfg, now: time.Now}
}

// RecruitmentOpen reports whether submissions are accepted now
func (s *SubmissionService) RecruitmentOpen() bool {
	return s.cfg.Deadline == nil || s.now().Before(*s.cfg.Deadline)
}

// Deadline is nil when recruitment has no closing date
func (s *SubmissionService) Deadline() *time.Time {
	return s.cfg.Deadline
}

// Catalog returns the active jobs keyed for the wizard
func (s *SubmissionService) Catalog(ctx context.Context) (wizard.Catalog, error) {
	jobs, err := s.jobs.List(ctx, repository.JobFilter{})
	if err != nil {
		return nil, err
	}
	return wizard.NewCatalog(jobs), nil
}

// ValidateStep checks a single wizard gate for the step-by-step UI
func (s *SubmissionService) ValidateStep(ctx context.Context, form *wizard.Form, step wizard.Step) error {
	catalog, err := s.Catalog(ctx)
	if err != nil {
		return err
	}
	w := wizard.New(form, catalog)
	if step == wizard.StepPosition && form.Position != "" {
		_ = w.SelectJob(form.Position)
	}
	return w.Validate(step)
}

// Submit replays every gate, checks the uploads and stores the application
// with its confirmation SMS and email queued in the same transaction.
func (s *SubmissionService) Submit(ctx context.Context, form *wizard.Form, idempotencyKey string) (*SubmitResult, error) {
	// A replayed key gets the stored row even if the deadline or the uploads changed since
	key := strings.TrimSpace(idempotencyKey)
	if key != "" {
		existing, err := s.apps.FindByIdempotencyKey(ctx, key)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return &SubmitResult{Application: existing, Duplicate: true}, nil
		}
	}

	if !s.RecruitmentOpen() {
		return nil, ErrRecruitmentClosed
	}

	catalog, err := s.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	w, err := wizard.Replay(form, catalog)
	if err != nil {
		return nil, err
	}

	for _, url := range []string{form.DocumentURL, form.PassportURL} {
		if err := s.checkUpload(ctx, url); err != nil {
			return nil, err
		}
	}

	if err := w.MarkSubmitted(); err != nil {
		return nil, err
	}

	app := w.Application()
	if key != "" {
		app.IdempotencyKey = &key
	}

	created, err := retry.DoWithData(func() (*model.Application, error) {
		ref, err := NewReference(s.cfg.ReferencePrefix, s.now())
		if err != nil {
			return nil, retry.Unrecoverable(err)
		}
		app.ReferenceNumber = ref

		notes, err := s.confirmations(app)
		if err != nil {
			return nil, retry.Unrecoverable(err)
		}
		return s.apps.CreateWithNotifications(ctx, app, notes)
	},
		retry.Attempts(s.cfg.ReferenceMaxRetries),
		retry.Delay(0),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return errors.Is(err, repository.ErrDuplicateReference) }),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Uint("attempt", n+1).Msg("Reference number collision, regenerating")
		}),
	)
	if errors.Is(err, repository.ErrDuplicateIdempotencyKey) {
		// A concurrent request with the same key won the race
		existing, findErr := s.apps.FindByIdempotencyKey(ctx, key)
		if findErr != nil {
			return nil, findErr
		}
		if existing != nil {
			return &SubmitResult{Application: existing, Duplicate: true}, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("storing application: %w", err)
	}

	log.Info().
		Str("reference", created.ReferenceNumber).
		Str("position", created.Position).
		Msg("Application submitted")

	return &SubmitResult{Application: created}, nil
}

func (s *SubmissionService) checkUpload(ctx context.Context, url string) error {
	name, ok := storage.NameFromURL(s.cfg.PublicBaseURL, url)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUploadMissing, url)
	}
	exists, err := s.store.Exists(ctx, name)
	if err != nil {
		return fmt.Errorf("checking upload %s: %w", name, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrUploadMissing, name)
	}
	return nil
}

func (s *SubmissionService) confirmations(a *model.Application) ([]model.Notification, error) {
	subject, body, err := ConfirmationEmail(a)
	if err != nil {
		return nil, err
	}
	return []model.Notification{
		{
			Channel:     model.ChannelSMS,
			Recipient:   NormalizePhone(a.Phone),
			Body:        ConfirmationSMS(a),
			MaxAttempts: s.cfg.NotifyMaxAttempts,
		},
		{
			Channel:     model.ChannelEmail,
			Recipient:   a.Email,
			Subject:     subject,
			Body:        body,
			AttachSlip:  true,
			MaxAttempts: s.cfg.NotifyMaxAttempts,
		},
	}, nil
}

// NewReference returns {PREFIX}-{YYYY}-{8 chars of [0-9A-Z]}
func NewReference(prefix string, now time.Time) (string, error) {
	suffix, err := gonanoid.Generate(referenceAlphabet, 8)
	if err != nil {
		return "", fmt.Errorf("generating reference: %w", err)
	}
	return fmt.Sprintf("%s-%d-%s", strings.ToUpper(prefix), now.Year(), suffix), nil
}

// ReferencePattern matches references issued with prefix
func ReferencePattern(prefix string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(strings.ToUpper(prefix)) + `-\d{4}-[0-9A-Z]{8}$`)
}
