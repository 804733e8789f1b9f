package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/kiuth/recruitment-api/internal/model"
	"github.com/kiuth/recruitment-api/internal/slip"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

// Outbox is the notification queue
type Outbox interface {
	ClaimDue(ctx context.Context, limit int, lease time.Duration) ([]model.Notification, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
	MarkRetry(ctx context.Context, id uuid.UUID, next time.Time, lastErr string) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastErr string) error
}

// ApplicationFinder loads the application a notification belongs to
type ApplicationFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Application, error)
}

// SlipRenderer produces the PDF attached to confirmation emails
type SlipRenderer interface {
	Render(ctx context.Context, a *model.Application) ([]byte, error)
}

type DispatcherConfig struct {
	Interval    time.Duration
	BatchSize   int
	Workers     int
	Lease       time.Duration
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	SendTimeout time.Duration
}

// Dispatcher drains the outbox on a schedule
type Dispatcher struct {
	outbox Outbox
	apps   ApplicationFinder
	mail   MailSender
	sms    SMSSender
	slips  SlipRenderer
	cfg    DispatcherConfig
	now    func() time.Time

	scheduler gocron.Scheduler
}

func NewDispatcher(outbox Outbox, apps ApplicationFinder, mail MailSender, sms SMSSender, slips SlipRenderer, cfg DispatcherConfig) *Dispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 5 * time.Minute
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 30 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = time.Hour
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	return &Dispatcher{
		outbox: outbox,
		apps:   apps,
		mail:   mail,
		sms:    sms,
		slips:  slips,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Start schedules RunOnce every Interval. Runs never overlap.
func (d *Dispatcher) Start() error {
	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(d.cfg.Interval),
		gocron.NewTask(func() {
			if _, err := d.RunOnce(context.Background()); err != nil {
				log.Error().Err(err).Msg("Notification dispatch failed")
			}
		}),
		gocron.WithName("notification-dispatcher"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("scheduling dispatcher: %w", err)
	}
	s.Start()
	d.scheduler = s
	log.Info().Dur("interval", d.cfg.Interval).Int("workers", d.cfg.Workers).Msg("Notification dispatcher started")
	return nil
}

func (d *Dispatcher) Stop() error {
	if d.scheduler == nil {
		return nil
	}
	return d.scheduler.Shutdown()
}

// RunOnce claims one batch of due notifications and delivers them
// concurrently. It returns how many were sent.
func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	due, err := d.outbox.ClaimDue(ctx, d.cfg.BatchSize, d.cfg.Lease)
	if err != nil {
		return 0, err
	}
	if len(due) == 0 {
		return 0, nil
	}

	results := make([]bool, len(due))
	p := pool.New().WithMaxGoroutines(d.cfg.Workers)
	for i, n := range due {
		p.Go(func() {
			results[i] = d.process(ctx, n)
		})
	}
	p.Wait()

	sent := 0
	for _, ok := range results {
		if ok {
			sent++
		}
	}
	log.Info().Int("claimed", len(due)).Int("sent", sent).Msg("Notification batch processed")
	return sent, nil
}

func (d *Dispatcher) process(ctx context.Context, n model.Notification) bool {
	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()

	err := d.deliver(sendCtx, n)
	if err == nil {
		if err := d.outbox.MarkSent(ctx, n.ID); err != nil {
			log.Error().Err(err).Str("notification_id", n.ID.String()).Msg("Failed to mark notification sent")
		}
		return true
	}

	attempts := n.Attempts + 1
	logger := log.With().
		Str("notification_id", n.ID.String()).
		Str("channel", n.Channel).
		Int("attempt", attempts).
		Logger()

	if attempts >= n.MaxAttempts {
		logger.Error().Err(err).Msg("Notification failed permanently")
		sentry.CaptureException(fmt.Errorf("%s notification %s failed after %d attempts: %w", n.Channel, n.ID, attempts, err))
		if markErr := d.outbox.MarkFailed(ctx, n.ID, err.Error()); markErr != nil {
			logger.Error().Err(markErr).Msg("Failed to mark notification failed")
		}
		return false
	}

	next := d.now().Add(d.backoff(attempts))
	logger.Warn().Err(err).Time("next_attempt_at", next).Msg("Notification failed, will retry")
	if markErr := d.outbox.MarkRetry(ctx, n.ID, next, err.Error()); markErr != nil {
		logger.Error().Err(markErr).Msg("Failed to reschedule notification")
	}
	return false
}

// backoff doubles from BaseBackoff per attempt, capped at MaxBackoff
func (d *Dispatcher) backoff(attempt int) time.Duration {
	delay := d.cfg.BaseBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= d.cfg.MaxBackoff {
			return d.cfg.MaxBackoff
		}
	}
	return delay
}

func (d *Dispatcher) deliver(ctx context.Context, n model.Notification) error {
	switch n.Channel {
	case model.ChannelEmail:
		msg := MailMessage{To: n.Recipient, Subject: n.Subject, HTML: n.Body}
		if n.AttachSlip && n.ApplicationID != nil {
			att, err := d.slipAttachment(ctx, *n.ApplicationID)
			if err != nil {
				return err
			}
			msg.Attachments = append(msg.Attachments, *att)
		}
		return d.mail.Send(ctx, msg)

	case model.ChannelSMS:
		resp, err := d.sms.Send(ctx, SMSMessage{To: n.Recipient, Body: n.Body})
		if err != nil {
			return err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, truncate(string(resp.Body), 200))
		}
		return nil
	}
	return errors.New("unknown notification channel " + n.Channel)
}

func (d *Dispatcher) slipAttachment(ctx context.Context, applicationID uuid.UUID) (*Attachment, error) {
	app, err := d.apps.FindByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, fmt.Errorf("application %s not found for slip", applicationID)
	}
	pdf, err := d.slips.Render(ctx, app)
	if err != nil {
		return nil, fmt.Errorf("rendering slip: %w", err)
	}
	return &Attachment{
		Name:        slip.FileName(app.ReferenceNumber),
		Data:        pdf,
		ContentType: "application/pdf",
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
