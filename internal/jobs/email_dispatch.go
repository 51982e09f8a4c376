// Package jobs defines the River Queue job types of the approval service:
// outbox email dispatch, the weekly approver digest and token cleanup.
// Jobs carry row identifiers only; payloads stay in the database.
package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"premium-freight.io/freight/internal/domain"
	"premium-freight.io/freight/internal/pkg/logger"
	"premium-freight.io/freight/internal/repository"
)

// QueueMail is the River queue for outbound email work.
const QueueMail = "mail"

// Mailer delivers one composed email. The production implementation talks
// to the corporate relay; tests and dev use LogMailer.
type Mailer interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// LogMailer writes deliveries to the log instead of sending them.
type LogMailer struct{}

// Send logs the email and reports success.
func (LogMailer) Send(_ context.Context, recipient, subject, _ string) error {
	logger.Info("email delivery (log mailer)",
		zap.String("recipient", recipient),
		zap.String("subject", subject),
	)
	return nil
}

// EmailDispatchArgs references one outbox row to deliver.
type EmailDispatchArgs struct {
	OutboxID string `json:"outbox_id"`
}

// Kind returns the job kind identifier for email dispatch.
func (EmailDispatchArgs) Kind() string { return "email_dispatch" }

// InsertOpts routes dispatch jobs to the mail queue, one job per outbox row.
func (EmailDispatchArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       QueueMail,
		MaxAttempts: 5,
		UniqueOpts: river.UniqueOpts{
			ByArgs:  true,
			ByQueue: true,
		},
	}
}

// EmailDispatchWorker delivers outbox emails. Retries are River's; only the
// final failed attempt marks the row FAILED so earlier attempts keep it
// visible as PENDING.
type EmailDispatchWorker struct {
	river.WorkerDefaults[EmailDispatchArgs]
	outbox *repository.OutboxRepository
	mailer Mailer
}

// NewEmailDispatchWorker creates a dispatch worker.
func NewEmailDispatchWorker(outbox *repository.OutboxRepository, mailer Mailer) *EmailDispatchWorker {
	return &EmailDispatchWorker{outbox: outbox, mailer: mailer}
}

// Work delivers one outbox row.
func (w *EmailDispatchWorker) Work(ctx context.Context, job *river.Job[EmailDispatchArgs]) error {
	if w == nil || w.outbox == nil || w.mailer == nil {
		return fmt.Errorf("email dispatch worker is not initialized")
	}

	m, err := w.outbox.Get(ctx, job.Args.OutboxID)
	if errors.Is(err, repository.ErrOutboxRowGone) {
		logger.Warn("outbox row missing, dropping dispatch job",
			zap.String("outbox_id", job.Args.OutboxID))
		return nil
	}
	if err != nil {
		return err
	}
	if m.Status != domain.EmailStatusPending {
		// Another attempt or dispatcher already finished this row.
		return nil
	}

	if sendErr := w.mailer.Send(ctx, m.Recipient, m.Subject, m.Body); sendErr != nil {
		if job.Attempt >= job.MaxAttempts {
			if err := w.outbox.MarkFailed(ctx, m.ID); err != nil {
				logger.Warn("mark outbox email failed",
					zap.String("outbox_id", m.ID), zap.Error(err))
			}
		}
		return fmt.Errorf("send email %s to %s: %w", m.ID, m.Recipient, sendErr)
	}

	if err := w.outbox.MarkSent(ctx, m.ID); err != nil && !errors.Is(err, repository.ErrOutboxRowGone) {
		return err
	}

	logger.Info("email dispatched",
		zap.String("outbox_id", m.ID),
		zap.String("recipient", m.Recipient),
	)
	return nil
}
