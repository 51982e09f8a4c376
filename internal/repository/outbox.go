package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"premium-freight.io/freight/internal/domain"
)

const (
	insertOutboxSQL = `
INSERT INTO email_outbox (id, recipient, subject, body, order_id)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at;`

	selectOutboxSQL = `
SELECT id, recipient, subject, body, status, order_id, created_at, sent_at
FROM email_outbox
WHERE id = $1;`

	listPendingOutboxSQL = `
SELECT id, recipient, subject, body, status, order_id, created_at, sent_at
FROM email_outbox
WHERE status = 'PENDING'
ORDER BY created_at
LIMIT $1;`

	setOutboxStatusSQL = `
UPDATE email_outbox
SET status = $2, sent_at = CASE WHEN $2 = 'SENT' THEN NOW() ELSE sent_at END
WHERE id = $1 AND status = 'PENDING';`
)

// ErrOutboxRowGone signals a status update raced another dispatcher.
var ErrOutboxRowGone = errors.New("outbox row missing or not pending")

// OutboxRepository stores outbound notification emails. Enqueue runs inside
// the transition transaction so a committed state change always has its
// notification row, and vice versa.
type OutboxRepository struct {
	db Querier
}

// NewOutboxRepository creates an outbox repository.
func NewOutboxRepository(db Querier) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx.
func (r *OutboxRepository) WithTx(tx pgx.Tx) *OutboxRepository {
	return &OutboxRepository{db: tx}
}

// Enqueue appends a PENDING email. A missing ID gets a UUIDv7.
func (r *OutboxRepository) Enqueue(ctx context.Context, m *domain.OutboxEmail) error {
	if m.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate outbox id: %w", err)
		}
		m.ID = id.String()
	}
	m.Status = domain.EmailStatusPending
	err := r.db.QueryRow(ctx, insertOutboxSQL,
		m.ID, m.Recipient, m.Subject, m.Body, m.OrderID,
	).Scan(&m.CreatedAt)
	if err != nil {
		return fmt.Errorf("enqueue outbox email: %w", err)
	}
	return nil
}

// Get loads one outbox row.
func (r *OutboxRepository) Get(ctx context.Context, id string) (*domain.OutboxEmail, error) {
	m, err := scanOutboxRow(r.db.QueryRow(ctx, selectOutboxSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOutboxRowGone
	}
	if err != nil {
		return nil, fmt.Errorf("select outbox email %s: %w", id, err)
	}
	return m, nil
}

// ListPending returns up to limit undelivered emails, oldest first.
func (r *OutboxRepository) ListPending(ctx context.Context, limit int) ([]domain.OutboxEmail, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, listPendingOutboxSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending outbox emails: %w", err)
	}
	defer rows.Close()

	var out []domain.OutboxEmail
	for rows.Next() {
		m, err := scanOutboxRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox rows: %w", err)
	}
	return out, nil
}

// MarkSent finalizes a delivered email.
func (r *OutboxRepository) MarkSent(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, domain.EmailStatusSent)
}

// MarkFailed records a delivery failure.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, domain.EmailStatusFailed)
}

func (r *OutboxRepository) setStatus(ctx context.Context, id, status string) error {
	tag, err := r.db.Exec(ctx, setOutboxStatusSQL, id, status)
	if err != nil {
		return fmt.Errorf("mark outbox email %s %s: %w", id, status, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOutboxRowGone
	}
	return nil
}

func scanOutboxRow(row pgx.Row) (*domain.OutboxEmail, error) {
	var m domain.OutboxEmail
	if err := row.Scan(&m.ID, &m.Recipient, &m.Subject, &m.Body, &m.Status,
		&m.OrderID, &m.CreatedAt, &m.SentAt); err != nil {
		return nil, err
	}
	return &m, nil
}
