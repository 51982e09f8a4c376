// Package repository contains the PostgreSQL persistence layer. All SQL
// lives here as hand-written statements executed through pgx; callers that
// need multi-statement atomicity pass a transaction via WithTx.
package repository

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed schema.sql
var schemaSQL string

// Querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx, so every
// repository method runs unchanged inside or outside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Migrate applies the application schema. Statements are idempotent
// (CREATE ... IF NOT EXISTS) so dev auto-migrate can run on every boot.
func Migrate(ctx context.Context, db Querier) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
