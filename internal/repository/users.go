package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"premium-freight.io/freight/internal/domain"
	perrors "premium-freight.io/freight/internal/pkg/errors"
)

const (
	selectUserSQL = `
SELECT id, name, email, plant
FROM users
WHERE id = $1;`

	selectCredentialsSQL = `
SELECT id, name, email, plant, password_hash, role
FROM users
WHERE email = $1;`

	upsertUserSQL = `
INSERT INTO users (id, name, email, password_hash, role, plant)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE
SET name = EXCLUDED.name,
    email = EXCLUDED.email,
    password_hash = EXCLUDED.password_hash,
    role = EXCLUDED.role,
    plant = EXCLUDED.plant;`

	upsertPlantSQL = `
INSERT INTO plants (code, name)
VALUES ($1, $2)
ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name;`
)

// UserRepository reads the identity records the workflow needs for routing
// notifications. Writes exist only for cmd/seed.
type UserRepository struct {
	db Querier
}

// NewUserRepository creates a user repository.
func NewUserRepository(db Querier) *UserRepository {
	return &UserRepository{db: db}
}

// Get loads one user by id.
func (r *UserRepository) Get(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRow(ctx, selectUserSQL, id).Scan(&u.ID, &u.Name, &u.Email, &u.Plant)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, perrors.NotFound("USER_NOT_FOUND", fmt.Sprintf("user %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("select user %s: %w", id, err)
	}
	return &u, nil
}

// Credentials loads the login record for an email address. The caller
// compares the bcrypt hash; an unknown email and a wrong password must
// end up indistinguishable.
func (r *UserRepository) Credentials(ctx context.Context, email string) (*domain.User, string, string, error) {
	var (
		u    domain.User
		hash string
		role string
	)
	err := r.db.QueryRow(ctx, selectCredentialsSQL, email).Scan(&u.ID, &u.Name, &u.Email, &u.Plant, &hash, &role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", "", perrors.ErrAuthFailed
	}
	if err != nil {
		return nil, "", "", fmt.Errorf("select credentials: %w", err)
	}
	return &u, hash, role, nil
}

// Upsert creates or refreshes a user record. Used by cmd/seed.
func (r *UserRepository) Upsert(ctx context.Context, u domain.User, passwordHash, role string) error {
	if role == "" {
		role = "user"
	}
	if _, err := r.db.Exec(ctx, upsertUserSQL, u.ID, u.Name, u.Email, passwordHash, role, u.Plant); err != nil {
		return fmt.Errorf("upsert user %s: %w", u.ID, err)
	}
	return nil
}

// UpsertPlant creates or renames a plant. Used by cmd/seed.
func (r *UserRepository) UpsertPlant(ctx context.Context, code, name string) error {
	if _, err := r.db.Exec(ctx, upsertPlantSQL, code, name); err != nil {
		return fmt.Errorf("upsert plant %s: %w", code, err)
	}
	return nil
}
