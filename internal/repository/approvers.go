package repository

import (
	"context"
	"fmt"

	"premium-freight.io/freight/internal/domain"
)

const (
	selectApproversForLevelSQL = `
SELECT u.id, u.name, u.email, u.plant
FROM approvers a
JOIN users u ON u.id = a.user_id
WHERE a.approval_level = $1
  AND (a.plant IS NULL OR a.plant = $2)
ORDER BY u.id;`

	approverExistsSQL = `
SELECT EXISTS (
	SELECT 1 FROM approvers
	WHERE user_id = $1
	  AND approval_level = $2
	  AND (plant IS NULL OR plant = $3)
);`

	selectApproverUserIDsSQL = `
SELECT DISTINCT user_id FROM approvers ORDER BY user_id;`

	upsertApproverSQL = `
INSERT INTO approvers (user_id, approval_level, plant)
VALUES ($1, $2, $3)
ON CONFLICT (user_id, approval_level, plant) DO NOTHING;`
)

// ApproverRepository answers the routing questions of the workflow:
// who may act at a level, and is this actor one of them.
type ApproverRepository struct {
	db Querier
}

// NewApproverRepository creates an approver repository.
func NewApproverRepository(db Querier) *ApproverRepository {
	return &ApproverRepository{db: db}
}

// FindForLevel returns the users allowed to act at level for plant.
// Regional approvers (NULL plant) are included alongside plant-specific ones.
func (r *ApproverRepository) FindForLevel(ctx context.Context, level int, plant string) ([]domain.User, error) {
	rows, err := r.db.Query(ctx, selectApproversForLevelSQL, level, plant)
	if err != nil {
		return nil, fmt.Errorf("find approvers for level %d plant %s: %w", level, plant, err)
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Plant); err != nil {
			return nil, fmt.Errorf("scan approver user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate approver users: %w", err)
	}
	return out, nil
}

// Exists reports whether userID holds an approver grant for level at plant.
func (r *ApproverRepository) Exists(ctx context.Context, userID string, level int, plant string) (bool, error) {
	var ok bool
	if err := r.db.QueryRow(ctx, approverExistsSQL, userID, level, plant).Scan(&ok); err != nil {
		return false, fmt.Errorf("check approver %s level %d plant %s: %w", userID, level, plant, err)
	}
	return ok, nil
}

// ListUserIDs returns every user holding at least one approver grant.
// Used by the weekly digest to fan out per-approver summaries.
func (r *ApproverRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, selectApproverUserIDsSQL)
	if err != nil {
		return nil, fmt.Errorf("list approver user ids: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan approver user id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate approver user ids: %w", err)
	}
	return out, nil
}

// Upsert grants an approver role, ignoring duplicates. Used by cmd/seed.
func (r *ApproverRepository) Upsert(ctx context.Context, a domain.Approver) error {
	if _, err := r.db.Exec(ctx, upsertApproverSQL, a.UserID, a.ApprovalLevel, a.Plant); err != nil {
		return fmt.Errorf("upsert approver %s level %d: %w", a.UserID, a.ApprovalLevel, err)
	}
	return nil
}
