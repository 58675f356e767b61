package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// PermissionRepository stores per-user ticket permissions.
type PermissionRepository interface {
	// Grant is idempotent: existing grants are left untouched.
	Grant(ctx context.Context, userID string, perms []domain.Permission) error
	ListForUser(ctx context.Context, userID string) ([]domain.Permission, error)
}

type permissionRepository struct {
	pool *pgxpool.Pool
}

// NewPermissionRepository builds repository.
func NewPermissionRepository(pool *pgxpool.Pool) PermissionRepository {
	return &permissionRepository{pool: pool}
}

func (r *permissionRepository) Grant(ctx context.Context, userID string, perms []domain.Permission) error {
	if len(perms) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, perm := range perms {
		batch.Queue(`
            INSERT INTO user_permissions (user_id, codename)
            VALUES ($1, $2)
            ON CONFLICT (user_id, codename) DO NOTHING`, userID, perm)
	}
	return r.pool.SendBatch(ctx, batch).Close()
}

func (r *permissionRepository) ListForUser(ctx context.Context, userID string) ([]domain.Permission, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT codename FROM user_permissions WHERE user_id=$1 ORDER BY codename`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []domain.Permission
	for rows.Next() {
		var perm domain.Permission
		if err := rows.Scan(&perm); err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}
