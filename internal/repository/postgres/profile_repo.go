// internal/repository/postgres/profile_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"ruleboard-service/internal/domain/profile"
	xerrors "ruleboard-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ProfileRepository struct {
	db *pgxpool.Pool
}

func NewProfileRepository(db *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// FindByID retrieves the profile record keyed by the auth subject id.
// A missing row returns xerrors.ErrNotFound so callers can fall back.
func (r *ProfileRepository) FindByID(ctx context.Context, userID string) (*profile.UserProfile, error) {
	query := `
		SELECT id, email, role, department_code, name
		FROM profiles
		WHERE id = $1
	`

	var rec profile.Record
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&rec.ID, &rec.Email, &rec.Role, &rec.DepartmentCode, &rec.Name,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}

	return rec.ToProfile(), nil
}
