package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/partnerhub/token-ledger/internal/domain/directory"
	"github.com/partnerhub/token-ledger/internal/domain/ledgererr"
	"github.com/partnerhub/token-ledger/internal/platform/persistence"
)

// DirectoryRepository answers user/account existence and project restriction
// lookups against the platform's users, accounts and projects tables. The
// ledger consumes these through narrow interfaces; this is the reference
// adapter for a deployment sharing the platform database.
type DirectoryRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewDirectoryRepository creates a new PostgreSQL directory adapter
func NewDirectoryRepository(logger *slog.Logger, db *persistence.PostgresDB) *DirectoryRepository {
	return &DirectoryRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// Compile-time checks against the consumed interfaces
var (
	_ directory.UserDirectory   = (*DirectoryRepository)(nil)
	_ directory.ProjectRegistry = (*DirectoryRepository)(nil)
)

// UserExists reports whether a platform user exists
func (r *DirectoryRepository) UserExists(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`

	var exists bool
	if err := r.querier.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		r.logger.Error("Failed to check user existence", "user_id", id.String(), "error", err)
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}

	return exists, nil
}

// AccountExists reports whether a ledger account exists for the user
func (r *DirectoryRepository) AccountExists(ctx context.Context, userID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM accounts WHERE user_id = $1)`

	var exists bool
	if err := r.querier.QueryRow(ctx, query, userID).Scan(&exists); err != nil {
		r.logger.Error("Failed to check account existence", "user_id", userID.String(), "error", err)
		return false, fmt.Errorf("failed to check account existence: %w", err)
	}

	return exists, nil
}

// AdminIDs returns the IDs of all platform administrators, for
// admin-broadcast notifications
func (r *DirectoryRepository) AdminIDs(ctx context.Context) ([]uuid.UUID, error) {
	query := `SELECT id FROM users WHERE role = 'admin'`

	rows, err := r.querier.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list admin users", "error", err)
		return nil, fmt.Errorf("failed to list admin users: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan admin user id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over admin users: %w", err)
	}

	return ids, nil
}

// GetProjectRestriction looks up the review/abandonment flags for a project
func (r *DirectoryRepository) GetProjectRestriction(ctx context.Context, projectID uuid.UUID) (*directory.ProjectRestriction, error) {
	query := `SELECT review_approved, abandoned FROM projects WHERE id = $1`

	var restriction directory.ProjectRestriction
	err := r.querier.QueryRow(ctx, query, projectID).Scan(&restriction.ReviewApproved, &restriction.Abandoned)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledgererr.NotFound{Resource: "project", ID: projectID.String()}
		}
		r.logger.Error("Failed to get project restriction", "project_id", projectID.String(), "error", err)
		return nil, fmt.Errorf("failed to get project restriction: %w", err)
	}

	return &restriction, nil
}
