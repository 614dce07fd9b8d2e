// Package directory defines the external collaborator interfaces the ledger
// consumes. User/account existence and project status live outside the
// ledger's ownership; only these narrow views of them are depended on.
package directory

import (
	"context"

	"github.com/google/uuid"
)

// UserDirectory answers user and account existence questions
type UserDirectory interface {
	UserExists(ctx context.Context, id uuid.UUID) (bool, error)
	AccountExists(ctx context.Context, userID uuid.UUID) (bool, error)

	// AdminIDs lists platform administrators for broadcast notifications
	AdminIDs(ctx context.Context) ([]uuid.UUID, error)
}

// ProjectRestriction holds the project flags the ledger gates on. A
// project-linked transaction is refused unless ReviewApproved and not
// Abandoned.
type ProjectRestriction struct {
	ReviewApproved bool
	Abandoned      bool
}

// ProjectRegistry answers project restriction lookups
type ProjectRegistry interface {
	GetProjectRestriction(ctx context.Context, projectID uuid.UUID) (*ProjectRestriction, error)
}
