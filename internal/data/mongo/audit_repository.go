// Package mongo provides the MongoDB implementation of the audit trail
// recorder. Audit records are append-only and written best-effort after a
// ledger mutation commits.
package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/partnerhub/token-ledger/internal/domain/audit"
)

const (
	// AuditCollectionName is the name of the audit trail collection
	AuditCollectionName = "audit_records"
)

// AuditRepository implements the audit.Recorder interface for MongoDB
type AuditRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewAuditRepository creates a new MongoDB audit recorder
func NewAuditRepository(logger *slog.Logger, db *mongo.Database) audit.Recorder {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Record appends one audit record. Records are never updated or removed.
func (r *AuditRepository) Record(ctx context.Context, rec *audit.Record) error {
	collection := r.db.Collection(AuditCollectionName)

	_, err := collection.InsertOne(ctx, rec)
	if err != nil {
		r.logger.Error("Failed to record audit entry",
			"actor_id", rec.ActorID.String(),
			"action", rec.Action,
			"error", err)
		return fmt.Errorf("failed to record audit entry: %w", err)
	}

	return nil
}
