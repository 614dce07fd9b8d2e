package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Record is one append-only audit trail entry. Audit writes are best-effort:
// they happen after the ledger transaction commits and their failure is
// logged, never propagated.
type Record struct {
	ActorID       uuid.UUID      `json:"actor_id" bson:"actor_id"`
	Action        string         `json:"action" bson:"action"`
	ObjectID      string         `json:"object_id" bson:"object_id"`
	Summary       string         `json:"summary" bson:"summary"`
	Metadata      map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	RecordedAt    time.Time      `json:"recorded_at" bson:"recorded_at"`
}

// Recorder appends audit records
type Recorder interface {
	Record(ctx context.Context, rec *Record) error
}
