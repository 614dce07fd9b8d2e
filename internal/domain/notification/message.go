package notification

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies what a notification is about
type EventType string

const (
	EventTransferCreated   EventType = "TRANSFER_CREATED"   // to all admins
	EventTransferApproved  EventType = "TRANSFER_APPROVED"  // to the receiver
	EventTransferRejected  EventType = "TRANSFER_REJECTED"  // to the initiator
	EventTransferCompleted EventType = "TRANSFER_COMPLETED" // to both parties
	EventTransferDeclined  EventType = "TRANSFER_DECLINED"  // to the initiator
	EventTransferCancelled EventType = "TRANSFER_CANCELLED" // to all admins
	EventGrantReceived     EventType = "GRANT_RECEIVED"
	EventDeductApplied     EventType = "DEDUCT_APPLIED"
	EventDividendReceived  EventType = "DIVIDEND_RECEIVED"
	EventRewardReceived    EventType = "REWARD_RECEIVED"
	EventProjectTimeline   EventType = "PROJECT_TIMELINE" // project activity side record
)

// Status defines message publishing states
type Status string

const (
	StatusPending         Status = "PENDING"
	StatusPublished       Status = "PUBLISHED"
	StatusFailedToPublish Status = "FAILED_TO_PUBLISH"
)

// Message is one notification outbox row. Ledger operations enqueue
// messages after their settlement commits; the dispatcher publishes them to
// the notification bus. Delivery is best-effort and never feeds back into
// ledger state.
type Message struct {
	ID          uuid.UUID   `json:"id"`
	Recipients  []uuid.UUID `json:"recipients"`
	EventType   EventType   `json:"event_type"`
	Payload     []byte      `json:"payload"` // JSON event body
	Status      Status      `json:"status"`
	RetryCount  int         `json:"retry_count"`
	CreatedAt   time.Time   `json:"created_at"`
	ProcessedAt *time.Time  `json:"processed_at,omitempty"`
}

// NewMessage creates a pending outbox message
func NewMessage(recipients []uuid.UUID, eventType EventType, payload []byte) *Message {
	return &Message{
		ID:         uuid.New(),
		Recipients: recipients,
		EventType:  eventType,
		Payload:    payload,
		Status:     StatusPending,
		CreatedAt:  time.Now(),
	}
}
