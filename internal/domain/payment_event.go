package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type PaymentEventType string

const (
	PaymentEventTypeCreated           PaymentEventType = "created"
	PaymentEventTypeProcessing        PaymentEventType = "processing"
	PaymentEventTypeSettlementStarted PaymentEventType = "settlement_started"
	PaymentEventTypeCompleted         PaymentEventType = "completed"
	PaymentEventTypeFailed            PaymentEventType = "failed"
	PaymentEventTypeRefundRequested   PaymentEventType = "refund_requested"
	PaymentEventTypeRefundFailed      PaymentEventType = "refund_failed"
)

// EventTypeForStatus maps the status a transition lands on to its audit event.
func EventTypeForStatus(s PaymentStatus) PaymentEventType {
	switch s {
	case PaymentStatusProcessing:
		return PaymentEventTypeProcessing
	case PaymentStatusCompleted:
		return PaymentEventTypeCompleted
	case PaymentStatusFailed:
		return PaymentEventTypeFailed
	default:
		return PaymentEventTypeCreated
	}
}

type PaymentEvent struct {
	ID        uuid.UUID
	PaymentID uuid.UUID
	EventType PaymentEventType
	Actor     string
	Payload   json.RawMessage
	CreatedAt time.Time
}
