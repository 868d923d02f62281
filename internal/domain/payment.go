package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
)

func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed
}

// Payment converts a buyer's credit purchase into a token payout from the
// vault. Amount is fixed at creation. SettlementTxRef is set only once the
// payment is completed.
type Payment struct {
	ID                  uuid.UUID
	BuyerID             int64
	Destination         string
	Chain               Chain
	Token               Token
	Credits             int64
	GrossAmount         decimal.Decimal
	FeeAmount           decimal.Decimal
	Amount              decimal.Decimal
	Status              PaymentStatus
	ChargeRef           *string
	SettlementTxRef     *string
	FailureReason       *string
	SettlementStartedAt *time.Time
	RefundRequestedAt   *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
	CompletedAt         *time.Time
}

// Transition describes a conditional status change. The store applies it only
// if the persisted status still equals Expected.
type Transition struct {
	Expected        PaymentStatus
	Next            PaymentStatus
	SettlementTxRef *string
	FailureReason   *string
	CompletedAt     *time.Time
	Actor           string
	Payload         []byte
}
