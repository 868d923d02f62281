package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/starbridge/internal/domain"
)

const (
	TestBuyerID     int64 = 7_001_234_567
	TestDestination       = "0x8ba1f109551bD432803012645Ac136ddd64DBA72"
	TestVault             = "0x45300386d7A051335c638480B20E9db93bc919E9"
)

// NewPayment builds a payment in the given status with amount 0.50 for 50
// credits on BSC USDT.
func NewPayment(status domain.PaymentStatus) domain.Payment {
	now := time.Now().UTC()
	p := domain.Payment{
		ID:          uuid.New(),
		BuyerID:     TestBuyerID,
		Destination: TestDestination,
		Chain:       domain.ChainBSC,
		Token:       domain.TokenUSDT,
		Credits:     50,
		GrossAmount: decimal.RequireFromString("0.5"),
		FeeAmount:   decimal.Zero,
		Amount:      decimal.RequireFromString("0.5"),
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if status.IsTerminal() {
		p.CompletedAt = &now
	}
	if status == domain.PaymentStatusCompleted {
		ref := "0xabc"
		p.SettlementTxRef = &ref
	}
	return p
}

func GetPaymentStatus(t *testing.T, db *sql.DB, id uuid.UUID) domain.PaymentStatus {
	t.Helper()

	var status domain.PaymentStatus
	err := db.QueryRow(`SELECT status FROM payments WHERE id = $1`, id).Scan(&status)
	if err != nil {
		t.Fatalf("get payment status %s: %v", id, err)
	}
	return status
}

func CountPaymentEvents(t *testing.T, db *sql.DB, id uuid.UUID, eventType domain.PaymentEventType) int {
	t.Helper()

	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM payment_events WHERE payment_id = $1 AND event_type = $2`,
		id, eventType,
	).Scan(&count)
	if err != nil {
		t.Fatalf("count payment events for %s: %v", id, err)
	}
	return count
}
