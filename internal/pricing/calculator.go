package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/starbridge/internal/config"
	"github.com/josh-kwaku/starbridge/internal/domain"
)

type FeeSchedule struct {
	BaseRate         decimal.Decimal
	OperationalFee   decimal.Decimal
	SmallTxFeePct    decimal.Decimal
	LargeTxFeePct    decimal.Decimal
	LargeTxThreshold decimal.Decimal
	MinimumAmount    decimal.Decimal
	AmountScale      int32
}

func ScheduleFromConfig(f config.FeeConfig) FeeSchedule {
	return FeeSchedule{
		BaseRate:         decimal.NewFromFloat(f.BaseRate),
		OperationalFee:   decimal.NewFromFloat(f.OperationalFee),
		SmallTxFeePct:    decimal.NewFromFloat(f.SmallTxFeePct),
		LargeTxFeePct:    decimal.NewFromFloat(f.LargeTxFeePct),
		LargeTxThreshold: decimal.NewFromFloat(f.LargeTxThreshold),
		MinimumAmount:    decimal.NewFromFloat(f.MinimumAmount),
		AmountScale:      f.AmountScale,
	}
}

type Breakdown struct {
	Credits        int64
	GrossAmount    decimal.Decimal
	OperationalFee decimal.Decimal
	PercentageFee  decimal.Decimal
	TotalFees      decimal.Decimal
	Amount         decimal.Decimal
}

type Calculator struct {
	schedule FeeSchedule
}

func NewCalculator(schedule FeeSchedule) *Calculator {
	return &Calculator{schedule: schedule}
}

// Calculate converts credits into the settlement amount. The amount is
// truncated to AmountScale places so rounding never pays out more than the
// schedule allows.
func (c *Calculator) Calculate(credits int64) (*Breakdown, error) {
	if credits <= 0 {
		return nil, fmt.Errorf("Calculate: %w", domain.ErrInvalidAmount)
	}

	s := c.schedule
	gross := decimal.NewFromInt(credits).Mul(s.BaseRate)

	pct := s.SmallTxFeePct
	if gross.GreaterThanOrEqual(s.LargeTxThreshold) {
		pct = s.LargeTxFeePct
	}
	percentageFee := gross.Mul(pct)
	totalFees := s.OperationalFee.Add(percentageFee)
	amount := gross.Sub(totalFees).Truncate(s.AmountScale)

	if !amount.IsPositive() || amount.LessThan(s.MinimumAmount) {
		return nil, fmt.Errorf("Calculate: %d credits yields %s, minimum %s: %w",
			credits, amount, s.MinimumAmount, domain.ErrBelowMinimum)
	}

	return &Breakdown{
		Credits:        credits,
		GrossAmount:    gross,
		OperationalFee: s.OperationalFee,
		PercentageFee:  percentageFee,
		TotalFees:      totalFees,
		Amount:         amount,
	}, nil
}

// MinimumCredits is the smallest credit count whose amount clears the floor,
// used by callers to tell buyers how much they need to send.
func (c *Calculator) MinimumCredits() int64 {
	s := c.schedule
	n := s.MinimumAmount.Add(s.OperationalFee).
		Div(s.BaseRate.Mul(decimal.NewFromInt(1).Sub(s.SmallTxFeePct))).
		Ceil().IntPart()
	if n < 1 {
		n = 1
	}
	for {
		if _, err := c.Calculate(n); err == nil {
			return n
		}
		n++
	}
}
