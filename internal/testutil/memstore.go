package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/starbridge/internal/domain"
)

// MemStore is an in-memory payment store with the same compare-and-swap
// semantics as the Postgres repository. It is safe for concurrent use.
type MemStore struct {
	mu       sync.RWMutex
	payments map[uuid.UUID]domain.Payment
	events   map[uuid.UUID][]domain.PaymentEvent

	// Fail, when set, is returned by every write.
	Fail error
}

func NewMemStore() *MemStore {
	return &MemStore{
		payments: make(map[uuid.UUID]domain.Payment),
		events:   make(map[uuid.UUID][]domain.PaymentEvent),
	}
}

func (s *MemStore) Create(_ context.Context, p *domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Fail != nil {
		return s.Fail
	}
	if _, ok := s.payments[p.ID]; ok {
		return fmt.Errorf("Create: payment %s exists", p.ID)
	}
	s.payments[p.ID] = *p
	s.appendLocked(p.ID, domain.PaymentEventTypeCreated, "system", nil)
	return nil
}

func (s *MemStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.payments[id]
	if !ok {
		return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
	}
	return &p, nil
}

func (s *MemStore) UpdateStatusIf(_ context.Context, id uuid.UUID, t domain.Transition) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Fail != nil {
		return false, s.Fail
	}
	p, ok := s.payments[id]
	if !ok || p.Status != t.Expected {
		return false, nil
	}

	p.Status = t.Next
	if t.SettlementTxRef != nil {
		p.SettlementTxRef = t.SettlementTxRef
	}
	if t.FailureReason != nil {
		p.FailureReason = t.FailureReason
	}
	if t.CompletedAt != nil {
		p.CompletedAt = t.CompletedAt
	}
	p.UpdatedAt = time.Now().UTC()
	s.payments[id] = p
	s.appendLocked(id, domain.EventTypeForStatus(t.Next), t.Actor, t.Payload)
	return true, nil
}

func (s *MemStore) ClaimSettlement(_ context.Context, id uuid.UUID, chargeRef string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Fail != nil {
		return false, s.Fail
	}
	p, ok := s.payments[id]
	if !ok || p.Status != domain.PaymentStatusProcessing || p.SettlementStartedAt != nil {
		return false, nil
	}

	if chargeRef != "" {
		for otherID, other := range s.payments {
			if otherID != id && !other.Status.IsTerminal() && other.ChargeRef != nil && *other.ChargeRef == chargeRef {
				return false, fmt.Errorf("ClaimSettlement: %w", domain.ErrDuplicateCharge)
			}
		}
		ref := chargeRef
		p.ChargeRef = &ref
	}

	now := time.Now().UTC()
	p.SettlementStartedAt = &now
	p.UpdatedAt = now
	s.payments[id] = p
	s.appendLocked(id, domain.PaymentEventTypeSettlementStarted, "system", nil)
	return true, nil
}

func (s *MemStore) ListByBuyer(_ context.Context, buyerID int64, limit, offset int) ([]domain.Payment, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []domain.Payment
	for _, p := range s.payments {
		if p.BuyerID == buyerID {
			all = append(all, p)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (s *MemStore) ListByStatus(_ context.Context, status domain.PaymentStatus, limit int) ([]domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Payment
	for _, p := range s.payments {
		if p.Status == status {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) ClaimRefund(_ context.Context, id uuid.UUID, operator string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Fail != nil {
		return false, s.Fail
	}
	p, ok := s.payments[id]
	if !ok || p.Status != domain.PaymentStatusFailed || p.ChargeRef == nil || p.RefundRequestedAt != nil {
		return false, nil
	}

	now := time.Now().UTC()
	p.RefundRequestedAt = &now
	p.UpdatedAt = now
	s.payments[id] = p
	payload, _ := json.Marshal(map[string]string{"charge_ref": *p.ChargeRef})
	s.appendLocked(id, domain.PaymentEventTypeRefundRequested, operator, payload)
	return true, nil
}

func (s *MemStore) ReleaseRefund(_ context.Context, id uuid.UUID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Fail != nil {
		return s.Fail
	}
	p, ok := s.payments[id]
	if !ok || p.RefundRequestedAt == nil {
		return nil
	}

	p.RefundRequestedAt = nil
	p.UpdatedAt = time.Now().UTC()
	s.payments[id] = p
	payload, _ := json.Marshal(map[string]string{"error": reason})
	s.appendLocked(id, domain.PaymentEventTypeRefundFailed, "system", payload)
	return nil
}

func (s *MemStore) Events(_ context.Context, id uuid.UUID) ([]domain.PaymentEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.PaymentEvent, len(s.events[id]))
	copy(out, s.events[id])
	return out, nil
}

// Put stores p as is, bypassing the state machine. Tests use it to start
// from an arbitrary status.
func (s *MemStore) Put(p domain.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[p.ID] = p
}

func (s *MemStore) appendLocked(id uuid.UUID, t domain.PaymentEventType, actor string, payload []byte) {
	if actor == "" {
		actor = "system"
	}
	s.events[id] = append(s.events[id], domain.PaymentEvent{
		ID:        uuid.New(),
		PaymentID: id,
		EventType: t,
		Actor:     actor,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	})
}
