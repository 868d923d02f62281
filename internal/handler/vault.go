package handler

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/starbridge/internal/domain"
	"github.com/josh-kwaku/starbridge/internal/logging"
)

type vaultRegistry interface {
	Supports(c domain.Chain, t domain.Token) bool
	VaultAddress(c domain.Chain) (string, error)
}

type balanceReader interface {
	Balance(ctx context.Context, c domain.Chain, t domain.Token, vault string) (decimal.Decimal, error)
}

type VaultHandler struct {
	registry vaultRegistry
	oracle   balanceReader
}

func NewVaultHandler(registry vaultRegistry, oracle balanceReader) *VaultHandler {
	return &VaultHandler{registry: registry, oracle: oracle}
}

// Balance reports the vault's live token balance, read from chain.
func (h *VaultHandler) Balance(w http.ResponseWriter, r *http.Request) {
	c, okChain := domain.ParseChain(r.PathValue("chain"))
	t, okToken := domain.ParseToken(r.PathValue("token"))
	if !okChain || !okToken || !h.registry.Supports(c, t) {
		RespondAppError(w, ErrUnsupportedAsset, nil)
		return
	}

	vault, err := h.registry.VaultAddress(c)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	balance, err := h.oracle.Balance(r.Context(), c, t, vault)
	if err != nil {
		logging.FromContext(r.Context()).Warn("vault balance read failed", "chain", c, "token", t, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, map[string]any{
		"chain":   c,
		"token":   t,
		"vault":   vault,
		"balance": balance,
	})
}
