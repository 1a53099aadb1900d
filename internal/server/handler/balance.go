package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/veilbet/veilbet/internal/domain"
)

// BalanceOps defines the balance-service methods the handler requires.
type BalanceOps interface {
	Balance(ctx context.Context) (domain.BalanceCacheEntry, error)
	Refresh(ctx context.Context) (domain.BalanceCacheEntry, error)
}

// BalanceHandler serves the account's decrypted balance endpoints.
type BalanceHandler struct {
	balances BalanceOps
	logger   *slog.Logger
}

// NewBalanceHandler creates a BalanceHandler with the given service and logger.
func NewBalanceHandler(balances BalanceOps, logger *slog.Logger) *BalanceHandler {
	return &BalanceHandler{
		balances: balances,
		logger:   logger,
	}
}

// GetBalance returns the cached decrypted balance. An unknown balance is a
// 404; the client offers the refresh action instead of showing a number.
// GET /api/balance
func (h *BalanceHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	entry, err := h.balances.Balance(r.Context())
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// RefreshBalance decrypts the on-chain balance and replaces the cached entry.
// POST /api/balance/refresh
func (h *BalanceHandler) RefreshBalance(w http.ResponseWriter, r *http.Request) {
	entry, err := h.balances.Refresh(r.Context())
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
