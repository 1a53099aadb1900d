package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/veilbet/veilbet/internal/domain"
)

// PayoutOps defines the payout-service methods the handler requires.
type PayoutOps interface {
	Status(ctx context.Context, marketID uint64) (domain.PayoutStatus, error)
	StatusOnChain(ctx context.Context, marketID uint64) (domain.PayoutStatus, error)
	Request(ctx context.Context, marketID uint64) (domain.PayoutStatus, error)
	Claim(ctx context.Context, marketID uint64) (domain.PayoutStatus, error)
}

// PayoutHandler serves the claim-lifecycle endpoints for resolved markets.
type PayoutHandler struct {
	payouts PayoutOps
	logger  *slog.Logger
}

// NewPayoutHandler creates a PayoutHandler with the given service and logger.
func NewPayoutHandler(payouts PayoutOps, logger *slog.Logger) *PayoutHandler {
	return &PayoutHandler{
		payouts: payouts,
		logger:  logger,
	}
}

// GetStatus returns the account's payout status for a resolved market. With
// ?force=true the hint store is bypassed and the chain is queried directly.
// GET /api/markets/{id}/payout
func (h *PayoutHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := marketIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	query := h.payouts.Status
	if r.URL.Query().Get("force") == "true" {
		query = h.payouts.StatusOnChain
	}

	status, err := query(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// RequestPayout asks the contract to start decrypting the account's winnings.
// POST /api/markets/{id}/payout/request
func (h *PayoutHandler) RequestPayout(w http.ResponseWriter, r *http.Request) {
	id, err := marketIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	status, err := h.payouts.Request(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, status)
}

// ClaimPayout transfers a processed payout to the account.
// POST /api/markets/{id}/payout/claim
func (h *PayoutHandler) ClaimPayout(w http.ResponseWriter, r *http.Request) {
	id, err := marketIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	status, err := h.payouts.Claim(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
