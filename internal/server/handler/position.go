package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/veilbet/veilbet/internal/domain"
)

// PositionReader defines the position-service methods the handler requires.
type PositionReader interface {
	Wagers(ctx context.Context, marketID uint64) ([]domain.LocalWagerRecord, error)
	Positions(ctx context.Context, marketID uint64) ([]domain.PositionAggregate, error)
}

// PositionHandler serves the account's ledger and position endpoints.
type PositionHandler struct {
	positions PositionReader
	logger    *slog.Logger
}

// NewPositionHandler creates a PositionHandler with the given service and logger.
func NewPositionHandler(positions PositionReader, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		positions: positions,
		logger:    logger,
	}
}

// ListWagers returns the account's raw ledger records for a market.
// GET /api/markets/{id}/wagers
func (h *PositionHandler) ListWagers(w http.ResponseWriter, r *http.Request) {
	id, err := marketIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := h.positions.Wagers(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	out := make([]wagerResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toWagerResponse(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"wagers": out})
}

// ListPositions returns the account's aggregated positions for a market,
// marked to the latest snapshot.
// GET /api/markets/{id}/positions
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	id, err := marketIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	aggs, err := h.positions.Positions(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	if aggs == nil {
		aggs = []domain.PositionAggregate{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"positions": aggs})
}
