package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/veilbet/veilbet/internal/domain"
	"github.com/veilbet/veilbet/internal/pricing"
	"github.com/veilbet/veilbet/internal/service"
)

// WagerPlacer defines the wager-service methods the wager handler requires.
type WagerPlacer interface {
	Quote(ctx context.Context, req service.WagerRequest) (pricing.Quote, error)
	Place(ctx context.Context, req service.WagerRequest) (domain.LocalWagerRecord, error)
}

// RevealRunner merges the chain's decrypted wagers into the local ledger.
type RevealRunner interface {
	Reveal(ctx context.Context, marketID uint64) (int, error)
}

// WagerHandler serves wager submission, quoting, and reveal endpoints.
type WagerHandler struct {
	wagers WagerPlacer
	reveal RevealRunner
	logger *slog.Logger
}

// NewWagerHandler creates a WagerHandler with the given services and logger.
func NewWagerHandler(wagers WagerPlacer, reveal RevealRunner, logger *slog.Logger) *WagerHandler {
	return &WagerHandler{
		wagers: wagers,
		reveal: reveal,
		logger: logger,
	}
}

// placeWagerRequest is the JSON body of a wager submission.
type placeWagerRequest struct {
	OptionIdx *int    `json:"option_idx"`
	Outcome   string  `json:"outcome"`
	Amount    float64 `json:"amount"`
}

// wagerResponse is the JSON shape of one ledger record.
type wagerResponse struct {
	ID           string         `json:"id"`
	MarketID     uint64         `json:"market_id"`
	PlacedAt     time.Time      `json:"placed_at"`
	OptionIdx    int            `json:"option_idx"`
	Outcome      domain.Outcome `json:"outcome,omitempty"`
	Amount       float64        `json:"amount"`
	TxHash       string         `json:"tx_hash,omitempty"`
	PriceAtWager float64        `json:"price_at_wager,omitempty"`
	Revealed     bool           `json:"revealed"`
}

func toWagerResponse(rec domain.LocalWagerRecord) wagerResponse {
	return wagerResponse{
		ID:           rec.ID,
		MarketID:     rec.MarketID,
		PlacedAt:     rec.PlacedAt,
		OptionIdx:    rec.OptionIdx,
		Outcome:      rec.Outcome,
		Amount:       rec.Amount,
		TxHash:       rec.TxHash,
		PriceAtWager: rec.PriceAtWager,
		Revealed:     rec.Revealed,
	}
}

// parseOutcome validates the outcome field of a quote or wager. Anything
// other than "yes", "no", or empty is rejected here; passing it through would
// silently price the request as a no-outcome bet.
func parseOutcome(raw string) (domain.Outcome, bool) {
	switch out := domain.Outcome(raw); out {
	case domain.OutcomeNone, domain.OutcomeYes, domain.OutcomeNo:
		return out, true
	default:
		return domain.OutcomeNone, false
	}
}

// PlaceWager validates and submits a wager on a market.
// POST /api/markets/{id}/wagers
func (h *WagerHandler) PlaceWager(w http.ResponseWriter, r *http.Request) {
	id, err := marketIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var body placeWagerRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// A missing option_idx maps to -1 so the service reports "no option
	// selected" rather than treating it as option 0.
	optionIdx := -1
	if body.OptionIdx != nil {
		optionIdx = *body.OptionIdx
	}

	outcome, ok := parseOutcome(body.Outcome)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid outcome")
		return
	}

	rec, err := h.wagers.Place(r.Context(), service.WagerRequest{
		MarketID:  id,
		OptionIdx: optionIdx,
		Outcome:   outcome,
		Amount:    body.Amount,
	})
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toWagerResponse(rec))
}

// QuoteWager returns the live pre-trade quote for a candidate wager.
// GET /api/markets/{id}/quote?option=0&outcome=yes&amount=100
func (h *WagerHandler) QuoteWager(w http.ResponseWriter, r *http.Request) {
	id, err := marketIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := r.URL.Query()
	optionIdx, err := strconv.Atoi(q.Get("option"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid option")
		return
	}
	amount, err := strconv.ParseFloat(q.Get("amount"), 64)
	if err != nil || amount <= 0 {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	outcome, ok := parseOutcome(q.Get("outcome"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid outcome")
		return
	}

	quote, err := h.wagers.Quote(r.Context(), service.WagerRequest{
		MarketID:  id,
		OptionIdx: optionIdx,
		Outcome:   outcome,
		Amount:    amount,
	})
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, quote)
}

// Reveal decrypts the account's on-chain wagers for a market and merges them
// into the local ledger.
// POST /api/markets/{id}/reveal
func (h *WagerHandler) Reveal(w http.ResponseWriter, r *http.Request) {
	id, err := marketIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	merged, err := h.reveal.Reveal(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"merged": merged})
}
