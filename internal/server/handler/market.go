package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/veilbet/veilbet/internal/domain"
	"github.com/veilbet/veilbet/internal/pricing"
)

// StatsReader defines the statistics-service methods the market handler
// requires.
type StatsReader interface {
	Market(ctx context.Context, marketID uint64) (domain.Market, error)
	Latest(ctx context.Context, marketID uint64) (domain.StatisticsSnapshot, error)
	Refresh(ctx context.Context, marketID uint64) (domain.StatisticsSnapshot, error)
}

// MarketLister lists the catalog directly from the gateway.
type MarketLister interface {
	ListMarkets(ctx context.Context) ([]domain.Market, error)
}

// MarketHandler serves market catalog and statistics endpoints.
type MarketHandler struct {
	stats   StatsReader
	catalog MarketLister
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given services and logger.
func NewMarketHandler(stats StatsReader, catalog MarketLister, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		stats:   stats,
		catalog: catalog,
		logger:  logger,
	}
}

// marketResponse is the JSON shape of one market.
type marketResponse struct {
	ID             uint64            `json:"id"`
	Kind           domain.MarketKind `json:"kind"`
	Question       string            `json:"question"`
	Options        []string          `json:"options"`
	EndTime        time.Time         `json:"end_time"`
	Liquidity      float64           `json:"liquidity"`
	MinWager       float64           `json:"min_wager"`
	MaxWager       float64           `json:"max_wager"`
	IsActive       bool              `json:"is_active"`
	IsResolved     bool              `json:"is_resolved"`
	WinningOption  int               `json:"winning_option"`
	WinningOutcome domain.Outcome    `json:"winning_outcome,omitempty"`
}

func toMarketResponse(m domain.Market) marketResponse {
	titles := make([]string, 0, len(m.Options))
	for _, opt := range m.Options {
		titles = append(titles, opt.Title)
	}
	return marketResponse{
		ID:             m.ID,
		Kind:           m.Kind,
		Question:       m.Question,
		Options:        titles,
		EndTime:        m.EndTime,
		Liquidity:      m.Liquidity,
		MinWager:       m.MinWager,
		MaxWager:       m.MaxWager,
		IsActive:       m.IsActive,
		IsResolved:     m.IsResolved,
		WinningOption:  m.WinningOption,
		WinningOutcome: m.WinningOutcome,
	}
}

// ListMarkets returns the full market catalog.
// GET /api/markets
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := h.catalog.ListMarkets(r.Context())
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	out := make([]marketResponse, 0, len(markets))
	for _, m := range markets {
		out = append(out, toMarketResponse(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{"markets": out})
}

// marketDetailResponse pairs a market with its latest snapshot and the
// per-option probabilities derived from it.
type marketDetailResponse struct {
	Market   marketResponse            `json:"market"`
	Snapshot domain.StatisticsSnapshot `json:"snapshot"`
	Quotes   []pricing.OptionQuote     `json:"quotes"`
}

// GetMarket returns a single market with its latest statistics snapshot.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id, err := marketIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	market, err := h.stats.Market(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	snap, err := h.stats.Latest(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, marketDetailResponse{
		Market:   toMarketResponse(market),
		Snapshot: snap,
		Quotes:   pricing.OptionQuotes(market, snap),
	})
}

// RefreshSnapshot forces a statistics refresh and returns the new snapshot.
// POST /api/markets/{id}/refresh
func (h *MarketHandler) RefreshSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := marketIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := h.stats.Refresh(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
