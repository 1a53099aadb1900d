package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/veilbet/veilbet/internal/domain"
)

// Archiver implements domain.LedgerArchiver by serializing a resolved
// market's reconciled ledger to JSON and uploading it to the archive bucket.
//
// Callers treat the upload as best-effort; the archiver itself only reports
// the failure.
type Archiver struct {
	writer domain.BlobWriter
	now    func() time.Time
}

var _ domain.LedgerArchiver = (*Archiver)(nil)

// NewArchiver creates an Archiver that uploads through the given writer.
func NewArchiver(writer domain.BlobWriter) *Archiver {
	return &Archiver{writer: writer, now: time.Now}
}

// archiveDoc is the JSON document uploaded per resolved market.
type archiveDoc struct {
	MarketID       uint64                    `json:"market_id"`
	Question       string                    `json:"question"`
	Kind           domain.MarketKind         `json:"kind"`
	WinningOption  int                       `json:"winning_option"`
	WinningOutcome domain.Outcome            `json:"winning_outcome,omitempty"`
	ArchivedAt     time.Time                 `json:"archived_at"`
	Wagers         []archiveWager            `json:"wagers"`
}

// archiveWager is one revealed ledger record in the export. The record ID and
// transaction hash are kept for audit correlation.
type archiveWager struct {
	ID           string         `json:"id"`
	PlacedAt     time.Time      `json:"placed_at"`
	OptionIdx    int            `json:"option_idx"`
	Outcome      domain.Outcome `json:"outcome,omitempty"`
	Amount       float64        `json:"amount"`
	TxHash       string         `json:"tx_hash,omitempty"`
	PriceAtWager float64        `json:"price_at_wager,omitempty"`
}

// ArchiveMarket exports the reconciled ledger of a resolved market to
// archive/markets/<id>.json. Markets that are not yet resolved are rejected;
// their ledgers can still change.
func (a *Archiver) ArchiveMarket(ctx context.Context, market domain.Market, records []domain.LocalWagerRecord) error {
	if !market.IsResolved {
		return fmt.Errorf("s3blob: market %d is not resolved", market.ID)
	}

	doc := archiveDoc{
		MarketID:       market.ID,
		Question:       market.Question,
		Kind:           market.Kind,
		WinningOption:  market.WinningOption,
		WinningOutcome: market.WinningOutcome,
		ArchivedAt:     a.now().UTC(),
		Wagers:         make([]archiveWager, 0, len(records)),
	}
	for _, rec := range records {
		doc.Wagers = append(doc.Wagers, archiveWager{
			ID:           rec.ID,
			PlacedAt:     rec.PlacedAt,
			OptionIdx:    rec.OptionIdx,
			Outcome:      rec.Outcome,
			Amount:       rec.Amount,
			TxHash:       rec.TxHash,
			PriceAtWager: rec.PriceAtWager,
		})
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("s3blob: archive market %d marshal: %w", market.ID, err)
	}

	path := fmt.Sprintf("archive/markets/%d.json", market.ID)
	if err := a.writer.Put(ctx, path, &buf, "application/json"); err != nil {
		return fmt.Errorf("s3blob: archive market %d upload: %w", market.ID, err)
	}
	return nil
}
