package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veilbet/veilbet/internal/domain"
)

// WagerLedger implements domain.WagerLedger on PostgreSQL.
type WagerLedger struct {
	pool *pgxpool.Pool
}

var _ domain.WagerLedger = (*WagerLedger)(nil)

// NewWagerLedger creates a WagerLedger backed by the given pool.
func NewWagerLedger(pool *pgxpool.Pool) *WagerLedger {
	return &WagerLedger{pool: pool}
}

// Append inserts a freshly confirmed optimistic record. A record that already
// exists for the same (account, chain, market, placed_at) key is left alone:
// the chain confirmed the wager once, so a retried append must not duplicate
// or clobber it.
func (l *WagerLedger) Append(ctx context.Context, rec domain.LocalWagerRecord) error {
	const query = `
		INSERT INTO wagers (
			id, account, chain_id, market_id, placed_at,
			option_idx, outcome, amount, tx_hash, price_at_wager, revealed
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (account, chain_id, market_id, placed_at) DO NOTHING`

	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}

	_, err := l.pool.Exec(ctx, query,
		id, rec.Account, rec.ChainID, rec.MarketID, rec.PlacedAt,
		rec.OptionIdx, string(rec.Outcome), rec.Amount, rec.TxHash, rec.PriceAtWager, rec.Revealed,
	)
	if err != nil {
		return fmt.Errorf("postgres: append wager: %w", err)
	}
	return nil
}

// Upsert inserts or overwrites the record identified by
// (account, chain, market, placed_at). On conflict the decrypted fields win
// but tx_hash and price_at_wager keep their stored values when the incoming
// record has none; the reveal path cannot recover either from ciphertext.
func (l *WagerLedger) Upsert(ctx context.Context, rec domain.LocalWagerRecord) error {
	const query = `
		INSERT INTO wagers (
			id, account, chain_id, market_id, placed_at,
			option_idx, outcome, amount, tx_hash, price_at_wager, revealed
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (account, chain_id, market_id, placed_at) DO UPDATE SET
			option_idx     = EXCLUDED.option_idx,
			outcome        = EXCLUDED.outcome,
			amount         = EXCLUDED.amount,
			tx_hash        = CASE WHEN EXCLUDED.tx_hash = '' THEN wagers.tx_hash ELSE EXCLUDED.tx_hash END,
			price_at_wager = CASE WHEN EXCLUDED.price_at_wager = 0 THEN wagers.price_at_wager ELSE EXCLUDED.price_at_wager END,
			revealed       = EXCLUDED.revealed,
			updated_at     = NOW()`

	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}

	_, err := l.pool.Exec(ctx, query,
		id, rec.Account, rec.ChainID, rec.MarketID, rec.PlacedAt,
		rec.OptionIdx, string(rec.Outcome), rec.Amount, rec.TxHash, rec.PriceAtWager, rec.Revealed,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert wager: %w", err)
	}
	return nil
}

// List returns the account's records for one market, oldest first.
func (l *WagerLedger) List(ctx context.Context, account string, chainID int64, marketID uint64) ([]domain.LocalWagerRecord, error) {
	const query = `
		SELECT id, account, chain_id, market_id, placed_at,
		       option_idx, outcome, amount, tx_hash, price_at_wager, revealed
		FROM wagers
		WHERE account = $1 AND chain_id = $2 AND market_id = $3
		ORDER BY placed_at ASC`

	rows, err := l.pool.Query(ctx, query, account, chainID, marketID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list wagers: %w", err)
	}
	defer rows.Close()

	var records []domain.LocalWagerRecord
	for rows.Next() {
		var rec domain.LocalWagerRecord
		var outcome string
		if err := rows.Scan(
			&rec.ID, &rec.Account, &rec.ChainID, &rec.MarketID, &rec.PlacedAt,
			&rec.OptionIdx, &outcome, &rec.Amount, &rec.TxHash, &rec.PriceAtWager, &rec.Revealed,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan wager: %w", err)
		}
		rec.Outcome = domain.Outcome(outcome)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate wagers: %w", err)
	}

	return records, nil
}
