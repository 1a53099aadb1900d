package domain

import (
	"context"
	"strings"
	"time"
)

// Handle is a hex-encoded reference to one ciphertext slot on the contract.
// The cleartext behind a handle is only reachable through the decryption
// capability.
type Handle string

// Zero reports whether the handle is empty or the all-zero placeholder the
// contract returns for never-written slots. Zero handles must be filtered
// out before a batch decrypt.
func (h Handle) Zero() bool {
	s := strings.TrimPrefix(string(h), "0x")
	if s == "" {
		return true
	}
	return strings.Trim(s, "0") == ""
}

// OptionHandles are the ciphertext references for one option's pools.
type OptionHandles struct {
	Total Handle
	Yes   Handle
	No    Handle
}

// PoolHandles are the ciphertext references for a market's aggregates.
type PoolHandles struct {
	TotalPool Handle
	Traders   Handle
	Options   []OptionHandles
}

// OracleSnapshot is the periodically published cleartext aggregate maintained
// by the trusted oracle process. Values are meaningful only when Decrypted.
type OracleSnapshot struct {
	Decrypted   bool
	TotalVolume float64
	Options     []OptionShares
	Traders     int64
}

// Ciphertext is an encrypted input value with its zero-knowledge input proof,
// produced by the encryption capability for submission to the contract.
type Ciphertext struct {
	Data  []byte
	Proof []byte
}

// EncryptedWager is a fully encrypted wager payload ready for submission.
type EncryptedWager struct {
	MarketID uint64
	Option   Ciphertext
	Outcome  Ciphertext
	Amount   Ciphertext
}

// WagerCiphertexts are the per-wager ciphertext references the contract
// stores for one of the user's wagers. PlacedAt is the only cleartext field
// and the only correlation key shared with the local ledger.
type WagerCiphertexts struct {
	PlacedAt  time.Time
	OptionIdx Handle
	Outcome   Handle
	Amount    Handle
}

// SubmittedWager reports a confirmed wager submission. MinedAt is the
// including block's timestamp, which the contract also records as the wager's
// placedAt; the optimistic ledger record must carry it so the reveal merge
// correlates both sides. MinedAt is zero when the receipt could not be
// confirmed before the submission wait timed out.
type SubmittedWager struct {
	TxHash  string
	MinedAt time.Time
}

// MarketGateway is the remote procedure surface of the prediction contract.
type MarketGateway interface {
	GetMarket(ctx context.Context, id uint64) (Market, error)
	ListMarkets(ctx context.Context) ([]Market, error)

	OracleSnapshot(ctx context.Context, id uint64) (OracleSnapshot, error)
	PoolHandles(ctx context.Context, id uint64) (PoolHandles, error)
	WagerHandles(ctx context.Context, id uint64, account string) ([]WagerCiphertexts, error)
	BalanceHandle(ctx context.Context, account string) (Handle, error)

	SubmitWager(ctx context.Context, w EncryptedWager) (SubmittedWager, error)

	PayoutStatus(ctx context.Context, id uint64, account string) (PayoutStatus, error)
	RequestPayout(ctx context.Context, id uint64) (txHash string, err error)
	ClaimPayout(ctx context.Context, id uint64) (txHash string, err error)
}
