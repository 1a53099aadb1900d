package domain

import "time"

// BalanceCacheTTL is how long a decrypted balance stays usable before the
// user must re-decrypt it.
const BalanceCacheTTL = 30 * 24 * time.Hour

// BalanceCacheEntry is a decrypted account balance cached per
// (account, chain). The on-chain balance is ciphertext; decrypting it takes
// minutes, so confirmed wagers and claims adjust this entry optimistically
// instead of re-decrypting.
type BalanceCacheEntry struct {
	Account  string    `json:"account"`
	ChainID  int64     `json:"chain_id"`
	Balance  float64   `json:"balance"`
	CachedAt time.Time `json:"cached_at"`
}

// Expired reports whether the entry is past its fixed 30-day lifetime.
func (e BalanceCacheEntry) Expired(now time.Time) bool {
	return now.Sub(e.CachedAt) > BalanceCacheTTL
}

// ApplyDelta returns the entry with the delta applied. A delta that would
// drive the balance negative means the cache has drifted from the chain; the
// second return value is false and the caller must invalidate instead.
func (e BalanceCacheEntry) ApplyDelta(delta float64) (BalanceCacheEntry, bool) {
	next := e.Balance + delta
	if next < 0 {
		return e, false
	}
	e.Balance = next
	return e, true
}
