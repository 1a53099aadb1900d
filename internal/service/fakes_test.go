package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/veilbet/veilbet/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ---------------------------------------------------------------------------
// Gateway fake
// ---------------------------------------------------------------------------

type fakeGateway struct {
	mu sync.Mutex

	market    domain.Market
	marketErr error

	oracle    domain.OracleSnapshot
	oracleErr error

	handles    domain.PoolHandles
	handlesErr error

	wagers    []domain.WagerCiphertexts
	wagersErr error

	payout    domain.PayoutStatus
	payoutErr error

	balanceHandle    domain.Handle
	balanceHandleErr error

	submitErr     error
	minedAt       time.Time
	submitted     []domain.EncryptedWager
	requestCalls  int
	claimCalls    int
	payoutQueries int
}

func (g *fakeGateway) GetMarket(ctx context.Context, id uint64) (domain.Market, error) {
	if g.marketErr != nil {
		return domain.Market{}, g.marketErr
	}
	m := g.market
	m.ID = id
	return m, nil
}

func (g *fakeGateway) ListMarkets(ctx context.Context) ([]domain.Market, error) {
	return []domain.Market{g.market}, nil
}

func (g *fakeGateway) OracleSnapshot(ctx context.Context, id uint64) (domain.OracleSnapshot, error) {
	return g.oracle, g.oracleErr
}

func (g *fakeGateway) PoolHandles(ctx context.Context, id uint64) (domain.PoolHandles, error) {
	return g.handles, g.handlesErr
}

func (g *fakeGateway) WagerHandles(ctx context.Context, id uint64, account string) ([]domain.WagerCiphertexts, error) {
	return g.wagers, g.wagersErr
}

func (g *fakeGateway) BalanceHandle(ctx context.Context, account string) (domain.Handle, error) {
	return g.balanceHandle, g.balanceHandleErr
}

func (g *fakeGateway) SubmitWager(ctx context.Context, w domain.EncryptedWager) (domain.SubmittedWager, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.submitErr != nil {
		return domain.SubmittedWager{}, g.submitErr
	}
	g.submitted = append(g.submitted, w)
	return domain.SubmittedWager{
		TxHash:  fmt.Sprintf("0xtx%d", len(g.submitted)),
		MinedAt: g.minedAt,
	}, nil
}

func (g *fakeGateway) PayoutStatus(ctx context.Context, id uint64, account string) (domain.PayoutStatus, error) {
	g.mu.Lock()
	g.payoutQueries++
	g.mu.Unlock()
	if g.payoutErr != nil {
		return domain.PayoutStatus{}, g.payoutErr
	}
	st := g.payout
	st.MarketID = id
	st.Account = account
	return st, nil
}

func (g *fakeGateway) RequestPayout(ctx context.Context, id uint64) (string, error) {
	g.requestCalls++
	return "0xreq", nil
}

func (g *fakeGateway) ClaimPayout(ctx context.Context, id uint64) (string, error) {
	g.claimCalls++
	return "0xclaim", nil
}

// ---------------------------------------------------------------------------
// Capability fakes
// ---------------------------------------------------------------------------

type fakeDecryptor struct {
	values map[domain.Handle]uint64
	err    error
	calls  int
}

func (d *fakeDecryptor) BatchDecrypt(ctx context.Context, permit domain.DecryptionPermit, handles []domain.Handle) (map[domain.Handle]uint64, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	out := make(map[domain.Handle]uint64, len(handles))
	for _, h := range handles {
		if v, ok := d.values[h]; ok {
			out[h] = v
		}
	}
	return out, nil
}

type fakeEncryptor struct {
	err error
}

func (e *fakeEncryptor) Encrypt(ctx context.Context, value uint64) (domain.Ciphertext, error) {
	if e.err != nil {
		return domain.Ciphertext{}, e.err
	}
	return domain.Ciphertext{
		Data:  []byte(fmt.Sprintf("ct:%d", value)),
		Proof: []byte("proof"),
	}, nil
}

type fakePermits struct {
	account string
}

func (p *fakePermits) IssuePermit(ctx context.Context, contract string, ttl time.Duration) (domain.DecryptionPermit, error) {
	now := time.Now().Add(-time.Second)
	return domain.DecryptionPermit{
		Contract:  contract,
		Account:   p.account,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
		Signature: "0xsig",
	}, nil
}

func (p *fakePermits) Account() string { return p.account }

// ---------------------------------------------------------------------------
// Ledger fake (mirrors the postgres upsert semantics)
// ---------------------------------------------------------------------------

type ledgerKey struct {
	account  string
	chainID  int64
	marketID uint64
	placedAt int64
}

type memLedger struct {
	mu      sync.Mutex
	records map[ledgerKey]domain.LocalWagerRecord
	appends int
	failAll bool
}

func newMemLedger() *memLedger {
	return &memLedger{records: make(map[ledgerKey]domain.LocalWagerRecord)}
}

func keyOf(rec domain.LocalWagerRecord) ledgerKey {
	return ledgerKey{rec.Account, rec.ChainID, rec.MarketID, rec.PlacedAt.Unix()}
}

func (l *memLedger) Append(ctx context.Context, rec domain.LocalWagerRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failAll {
		return fmt.Errorf("ledger down")
	}
	l.appends++
	k := keyOf(rec)
	if _, exists := l.records[k]; exists {
		return nil
	}
	l.records[k] = rec
	return nil
}

func (l *memLedger) Upsert(ctx context.Context, rec domain.LocalWagerRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failAll {
		return fmt.Errorf("ledger down")
	}
	k := keyOf(rec)
	if prev, exists := l.records[k]; exists {
		if rec.TxHash == "" {
			rec.TxHash = prev.TxHash
		}
		if rec.PriceAtWager == 0 {
			rec.PriceAtWager = prev.PriceAtWager
		}
		if rec.ID == "" {
			rec.ID = prev.ID
		}
	}
	l.records[k] = rec
	return nil
}

func (l *memLedger) List(ctx context.Context, account string, chainID int64, marketID uint64) ([]domain.LocalWagerRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failAll {
		return nil, fmt.Errorf("ledger down")
	}
	var out []domain.LocalWagerRecord
	for k, rec := range l.records {
		if k.account == account && k.chainID == chainID && k.marketID == marketID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlacedAt.Before(out[j].PlacedAt) })
	return out, nil
}

// ---------------------------------------------------------------------------
// Cache fakes
// ---------------------------------------------------------------------------

type memBalanceCache struct {
	mu      sync.Mutex
	entries map[string]domain.BalanceCacheEntry
}

func newMemBalanceCache() *memBalanceCache {
	return &memBalanceCache{entries: make(map[string]domain.BalanceCacheEntry)}
}

func balKey(account string, chainID int64) string {
	return fmt.Sprintf("%d:%s", chainID, account)
}

func (c *memBalanceCache) Get(ctx context.Context, account string, chainID int64) (domain.BalanceCacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[balKey(account, chainID)]
	if !ok || e.Expired(time.Now()) {
		return domain.BalanceCacheEntry{}, domain.ErrBalanceUnknown
	}
	return e, nil
}

func (c *memBalanceCache) Put(ctx context.Context, e domain.BalanceCacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e.CachedAt.IsZero() {
		e.CachedAt = time.Now()
	}
	c.entries[balKey(e.Account, e.ChainID)] = e
	return nil
}

func (c *memBalanceCache) ApplyDelta(ctx context.Context, account string, chainID int64, delta float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := balKey(account, chainID)
	e, ok := c.entries[k]
	if !ok {
		return domain.ErrBalanceUnknown
	}
	next, ok := e.ApplyDelta(delta)
	if !ok {
		delete(c.entries, k)
		return domain.ErrBalanceUnknown
	}
	c.entries[k] = next
	return nil
}

func (c *memBalanceCache) Invalidate(ctx context.Context, account string, chainID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, balKey(account, chainID))
	return nil
}

type memSnapshotCache struct {
	mu    sync.Mutex
	snaps map[uint64]domain.StatisticsSnapshot
}

func newMemSnapshotCache() *memSnapshotCache {
	return &memSnapshotCache{snaps: make(map[uint64]domain.StatisticsSnapshot)}
}

func (c *memSnapshotCache) Publish(ctx context.Context, snap domain.StatisticsSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snaps[snap.MarketID] = snap
	return nil
}

func (c *memSnapshotCache) Latest(ctx context.Context, marketID uint64) (domain.StatisticsSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, ok := c.snaps[marketID]
	if !ok {
		return domain.StatisticsSnapshot{}, domain.ErrNotFound
	}
	return snap, nil
}

type memPayoutCache struct {
	mu       sync.Mutex
	statuses map[string]domain.PayoutStatus
}

func newMemPayoutCache() *memPayoutCache {
	return &memPayoutCache{statuses: make(map[string]domain.PayoutStatus)}
}

func (c *memPayoutCache) Get(ctx context.Context, marketID uint64, account string) (domain.PayoutStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.statuses[fmt.Sprintf("%d:%s", marketID, account)]
	if !ok {
		return domain.PayoutStatus{}, domain.ErrNotFound
	}
	return st, nil
}

func (c *memPayoutCache) Put(ctx context.Context, status domain.PayoutStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[fmt.Sprintf("%d:%s", status.MarketID, status.Account)] = status
	return nil
}

type memMarketCache struct {
	mu      sync.Mutex
	markets map[uint64]domain.Market
}

func newMemMarketCache() *memMarketCache {
	return &memMarketCache{markets: make(map[uint64]domain.Market)}
}

func (c *memMarketCache) Set(ctx context.Context, m domain.Market) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markets[m.ID] = m
	return nil
}

func (c *memMarketCache) Get(ctx context.Context, id uint64) (domain.Market, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (c *memMarketCache) Invalidate(ctx context.Context, id uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.markets, id)
	return nil
}

type memLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMemLocks() *memLocks {
	return &memLocks{held: make(map[string]bool)}
}

func (l *memLocks) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, domain.ErrLockHeld
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}, nil
}

type memBus struct {
	mu        sync.Mutex
	published map[string][][]byte
}

func newMemBus() *memBus {
	return &memBus{published: make(map[string][][]byte)}
}

func (b *memBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *memBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

// ---------------------------------------------------------------------------
// Hint store fake
// ---------------------------------------------------------------------------

type fakeHints struct {
	mu       sync.Mutex
	recorded []domain.WagerHint
	lost     bool
	lossErr  error
	readErr  error
}

func (h *fakeHints) RecordWager(ctx context.Context, hint domain.WagerHint) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.lossErr != nil {
		return h.lossErr
	}
	h.recorded = append(h.recorded, hint)
	return nil
}

func (h *fakeHints) ResolvedLoss(ctx context.Context, marketID uint64, account string) (bool, error) {
	if h.readErr != nil {
		return false, h.readErr
	}
	return h.lost, nil
}
