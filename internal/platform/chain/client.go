// Package chain talks to the encrypted prediction contract over JSON-RPC. It
// is the only package that knows the contract ABI; everything above it works
// in domain types.
package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/veilbet/veilbet/internal/crypto"
	"github.com/veilbet/veilbet/internal/domain"
)

const (
	// gasPriceTTL bounds how often the gas price is re-fetched.
	gasPriceTTL = 5 * time.Minute
	// receiptTimeout bounds how long a submission waits for inclusion.
	receiptTimeout = 60 * time.Second
	// receiptPollInterval is the receipt polling cadence.
	receiptPollInterval = 3 * time.Second
)

// Config carries the gateway's connection parameters.
type Config struct {
	RPCURL          string
	ChainID         int64
	ContractAddress string
	GasLimit        uint64
}

// Gateway implements domain.MarketGateway against the prediction contract.
type Gateway struct {
	client   *ethclient.Client
	signer   *crypto.Signer
	contract common.Address
	chainID  *big.Int
	gasLimit uint64
	logger   *slog.Logger

	mu           sync.Mutex
	cachedGasWei *big.Int
	gasUpdatedAt time.Time

	nonceMu sync.Mutex
}

var _ domain.MarketGateway = (*Gateway)(nil)

// New dials the RPC endpoint and returns a connected Gateway.
func New(cfg Config, signer *crypto.Signer, logger *slog.Logger) (*Gateway, error) {
	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial rpc %s: %w", cfg.RPCURL, err)
	}

	gasLimit := cfg.GasLimit
	if gasLimit == 0 {
		gasLimit = 3_000_000
	}

	return &Gateway{
		client:   client,
		signer:   signer,
		contract: common.HexToAddress(cfg.ContractAddress),
		chainID:  big.NewInt(cfg.ChainID),
		gasLimit: gasLimit,
		logger:   logger.With("component", "chain"),
	}, nil
}

// Close releases the underlying RPC connection.
func (g *Gateway) Close() {
	g.client.Close()
}

// Contract returns the prediction contract address in hex form.
func (g *Gateway) Contract() string {
	return g.contract.Hex()
}

// --------------------------------------------------------------------------
// Reads
// --------------------------------------------------------------------------

// GetMarket fetches one market's cleartext metadata.
func (g *Gateway) GetMarket(ctx context.Context, id uint64) (domain.Market, error) {
	var out marketResult
	if err := g.call(ctx, "getMarket", &out, new(big.Int).SetUint64(id)); err != nil {
		return domain.Market{}, fmt.Errorf("chain: getMarket %d: %w", id, err)
	}
	return out.toDomain(id), nil
}

// ListMarkets fetches every market on the contract. Markets are numbered
// 1..marketCount; individual fetch failures skip the market rather than fail
// the whole listing.
func (g *Gateway) ListMarkets(ctx context.Context) ([]domain.Market, error) {
	var count *big.Int
	if err := g.call(ctx, "marketCount", &count); err != nil {
		return nil, fmt.Errorf("chain: marketCount: %w", err)
	}

	n := count.Uint64()
	markets := make([]domain.Market, 0, n)
	for id := uint64(1); id <= n; id++ {
		m, err := g.GetMarket(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			g.logger.Warn("skipping unreadable market", "market_id", id, "err", err)
			continue
		}
		markets = append(markets, m)
	}
	return markets, nil
}

// OracleSnapshot fetches the oracle-published cleartext aggregates.
func (g *Gateway) OracleSnapshot(ctx context.Context, id uint64) (domain.OracleSnapshot, error) {
	var out oracleResult
	if err := g.call(ctx, "getOracleSnapshot", &out, new(big.Int).SetUint64(id)); err != nil {
		return domain.OracleSnapshot{}, fmt.Errorf("chain: getOracleSnapshot %d: %w", id, err)
	}
	return out.toDomain(), nil
}

// PoolHandles fetches the ciphertext references for a market's pools.
func (g *Gateway) PoolHandles(ctx context.Context, id uint64) (domain.PoolHandles, error) {
	var out handlesResult
	if err := g.call(ctx, "getPoolHandles", &out, new(big.Int).SetUint64(id)); err != nil {
		return domain.PoolHandles{}, fmt.Errorf("chain: getPoolHandles %d: %w", id, err)
	}
	return out.toDomain(), nil
}

// WagerHandles fetches the account's per-wager ciphertext references.
func (g *Gateway) WagerHandles(ctx context.Context, id uint64, account string) ([]domain.WagerCiphertexts, error) {
	var out wagersResult
	if err := g.call(ctx, "getWagers", &out, new(big.Int).SetUint64(id), common.HexToAddress(account)); err != nil {
		return nil, fmt.Errorf("chain: getWagers %d: %w", id, err)
	}
	return out.toDomain(), nil
}

// BalanceHandle fetches the ciphertext reference for the account's token
// balance. The cleartext balance is only reachable by decrypting this handle.
func (g *Gateway) BalanceHandle(ctx context.Context, account string) (domain.Handle, error) {
	var out [32]byte
	if err := g.call(ctx, "getBalanceHandle", &out, common.HexToAddress(account)); err != nil {
		return "", fmt.Errorf("chain: getBalanceHandle %s: %w", account, err)
	}
	return handleFromBytes32(out), nil
}

// PayoutStatus queries the on-chain claim state for (market, account).
func (g *Gateway) PayoutStatus(ctx context.Context, id uint64, account string) (domain.PayoutStatus, error) {
	var out payoutResult
	if err := g.call(ctx, "payoutStatus", &out, new(big.Int).SetUint64(id), common.HexToAddress(account)); err != nil {
		return domain.PayoutStatus{}, fmt.Errorf("chain: payoutStatus %d: %w", id, err)
	}
	return out.toDomain(id, account), nil
}

// --------------------------------------------------------------------------
// Writes
// --------------------------------------------------------------------------

// SubmitWager sends the fully encrypted wager to the contract and waits for
// inclusion. The contract records the block timestamp as the wager's
// placedAt, so the mined block time is returned alongside the hash; the
// optimistic ledger record must use it as its own timestamp or reveal can
// never match the two.
func (g *Gateway) SubmitWager(ctx context.Context, w domain.EncryptedWager) (domain.SubmittedWager, error) {
	callData, err := predictionABI.Pack("placeWager",
		new(big.Int).SetUint64(w.MarketID),
		w.Option.Data, w.Option.Proof,
		w.Outcome.Data, w.Outcome.Proof,
		w.Amount.Data, w.Amount.Proof,
	)
	if err != nil {
		return domain.SubmittedWager{}, fmt.Errorf("chain: pack placeWager: %w", err)
	}

	txHash, minedAt, err := g.sendTx(ctx, callData)
	if err != nil {
		return domain.SubmittedWager{}, fmt.Errorf("chain: placeWager market %d: %w", w.MarketID, mapRevert(err))
	}

	g.logger.Info("wager submitted", "market_id", w.MarketID, "tx", txHash)
	return domain.SubmittedWager{TxHash: txHash, MinedAt: minedAt}, nil
}

// RequestPayout asks the contract to begin decrypting the caller's position.
func (g *Gateway) RequestPayout(ctx context.Context, id uint64) (string, error) {
	callData, err := predictionABI.Pack("requestPayout", new(big.Int).SetUint64(id))
	if err != nil {
		return "", fmt.Errorf("chain: pack requestPayout: %w", err)
	}

	txHash, _, err := g.sendTx(ctx, callData)
	if err != nil {
		return "", fmt.Errorf("chain: requestPayout market %d: %w", id, mapRevert(err))
	}

	g.logger.Info("payout requested", "market_id", id, "tx", txHash)
	return txHash, nil
}

// ClaimPayout transfers the processed payout to the caller.
func (g *Gateway) ClaimPayout(ctx context.Context, id uint64) (string, error) {
	callData, err := predictionABI.Pack("claimPayout", new(big.Int).SetUint64(id))
	if err != nil {
		return "", fmt.Errorf("chain: pack claimPayout: %w", err)
	}

	txHash, _, err := g.sendTx(ctx, callData)
	if err != nil {
		return "", fmt.Errorf("chain: claimPayout market %d: %w", id, mapRevert(err))
	}

	g.logger.Info("payout claimed", "market_id", id, "tx", txHash)
	return txHash, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// call packs, executes, and unpacks a read-only contract call.
func (g *Gateway) call(ctx context.Context, method string, out any, args ...any) error {
	callData, err := predictionABI.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("pack %s: %w", method, err)
	}

	raw, err := g.client.CallContract(ctx, ethereum.CallMsg{
		To:   &g.contract,
		Data: callData,
	}, nil)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrGatewayUnavailable, err)
	}
	if len(raw) == 0 {
		return domain.ErrNotFound
	}

	if err := predictionABI.UnpackIntoInterface(out, method, raw); err != nil {
		return fmt.Errorf("unpack %s: %w", method, err)
	}
	return nil
}

// sendTx signs and submits a state-changing transaction, then waits for its
// receipt and resolves the including block's timestamp. The nonce mutex
// serialises submissions from the single engine account so concurrent calls
// cannot race on the pending nonce. A zero minedAt means the transaction was
// sent but not confirmed within the wait window.
func (g *Gateway) sendTx(ctx context.Context, callData []byte) (string, time.Time, error) {
	g.nonceMu.Lock()

	nonce, err := g.client.PendingNonceAt(ctx, g.signer.Address())
	if err != nil {
		g.nonceMu.Unlock()
		return "", time.Time{}, fmt.Errorf("nonce: %w", err)
	}

	gasPrice, err := g.getGasPrice(ctx)
	if err != nil {
		g.nonceMu.Unlock()
		return "", time.Time{}, fmt.Errorf("gas price: %w", err)
	}

	tx := types.NewTransaction(nonce, g.contract, big.NewInt(0), g.gasLimit, gasPrice, callData)

	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(g.chainID), g.signer.PrivateKey())
	if err != nil {
		g.nonceMu.Unlock()
		return "", time.Time{}, fmt.Errorf("sign tx: %w", err)
	}

	err = g.client.SendTransaction(ctx, signedTx)
	g.nonceMu.Unlock()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("send tx: %w", err)
	}

	txHash := signedTx.Hash()

	receiptCtx, cancel := context.WithTimeout(ctx, receiptTimeout)
	defer cancel()

	receipt, err := g.waitForReceipt(receiptCtx, txHash)
	if err != nil {
		// Sent but unconfirmed. The caller's refresh path will pick up the
		// on-chain truth either way.
		g.logger.Warn("could not confirm receipt, tx may still land", "tx", txHash.Hex(), "err", err)
		return txHash.Hex(), time.Time{}, nil
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return "", time.Time{}, fmt.Errorf("tx reverted: %s", txHash.Hex())
	}

	return txHash.Hex(), g.blockTime(ctx, receipt.BlockHash), nil
}

// blockTime reads the timestamp of the block that mined the transaction. A
// header fetch failure is reported as a zero time rather than failing the
// already confirmed submission.
func (g *Gateway) blockTime(ctx context.Context, blockHash common.Hash) time.Time {
	header, err := g.client.HeaderByHash(ctx, blockHash)
	if err != nil {
		g.logger.Warn("could not read mined block header", "block", blockHash.Hex(), "err", err)
		return time.Time{}
	}
	return time.Unix(int64(header.Time), 0).UTC()
}

// getGasPrice returns the suggested gas price with a 10% inclusion buffer,
// cached for gasPriceTTL.
func (g *Gateway) getGasPrice(ctx context.Context) (*big.Int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cachedGasWei != nil && time.Since(g.gasUpdatedAt) < gasPriceTTL {
		return g.cachedGasWei, nil
	}

	price, err := g.client.SuggestGasPrice(ctx)
	if err != nil {
		if g.cachedGasWei != nil {
			return g.cachedGasWei, nil
		}
		return nil, err
	}

	buffered := new(big.Int).Mul(price, big.NewInt(11))
	buffered.Div(buffered, big.NewInt(10))

	g.cachedGasWei = buffered
	g.gasUpdatedAt = time.Now()
	return buffered, nil
}

// waitForReceipt polls until the transaction is mined or ctx expires.
func (g *Gateway) waitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			receipt, err := g.client.TransactionReceipt(ctx, txHash)
			if err != nil {
				continue // not yet mined
			}
			return receipt, nil
		}
	}
}
