package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/veilbet/veilbet/internal/blob/s3"
	"github.com/veilbet/veilbet/internal/cache/redis"
	"github.com/veilbet/veilbet/internal/config"
	"github.com/veilbet/veilbet/internal/crypto"
	"github.com/veilbet/veilbet/internal/domain"
	"github.com/veilbet/veilbet/internal/platform/chain"
	"github.com/veilbet/veilbet/internal/platform/cofhe"
	"github.com/veilbet/veilbet/internal/platform/hintstore"
	"github.com/veilbet/veilbet/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Identity
	Signer *crypto.Signer

	// Remote surfaces
	Gateway *chain.Gateway
	Cofhe   *cofhe.Client
	Hints   domain.HintStore

	// Persistence
	Ledger domain.WagerLedger

	// Caches
	Balances  domain.BalanceCache
	Snapshots domain.SnapshotCache
	Payouts   domain.PayoutCache
	Markets   domain.MarketCache
	Locks     domain.LockManager
	Bus       domain.SignalBus

	// Archival (nil unless S3 is enabled)
	Archiver domain.LedgerArchiver
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Engine account key ---
	keyHex, err := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    cfg.Wallet.PrivateKey,
		EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      cfg.Wallet.KeyPassword,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("wire: load key: %w", err)
	}
	signer, err := crypto.NewSigner(keyHex, cfg.Chain.ChainID)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: signer: %w", err)
	}
	deps.Signer = signer

	// --- Chain gateway ---
	gateway, err := chain.New(chain.Config{
		RPCURL:          cfg.Chain.RPCURL,
		ChainID:         cfg.Chain.ChainID,
		ContractAddress: cfg.Chain.ContractAddress,
		GasLimit:        cfg.Chain.GasLimit,
	}, signer, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: chain: %w", err)
	}
	closers = append(closers, gateway.Close)
	deps.Gateway = gateway

	// --- Encryption/decryption capability ---
	deps.Cofhe = cofhe.NewClient(cfg.Cofhe.RelayerURL)

	// --- Hint store (no-op when base_url is empty) ---
	deps.Hints = hintstore.NewClient(cfg.HintStore.BaseURL, cfg.HintStore.ApiKey)

	// --- PostgreSQL wager ledger ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}
	deps.Ledger = postgres.NewWagerLedger(pgClient.Pool())

	// --- Redis caches, locks, signal bus ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.Balances = redis.NewBalanceCache(redisClient)
	deps.Snapshots = redis.NewSnapshotCache(redisClient)
	deps.Payouts = redis.NewPayoutCache(redisClient)
	deps.Markets = redis.NewMarketCache(redisClient)
	deps.Locks = redis.NewLockManager(redisClient)
	deps.Bus = redis.NewSignalBus(redisClient)

	// --- S3 ledger archive ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewArchiver(s3Client)
	}

	return deps, cleanup, nil
}
