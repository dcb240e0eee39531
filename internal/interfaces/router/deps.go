package router

import (
	"context"
	"time"

	"carbonmarket-backend/internal/config"
	"carbonmarket-backend/internal/infrastructure/blobstore"
	"carbonmarket-backend/internal/infrastructure/chain"
	"carbonmarket-backend/internal/infrastructure/database"
	"carbonmarket-backend/internal/infrastructure/filestore"
	"carbonmarket-backend/internal/infrastructure/lock"
	"carbonmarket-backend/internal/infrastructure/scorer"
	"carbonmarket-backend/internal/repository"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const connectTimeout = 5 * time.Second

// openStore returns the durable store when DATABASE_URL answers, otherwise
// the JSON-file store.
func openStore(cfg *config.Config) (repository.Store, error) {
	if cfg.DatabaseURL != "" {
		store, err := openDatabase(cfg.DatabaseURL)
		if err == nil {
			log.Info().Str("store", store.Name()).Msg("Database connected")
			return store, nil
		}
		log.Warn().Err(err).Str("path", cfg.FallbackStorePath).Msg("database unavailable, falling back to file store")
	} else {
		log.Warn().Str("path", cfg.FallbackStorePath).Msg("DATABASE_URL not set, using file store")
	}
	return filestore.Open(cfg.FallbackStorePath)
}

func openDatabase(dsn string) (*database.Store, error) {
	db, err := database.Open(dsn)
	if err != nil {
		return nil, err
	}
	store := &database.Store{DB: db}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, err
	}
	return store, nil
}

// openRedis returns nil when REDIS_URL is unset or unreachable.
func openRedis(url string) *redis.Client {
	if url == "" {
		return nil
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Warn().Err(err).Msg("invalid REDIS_URL, running without redis")
		return nil
	}
	rdb := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis unreachable, running without redis")
		_ = rdb.Close()
		return nil
	}
	log.Info().Msg("Redis connected")
	return rdb
}

func newLocker(rdb *redis.Client, ttl time.Duration) lock.Locker {
	if rdb == nil {
		return lock.NewMemory()
	}
	return lock.NewRedis(rdb, ttl)
}

func newBlobStore(cfg *config.Config) blobstore.BlobStore {
	if cfg.BlobStoreURL != "" {
		return blobstore.NewIPFSClient(cfg.BlobStoreURL, cfg.BlobGatewayURL, 30*time.Second)
	}
	log.Warn().Str("dir", cfg.BlobLocalDir).Msg("BLOB_STORE_URL not set, storing documents on local disk")
	return &blobstore.LocalStore{Dir: cfg.BlobLocalDir, GatewayURL: cfg.BlobGatewayURL}
}

func newScorer(cfg *config.Config) scorer.Scorer {
	if cfg.ScorerAPIKey == "" {
		log.Warn().Msg("SCORER_API_KEY not set, using heuristic document scorer")
		return scorer.Heuristic{}
	}
	return scorer.WithFallback(
		scorer.NewGeminiClient(cfg.ScorerBaseURL, cfg.ScorerAPIKey, cfg.ScorerModel, cfg.ScorerTimeout),
		scorer.Heuristic{},
	)
}

// newVerifier never fails: without a reachable RPC endpoint every balance is
// reported as unknown.
func newVerifier(cfg *config.Config) *chain.Verifier {
	v := &chain.Verifier{
		DefaultContract: cfg.CreditContractAddress,
		Decimals:        cfg.CreditTokenDecimals,
		Timeout:         cfg.ChainTimeout,
	}
	if cfg.ChainRPCURL == "" {
		return v
	}
	client, err := chain.DialClient(cfg.ChainRPCURL)
	if err != nil {
		log.Warn().Err(err).Msg("chain rpc dial failed, on-chain collateral checks disabled")
		return v
	}
	v.Caller = client
	return v
}
