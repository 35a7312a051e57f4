package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"solana-lp-sync/internal/config"
	"solana-lp-sync/internal/domain"
	"solana-lp-sync/internal/observability"
	"solana-lp-sync/internal/price"
	"solana-lp-sync/internal/protocol"
	"solana-lp-sync/internal/protocol/orca"
	"solana-lp-sync/internal/protocol/raydium"
	"solana-lp-sync/internal/reconcile"
	"solana-lp-sync/internal/solana"
)

// NewRPC builds the HTTP RPC client from the rpc section.
func NewRPC(cfg config.RPCConfig, logger *zap.Logger) *solana.HTTPClient {
	return solana.NewHTTPClient(cfg.Endpoint,
		solana.WithTimeout(cfg.Timeout.Duration),
		solana.WithMaxRetries(cfg.MaxRetries),
		solana.WithLogger(logger),
		solana.WithLatencyObserver(observability.RecordRPCLatency),
	)
}

// NewOracle builds the price oracle, behind a Redis cache when an address
// is configured. The returned func closes the cache connection.
func NewOracle(ctx context.Context, cfg *config.Config, logger *zap.Logger) (price.Oracle, func(), error) {
	var oracle price.Oracle = price.NewHTTPOracle(cfg.Oracle.BaseURL,
		price.WithTimeout(cfg.Oracle.Timeout.Duration),
		price.WithNetwork(cfg.Oracle.Network),
		price.WithLogger(logger),
		price.WithLatencyObserver(observability.RecordOracleLatency),
	)
	if cfg.Redis.Addr == "" {
		return oracle, func() {}, nil
	}

	rdb, err := price.NewRedisClient(ctx, price.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, nil, err
	}
	return price.NewRedisCache(rdb, oracle, cfg.Redis.PriceTTL.Duration, logger), func() { _ = rdb.Close() }, nil
}

// NewAdapter returns the protocol adapter registered under name.
func NewAdapter(name string, rpc solana.AccountsGetter, chunkSize int, logger *zap.Logger) (*protocol.Adapter, error) {
	opts := []protocol.AdapterOption{protocol.WithChunkSize(chunkSize), protocol.WithLogger(logger)}
	switch domain.Dex(name) {
	case domain.DexOrca:
		return orca.NewAdapter(rpc, opts...), nil
	case domain.DexRaydium:
		return raydium.NewAdapter(rpc, opts...), nil
	default:
		return nil, fmt.Errorf("unknown protocol %q", name)
	}
}

// NewProtocol returns the reconciliation protocol registered under name.
func NewProtocol(name string, rpc solana.AccountsGetter, chunkSize int, logger *zap.Logger) (reconcile.Protocol, error) {
	adapter, err := NewAdapter(name, rpc, chunkSize, logger)
	if err != nil {
		return nil, err
	}
	switch domain.Dex(name) {
	case domain.DexOrca:
		return orca.NewProtocol(adapter), nil
	default:
		return raydium.NewProtocol(adapter), nil
	}
}
