package app

import (
	"go.uber.org/zap"

	"solana-lp-sync/internal/config"
	"solana-lp-sync/internal/decode"
	"solana-lp-sync/internal/ingestion"
	"solana-lp-sync/internal/solana"
)

// Ingest is a decode pipeline with every configured program registered.
type Ingest struct {
	Pipeline *decode.Pipeline
	// ProgramIDs lists the registered program addresses, in config order.
	ProgramIDs []string
}

// NewIngest registers the configured programs on a fresh pipeline.
func NewIngest(cfg *config.Config, stores *Stores, rpc solana.AccountsGetter, logger *zap.Logger) (*Ingest, error) {
	pipeline := decode.New(decode.WithWorkers(cfg.Ingest.Workers), decode.WithLogger(logger))
	a := &Ingest{Pipeline: pipeline}

	for _, name := range cfg.Ingest.Programs {
		adapter, err := NewAdapter(name, rpc, cfg.RPC.ChunkSize, logger)
		if err != nil {
			pipeline.Close()
			return nil, err
		}
		if err := ingestion.Register(pipeline, adapter, stores.Events, stores.Positions, logger); err != nil {
			pipeline.Close()
			return nil, err
		}
		a.ProgramIDs = append(a.ProgramIDs, adapter.Descriptor().ProgramID)
	}
	return a, nil
}

// Close releases the pipeline workers.
func (a *Ingest) Close() {
	a.Pipeline.Close()
}
