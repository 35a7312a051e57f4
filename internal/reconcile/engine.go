package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"solana-lp-sync/internal/domain"
	"solana-lp-sync/internal/observability"
	"solana-lp-sync/internal/price"
	"solana-lp-sync/internal/storage"
	"solana-lp-sync/internal/valuation"
)

// DefaultCycleInterval buckets pnl snapshots when none is configured.
const DefaultCycleInterval = 15 * time.Minute

// Skip reasons reported in Summary.Skipped and positions_skipped_total.
const (
	SkipInvalidID        = "invalid_id"
	SkipPositionMissing  = "position_missing"
	SkipPoolMismatch     = "pool_mismatch"
	SkipPoolMissing      = "pool_missing"
	SkipTickArrayMissing = "tick_array_missing"
	SkipMintMissing      = "mint_missing"
	SkipDecodeFailed     = "decode_failed"
)

// Stores groups the stores an engine writes to.
type Stores struct {
	Positions storage.PositionStore
	Pools     storage.PoolStore
	PnL       storage.PnLStore
	// History is optional.
	History storage.PnLHistoryStore
}

// Summary reports one wallet run.
type Summary struct {
	Wallet    string
	Dex       domain.Dex
	CreatedAt time.Time
	Loaded    int
	Synced    int
	Skipped   map[string]int
	// UnknownPrices lists mints valued at zero for lack of a quote.
	UnknownPrices []string
	PnL           []domain.PnL
}

// Engine reconciles positions of one protocol.
type Engine struct {
	proto  Protocol
	stores Stores
	mints  *MintResolver
	oracle price.Oracle

	clock       func() time.Time
	cycle       time.Duration
	workers     pond.Pool
	ownsWorkers bool
	logger      *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) EngineOption {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithCycleInterval sets the pnl bucket width.
func WithCycleInterval(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.cycle = d
	}
}

// WithWorkerPool runs persistence statements on pool.
func WithWorkerPool(pool pond.Pool) EngineOption {
	return func(e *Engine) {
		e.workers = pool
	}
}

// WithEngineLogger sets the logger.
func WithEngineLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an engine for proto.
func NewEngine(proto Protocol, stores Stores, mints *MintResolver, oracle price.Oracle, opts ...EngineOption) *Engine {
	e := &Engine{
		proto:  proto,
		stores: stores,
		mints:  mints,
		oracle: oracle,
		clock:  time.Now,
		cycle:  DefaultCycleInterval,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers == nil {
		e.workers = pond.NewPool(8)
		e.ownsWorkers = true
	}
	e.logger = e.logger.Named("reconcile").With(zap.String("dex", proto.Dex().String()))
	return e
}

// Close stops the worker pool the engine created. A pool supplied with
// WithWorkerPool is left to its owner.
func (e *Engine) Close() {
	if e.ownsWorkers {
		e.workers.StopAndWait()
	}
}

// Dex returns the protocol this engine reconciles.
func (e *Engine) Dex() domain.Dex {
	return e.proto.Dex()
}

// resolved is a position with every piece of chain context it needs.
type resolved struct {
	rel      *domain.PositionWithRelations
	position valuation.Position
	pool     valuation.Pool
	lower    valuation.Tick
	upper    valuation.Tick
}

// Sync reconciles the wallet's active positions. Positions lacking chain
// context are skipped. Transport failures abort the run; persistence
// failures are joined and returned after every statement was attempted.
//
// PnL is measured against the stored Position.AmountUSD. Sync never
// rewrites AmountUSD, BaseAmount or QuoteAmount, so every cycle compares
// against the opening deposit rather than the previous cycle.
func (e *Engine) Sync(ctx context.Context, wallet string) (*Summary, error) {
	now := e.clock()
	dex := e.proto.Dex()
	summary := &Summary{
		Wallet:    wallet,
		Dex:       dex,
		CreatedAt: valuation.CycleTimestamp(now, e.cycle),
		Skipped:   make(map[string]int),
	}
	skip := func(id, reason string, fields ...zap.Field) {
		summary.Skipped[reason]++
		observability.RecordPositionSkipped(dex.String(), reason)
		e.logger.Debug("skipping position", append(fields, zap.String("position", id), zap.String("reason", reason))...)
	}

	rels, err := e.stores.Positions.ListActiveByWallet(ctx, wallet, dex)
	if err != nil {
		return nil, fmt.Errorf("load positions: %w", err)
	}
	summary.Loaded = len(rels)
	if len(rels) == 0 {
		return summary, nil
	}

	// Position accounts.
	addrs := make(map[string]string, len(rels))
	keys := make([]string, 0, len(rels))
	for _, rel := range rels {
		addr, err := e.proto.PositionAddress(rel.ID)
		if err != nil {
			skip(rel.ID, SkipInvalidID, zap.Error(err))
			continue
		}
		addrs[rel.ID] = addr
		keys = append(keys, addr)
	}
	accounts, err := e.proto.FetchAccounts(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("fetch positions: %w", err)
	}

	var items []*resolved
	for _, rel := range rels {
		addr, ok := addrs[rel.ID]
		if !ok {
			continue
		}
		acct, ok := accounts[addr]
		if !ok {
			skip(rel.ID, SkipPositionMissing)
			continue
		}
		pos, err := e.proto.DecodePosition(addr, acct.Data)
		if err != nil {
			skip(rel.ID, SkipDecodeFailed, zap.Error(err))
			continue
		}
		if rel.Pool == nil {
			skip(rel.ID, SkipPoolMissing)
			continue
		}
		if pos.Pool != rel.Pool.ID {
			skip(rel.ID, SkipPoolMismatch, zap.String("stored_pool", rel.Pool.ID), zap.String("chain_pool", pos.Pool))
			continue
		}
		items = append(items, &resolved{rel: rel, position: pos})
	}

	// Pools.
	poolKeys := make([]string, 0, len(items))
	for _, it := range items {
		poolKeys = append(poolKeys, it.position.Pool)
	}
	poolAccounts, err := e.proto.FetchAccounts(ctx, poolKeys)
	if err != nil {
		return nil, fmt.Errorf("fetch pools: %w", err)
	}
	pools := make(map[string]valuation.Pool, len(poolAccounts))
	for addr, acct := range poolAccounts {
		p, err := e.proto.DecodePool(addr, acct.Data, now)
		if err != nil {
			e.logger.Warn("undecodable pool", zap.String("pool", addr), zap.Error(err))
			continue
		}
		pools[addr] = p
	}

	// Tick arrays.
	type bounds struct{ lower, upper string }
	arrays := make(map[*resolved]bounds, len(items))
	var arrayKeys []string
	withPool := items[:0]
	for _, it := range items {
		p, ok := pools[it.position.Pool]
		if !ok {
			skip(it.rel.ID, SkipPoolMissing, zap.String("pool", it.position.Pool))
			continue
		}
		it.pool = p
		lower, err := e.proto.TickArrayAddress(p.Address, p.TickSpacing, it.position.TickLower)
		if err != nil {
			skip(it.rel.ID, SkipDecodeFailed, zap.Error(err))
			continue
		}
		upper, err := e.proto.TickArrayAddress(p.Address, p.TickSpacing, it.position.TickUpper)
		if err != nil {
			skip(it.rel.ID, SkipDecodeFailed, zap.Error(err))
			continue
		}
		arrays[it] = bounds{lower: lower, upper: upper}
		arrayKeys = append(arrayKeys, lower, upper)
		withPool = append(withPool, it)
	}
	items = withPool

	tickAccounts, err := e.proto.FetchAccounts(ctx, arrayKeys)
	if err != nil {
		return nil, fmt.Errorf("fetch tick arrays: %w", err)
	}
	withTicks := items[:0]
	for _, it := range items {
		b := arrays[it]
		lowerAcct, okLower := tickAccounts[b.lower]
		upperAcct, okUpper := tickAccounts[b.upper]
		if !okLower || !okUpper {
			skip(it.rel.ID, SkipTickArrayMissing)
			continue
		}
		lower, err := e.proto.DecodeTick(lowerAcct.Data, it.position.TickLower, it.pool.TickSpacing)
		if err != nil {
			skip(it.rel.ID, SkipDecodeFailed, zap.Error(err))
			continue
		}
		upper, err := e.proto.DecodeTick(upperAcct.Data, it.position.TickUpper, it.pool.TickSpacing)
		if err != nil {
			skip(it.rel.ID, SkipDecodeFailed, zap.Error(err))
			continue
		}
		it.lower, it.upper = lower, upper
		withTicks = append(withTicks, it)
	}
	items = withTicks

	// Mints and prices, one lookup each for the whole run.
	var mintIDs []string
	for _, it := range items {
		mintIDs = append(mintIDs, it.pool.MintA, it.pool.MintB)
		mintIDs = append(mintIDs, it.pool.RewardMints()...)
	}
	mints, err := e.mints.Resolve(ctx, mintIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve mints: %w", err)
	}
	prices, err := e.oracle.Prices(ctx, mintIDs)
	if err != nil {
		return nil, fmt.Errorf("fetch prices: %w", err)
	}
	rewardDecimals := make(map[string]uint8, len(mints))
	for id, m := range mints {
		rewardDecimals[id] = m.Decimals
	}

	unknown := make(map[string]struct{})
	var (
		rows      []domain.PnL
		positions []domain.PositionSync
		extras    = make(map[string]domain.PoolSync)
	)
	for _, it := range items {
		mintA, okA := mints[it.pool.MintA]
		mintB, okB := mints[it.pool.MintB]
		if !okA || !okB {
			skip(it.rel.ID, SkipMintMissing)
			continue
		}

		snap, err := valuation.Compute(it.position, it.pool, it.lower, it.upper, mintA.Decimals, mintB.Decimals)
		if err != nil {
			skip(it.rel.ID, SkipDecodeFailed, zap.Error(err))
			continue
		}
		v := valuation.Value(snap, *mintA, *mintB, rewardDecimals, prices)
		for _, m := range v.Unknown {
			unknown[m] = struct{}{}
		}

		rows = append(rows, v.PnL(it.rel.ID, it.rel.AmountUSD, summary.CreatedAt))
		positions = append(positions, domain.PositionSync{
			PositionID: it.rel.ID,
			Active:     snap.Active,
			PriceRange: snap.PriceRange,
		})
		if _, done := extras[it.pool.Address]; !done {
			extras[it.pool.Address] = domain.PoolSync{
				PoolID: it.pool.Address,
				Extra:  e.proto.Extra(it.pool, snap.Price),
			}
		}
	}

	for m := range unknown {
		summary.UnknownPrices = append(summary.UnknownPrices, m)
		observability.RecordPriceUnknown(dex.String())
	}
	sort.Strings(summary.UnknownPrices)
	if len(summary.UnknownPrices) > 0 {
		e.logger.Warn("valuing mints without a price at zero",
			zap.String("wallet", wallet),
			zap.Strings("mints", summary.UnknownPrices),
		)
	}

	summary.PnL = rows
	summary.Synced = len(rows)
	observability.RecordPositionsSynced(dex.String(), len(rows))

	if err := e.persist(ctx, rows, positions, extras); err != nil {
		return summary, err
	}
	return summary, nil
}

// persist runs every statement independently and joins the failures.
func (e *Engine) persist(ctx context.Context, rows []domain.PnL, positions []domain.PositionSync, extras map[string]domain.PoolSync) error {
	var (
		mu   sync.Mutex
		errs []error
	)
	record := func(statement, key string, err error) {
		if err == nil {
			return
		}
		observability.RecordPersistFailure(e.proto.Dex().String(), statement)
		mu.Lock()
		errs = append(errs, fmt.Errorf("%s %s: %w", statement, key, err))
		mu.Unlock()
	}

	group := e.workers.NewGroup()
	for i := range rows {
		row := &rows[i]
		group.Submit(func() {
			record("upsert pnl", row.PositionID, e.stores.PnL.Upsert(ctx, row))
		})
	}
	for _, p := range positions {
		group.Submit(func() {
			record("update position", p.PositionID, e.stores.Positions.UpdateSync(ctx, p))
		})
	}
	for _, x := range extras {
		group.Submit(func() {
			record("update pool", x.PoolID, e.stores.Pools.UpdateExtra(ctx, x))
		})
	}
	if err := group.Wait(); err != nil {
		errs = append(errs, fmt.Errorf("wait persist tasks: %w", err))
	}

	if e.stores.History != nil && len(rows) > 0 {
		history := make([]*domain.PnL, len(rows))
		for i := range rows {
			history[i] = &rows[i]
		}
		if err := e.stores.History.InsertBulk(ctx, history); err != nil {
			e.logger.Warn("pnl history write failed", zap.Int("rows", len(rows)), zap.Error(err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("persist: %w", errors.Join(errs...))
	}
	return nil
}
