package reconcile

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"solana-lp-sync/internal/domain"
	"solana-lp-sync/internal/solana"
	"solana-lp-sync/internal/valuation"
)

// fakeProtocol serves accounts from maps. Account data is the address
// itself, so decoders look the address back up.
type fakeProtocol struct {
	mu        sync.Mutex
	positions map[string]valuation.Position
	pools     map[string]valuation.Pool
	ticks     map[string]valuation.Tick
	fetchErr  error
	fetches   [][]string
}

func newFakeProtocol() *fakeProtocol {
	return &fakeProtocol{
		positions: make(map[string]valuation.Position),
		pools:     make(map[string]valuation.Pool),
		ticks:     make(map[string]valuation.Tick),
	}
}

func (f *fakeProtocol) Dex() domain.Dex { return domain.DexOrca }

func (f *fakeProtocol) PositionAddress(positionID string) (string, error) {
	if strings.HasPrefix(positionID, "bad") {
		return "", fmt.Errorf("invalid position id %q", positionID)
	}
	return "pda-" + positionID, nil
}

func (f *fakeProtocol) FetchAccounts(_ context.Context, keys []string) (map[string]*solana.AccountInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.fetches = append(f.fetches, append([]string(nil), keys...))
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := make(map[string]*solana.AccountInfo)
	for _, k := range keys {
		_, isPos := f.positions[k]
		_, isPool := f.pools[k]
		_, isTick := f.ticks[k]
		if isPos || isPool || isTick {
			out[k] = &solana.AccountInfo{Data: []byte(k)}
		}
	}
	return out, nil
}

func (f *fakeProtocol) DecodePosition(address string, data []byte) (valuation.Position, error) {
	p, ok := f.positions[string(data)]
	if !ok {
		return valuation.Position{}, errors.New("not a position")
	}
	p.Address = address
	return p, nil
}

func (f *fakeProtocol) DecodePool(address string, data []byte, _ time.Time) (valuation.Pool, error) {
	p, ok := f.pools[string(data)]
	if !ok {
		return valuation.Pool{}, errors.New("not a pool")
	}
	p.Address = address
	return p, nil
}

func (f *fakeProtocol) TickArrayAddress(pool string, _ uint16, tick int32) (string, error) {
	return fmt.Sprintf("%s/ticks/%d", pool, tick), nil
}

func (f *fakeProtocol) DecodeTick(data []byte, tick int32, _ uint16) (valuation.Tick, error) {
	t, ok := f.ticks[string(data)]
	if !ok {
		return valuation.Tick{}, errors.New("not a tick array")
	}
	t.Index = tick
	return t, nil
}

func (f *fakeProtocol) Extra(pool valuation.Pool, price float64) domain.Extra {
	return domain.OrcaExtra{
		Price:            price,
		TickCurrentIndex: pool.TickCurrent,
		SqrtPrice:        pool.SqrtPriceX64.String(),
		Liquidity:        pool.Liquidity.String(),
	}
}

// addChainPosition registers a position, its pool and both boundary tick arrays.
func (f *fakeProtocol) addChainPosition(id string, pos valuation.Position, pool valuation.Pool) {
	f.positions["pda-"+id] = pos
	if pool.Address != "" {
		f.pools[pool.Address] = pool
		f.ticks[fmt.Sprintf("%s/ticks/%d", pool.Address, pos.TickLower)] = valuation.Tick{Initialized: true}
		f.ticks[fmt.Sprintf("%s/ticks/%d", pool.Address, pos.TickUpper)] = valuation.Tick{Initialized: true}
	}
}

func q64(v int64) *big.Int {
	return new(big.Int).Lsh(big.NewInt(v), 64)
}

var _ Protocol = (*fakeProtocol)(nil)
