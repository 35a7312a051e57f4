package reconcile

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"solana-lp-sync/internal/domain"
	"solana-lp-sync/internal/observability"
	"solana-lp-sync/internal/solana"
	"solana-lp-sync/internal/storage"
)

// SPL mint layout.
const (
	mintSize           = 82
	mintDecimalsOffset = 44
	// Token-2022 pads the base mint to the token account size, then stores
	// the account type and TLV extensions.
	extAccountTypeOffset = 165
	extStartOffset       = 166
	accountTypeMint      = 1

	extTransferFeeConfig = 1
	// TransferFeeConfig: two authorities, withheld amount, older fee, newer fee.
	// Each fee is epoch u64, maximum_fee u64, basis_points u16.
	transferFeeConfigSize = 108
	newerFeeOffset        = 32 + 32 + 8 + 18
)

// ErrInvalidMint is returned when account data is not a token mint.
var ErrInvalidMint = errors.New("invalid mint account")

// ParseMint decodes decimals and the Token-2022 transfer fee from mint data.
func ParseMint(id string, data []byte) (*domain.Mint, error) {
	if len(data) < mintSize {
		return nil, fmt.Errorf("%w: %s has %d bytes", ErrInvalidMint, id, len(data))
	}
	m := &domain.Mint{ID: id, Decimals: data[mintDecimalsOffset]}

	if len(data) <= extAccountTypeOffset || data[extAccountTypeOffset] != accountTypeMint {
		return m, nil
	}

	for off := extStartOffset; off+4 <= len(data); {
		typ := binary.LittleEndian.Uint16(data[off:])
		size := int(binary.LittleEndian.Uint16(data[off+2:]))
		off += 4
		if off+size > len(data) {
			return nil, fmt.Errorf("%w: %s extension %d overruns data", ErrInvalidMint, id, typ)
		}
		if typ == extTransferFeeConfig && size >= transferFeeConfigSize {
			fee := data[off+newerFeeOffset:]
			maxFee := binary.LittleEndian.Uint64(fee[8:])
			bps := binary.LittleEndian.Uint16(fee[16:])
			m.TransferFeeMax = &maxFee
			m.TransferFeeBasisPoints = &bps
		}
		if typ == 0 {
			break
		}
		off += size
	}
	return m, nil
}

// MintResolver returns mint decimals from a process-wide cache, the mint
// store, or the chain, in that order. Mints found on chain are stored.
type MintResolver struct {
	rpc       solana.AccountsGetter
	store     storage.MintStore
	cache     *xsync.Map[string, *domain.Mint]
	chunkSize int
	logger    *zap.Logger
}

// NewMintResolver creates a resolver.
func NewMintResolver(rpc solana.AccountsGetter, store storage.MintStore, logger *zap.Logger) *MintResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MintResolver{
		rpc:       rpc,
		store:     store,
		cache:     xsync.NewMap[string, *domain.Mint](),
		chunkSize: solana.MaxAccountsPerRequest,
		logger:    logger.Named("mints"),
	}
}

// Resolve returns the mints found among ids. Ids that are not mints on chain
// are absent from the result.
func (r *MintResolver) Resolve(ctx context.Context, ids []string) (map[string]*domain.Mint, error) {
	out := make(map[string]*domain.Mint, len(ids))
	seen := make(map[string]struct{}, len(ids))
	var missing []string
	for _, id := range ids {
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		if m, ok := r.cache.Load(id); ok {
			observability.RecordMintCache(true)
			out[id] = m
			continue
		}
		observability.RecordMintCache(false)
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}

	stored, err := r.store.GetMany(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("load mints: %w", err)
	}
	var onChain []string
	for _, id := range missing {
		if m, ok := stored[id]; ok {
			r.cache.Store(id, m)
			out[id] = m
			continue
		}
		onChain = append(onChain, id)
	}
	if len(onChain) == 0 {
		return out, nil
	}

	accounts, err := solana.FetchAccountMap(ctx, r.rpc, onChain, r.chunkSize)
	if err != nil {
		return nil, fmt.Errorf("fetch mints: %w", err)
	}
	for _, id := range onChain {
		acct, ok := accounts[id]
		if !ok {
			r.logger.Debug("mint account not found", zap.String("mint", id))
			continue
		}
		m, err := ParseMint(id, acct.Data)
		if err != nil {
			r.logger.Warn("skipping undecodable mint", zap.String("mint", id), zap.Error(err))
			continue
		}
		if err := r.store.Upsert(ctx, m); err != nil {
			return nil, fmt.Errorf("store mint %s: %w", id, err)
		}
		r.cache.Store(id, m)
		out[id] = m
	}
	return out, nil
}
