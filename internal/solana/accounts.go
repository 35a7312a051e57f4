package solana

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// MaxAccountsPerRequest is the provider limit for getMultipleAccounts.
const MaxAccountsPerRequest = 100

// FetchAccounts fetches keys in chunks of at most chunkSize, issuing all
// chunks concurrently. The result has one entry per key in key order; nil
// entries are accounts that do not exist. Any chunk failure fails the fetch.
func FetchAccounts(ctx context.Context, getter AccountsGetter, keys []string, chunkSize int) ([]*AccountInfo, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	if chunkSize <= 0 || chunkSize > MaxAccountsPerRequest {
		chunkSize = MaxAccountsPerRequest
	}

	out := make([]*AccountInfo, len(keys))
	g, gctx := errgroup.WithContext(ctx)

	for start := 0; start < len(keys); start += chunkSize {
		end := min(start+chunkSize, len(keys))
		g.Go(func() error {
			infos, err := getter.GetMultipleAccounts(gctx, keys[start:end])
			if err != nil {
				return fmt.Errorf("fetch accounts [%d:%d]: %w", start, end, err)
			}
			if len(infos) != end-start {
				return fmt.Errorf("fetch accounts [%d:%d]: got %d entries", start, end, len(infos))
			}
			// Each goroutine owns a disjoint window of out.
			copy(out[start:end], infos)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchAccountMap fetches the distinct keys and returns the existing
// accounts keyed by address. Missing accounts are absent from the map.
func FetchAccountMap(ctx context.Context, getter AccountsGetter, keys []string, chunkSize int) (map[string]*AccountInfo, error) {
	distinct := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		distinct = append(distinct, k)
	}

	infos, err := FetchAccounts(ctx, getter, distinct, chunkSize)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*AccountInfo, len(distinct))
	for i, info := range infos {
		if info != nil {
			out[distinct[i]] = info
		}
	}
	return out, nil
}
