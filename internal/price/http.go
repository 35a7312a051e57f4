package price

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"solana-lp-sync/internal/valuation"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultBatchSize = 50
	DefaultNetwork   = "solana"
)

// HTTPOracle queries a price service:
//
//	GET <base>/price?ids=<mint>,<mint>&network=solana
//	{"<mint>": {"usd": 1.23}}
type HTTPOracle struct {
	baseURL   string
	network   string
	batchSize int
	client    *http.Client
	logger    *zap.Logger
	observe   func(seconds float64)
}

// Option configures HTTPOracle.
type Option func(*HTTPOracle)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *HTTPOracle) { o.client = c }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *HTTPOracle) { o.client.Timeout = d }
}

// WithNetwork sets the network query parameter.
func WithNetwork(network string) Option {
	return func(o *HTTPOracle) { o.network = network }
}

// WithBatchSize bounds the number of ids per request.
func WithBatchSize(n int) Option {
	return func(o *HTTPOracle) { o.batchSize = n }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *HTTPOracle) { o.logger = logger }
}

// WithLatencyObserver registers a callback invoked after every request.
func WithLatencyObserver(fn func(seconds float64)) Option {
	return func(o *HTTPOracle) { o.observe = fn }
}

// NewHTTPOracle creates an oracle client for baseURL.
func NewHTTPOracle(baseURL string, opts ...Option) *HTTPOracle {
	o := &HTTPOracle{
		baseURL:   strings.TrimRight(baseURL, "/"),
		network:   DefaultNetwork,
		batchSize: DefaultBatchSize,
		client:    &http.Client{Timeout: DefaultTimeout},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.batchSize <= 0 {
		o.batchSize = DefaultBatchSize
	}
	return o
}

type quote struct {
	USD json.Number `json:"usd"`
}

// Prices fetches quotes in batches. Ids the service omits, or quotes it
// returns without a usd value, are left out of the result.
func (o *HTTPOracle) Prices(ctx context.Context, mints []string) (valuation.Prices, error) {
	mints = dedupe(mints)
	out := make(valuation.Prices, len(mints))
	for start := 0; start < len(mints); start += o.batchSize {
		end := min(start+o.batchSize, len(mints))
		if err := o.fetch(ctx, mints[start:end], out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (o *HTTPOracle) fetch(ctx context.Context, ids []string, out valuation.Prices) error {
	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("network", o.network)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/price?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("price: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := o.client.Do(req)
	if o.observe != nil {
		o.observe(time.Since(start).Seconds())
	}
	if err != nil {
		return fmt.Errorf("price: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("price: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var quotes map[string]quote
	if err := json.NewDecoder(resp.Body).Decode(&quotes); err != nil {
		return fmt.Errorf("price: decode response: %w", err)
	}

	for id, qt := range quotes {
		if qt.USD == "" {
			continue
		}
		usd, err := decimal.NewFromString(qt.USD.String())
		if err != nil {
			o.logger.Warn("ignoring malformed quote", zap.String("mint", id), zap.String("usd", qt.USD.String()))
			continue
		}
		out[id] = usd
	}
	return nil
}

var _ Oracle = (*HTTPOracle)(nil)
