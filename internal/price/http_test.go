package price

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	solMint  = "So11111111111111111111111111111111111111112"
	usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	rayMint  = "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R"
)

// priceServer answers from table and records every ids parameter.
func priceServer(t *testing.T, table map[string]string, requests *[]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/price", r.URL.Path)
		assert.Equal(t, "solana", r.URL.Query().Get("network"))

		ids := r.URL.Query().Get("ids")
		*requests = append(*requests, ids)

		resp := map[string]interface{}{}
		for _, id := range strings.Split(ids, ",") {
			if usd, ok := table[id]; ok {
				resp[id] = map[string]json.RawMessage{"usd": json.RawMessage(usd)}
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestHTTPOracle_Prices(t *testing.T) {
	var requests []string
	server := priceServer(t, map[string]string{
		solMint:  "150.25",
		usdcMint: "1",
	}, &requests)
	defer server.Close()

	var observed atomic.Int32
	oracle := NewHTTPOracle(server.URL+"/", WithLatencyObserver(func(float64) { observed.Add(1) }))

	prices, err := oracle.Prices(context.Background(), []string{solMint, usdcMint, rayMint, solMint})
	require.NoError(t, err)

	require.Len(t, requests, 1)
	assert.Equal(t, solMint+","+usdcMint+","+rayMint, requests[0])
	assert.True(t, decimal.RequireFromString("150.25").Equal(prices[solMint]))
	assert.True(t, decimal.NewFromInt(1).Equal(prices[usdcMint]))

	res := prices.Lookup(rayMint)
	assert.False(t, res.Known, "absent key is unknown")
	assert.Equal(t, int32(1), observed.Load())
}

func TestHTTPOracle_Batches(t *testing.T) {
	var requests []string
	server := priceServer(t, map[string]string{solMint: "1", usdcMint: "2", rayMint: "3"}, &requests)
	defer server.Close()

	oracle := NewHTTPOracle(server.URL, WithBatchSize(2))
	prices, err := oracle.Prices(context.Background(), []string{solMint, usdcMint, rayMint})
	require.NoError(t, err)

	assert.Len(t, requests, 2)
	assert.Len(t, prices, 3)
}

func TestHTTPOracle_ZeroIsKnown(t *testing.T) {
	var requests []string
	server := priceServer(t, map[string]string{solMint: "0", usdcMint: "null"}, &requests)
	defer server.Close()

	prices, err := NewHTTPOracle(server.URL).Prices(context.Background(), []string{solMint, usdcMint})
	require.NoError(t, err)

	assert.True(t, prices.Lookup(solMint).Known)
	assert.False(t, prices.Lookup(usdcMint).Known)
}

func TestHTTPOracle_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := NewHTTPOracle(server.URL).Prices(context.Background(), []string{solMint})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer bad.Close()

	_, err = NewHTTPOracle(bad.URL).Prices(context.Background(), []string{solMint})
	assert.Error(t, err)
}

func TestHTTPOracle_Empty(t *testing.T) {
	prices, err := NewHTTPOracle("http://127.0.0.1:0").Prices(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, prices)
}

func TestStatic(t *testing.T) {
	s := Static{solMint: decimal.NewFromInt(100)}
	prices, err := s.Prices(context.Background(), []string{solMint, usdcMint})
	require.NoError(t, err)
	assert.Len(t, prices, 1)
	assert.True(t, prices.Lookup(solMint).Known)
}
