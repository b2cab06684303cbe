package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/backtestengine/internal/backtest/domain"
)

func TestHTTPFeed_BarsDecodesResponse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bars/000001", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"time": "2022-03-01T09:31:00Z", "open": "9.80", "high": "9.90", "low": "9.75", "close": "9.85", "volume": "1000"},
		})
	}))
	defer server.Close()

	f := NewHTTPFeed(server.URL, 5*time.Second)
	bars, err := f.Bars(context.Background(), "000001", time.Now(), time.Now())
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, "000001", bars[0].Symbol)
	want, err := decimal.NewFromString("9.85")
	require.NoError(t, err)
	assert.True(t, bars[0].Close.Equal(want))
}

func TestHTTPFeed_CloseSuspendedReturnsErrSuspended(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"suspended": true})
	}))
	defer server.Close()

	f := NewHTTPFeed(server.URL, 5*time.Second)
	_, err := f.Close(context.Background(), "000001", time.Now())
	assert.ErrorIs(t, err, domain.ErrSuspended)
}

func TestHTTPFeed_UnknownSymbolReturns404AsDomainError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := NewHTTPFeed(server.URL, 5*time.Second)
	_, err := f.AdjustFactor(context.Background(), "999999", time.Now())
	assert.ErrorIs(t, err, domain.ErrUnknownSymbol)
}

func TestHTTPFeed_ServerErrorMapsToFeedDataMissing(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	f := NewHTTPFeed(server.URL, 5*time.Second)
	_, err := f.IsSuspended(context.Background(), "000001", time.Now())
	assert.ErrorIs(t, err, domain.ErrFeedDataMissing)
}
