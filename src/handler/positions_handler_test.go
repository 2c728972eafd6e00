package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradingservice/src/model"
)

type stubPositionLister struct {
	positions []model.Position
	err       error
}

func (s *stubPositionLister) ListOpen(_ context.Context) ([]model.Position, error) {
	return s.positions, s.err
}

type staticPrices map[string]float64

func (s staticPrices) Price(symbol string) float64 { return s[symbol] }

func TestListPositionsHandler(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	lister := &stubPositionLister{positions: []model.Position{
		{Symbol: "BTC/USDT", Qty: 0.1, AvgPrice: 57000, Notional: 5700, UpdatedAt: now},
		{Symbol: "ETH/USDT", Qty: -2, AvgPrice: 2500, Notional: 5000, UpdatedAt: now},
	}}
	prices := staticPrices{"BTC/USDT": 58000, "ETH/USDT": 2400}

	req := httptest.NewRequest(http.MethodGet, "/positions", nil)
	rr := httptest.NewRecorder()
	ListPositionsHandler(lister, prices).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var response positionsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	require.Len(t, response.Positions, 2)

	btc := response.Positions[0]
	assert.Equal(t, "BTC/USDT", btc.Symbol)
	assert.InDelta(t, (58000-57000)*0.1, btc.Pnl, 1e-9)

	// short position gains when the mark drops below entry
	eth := response.Positions[1]
	assert.InDelta(t, (2400-2500)*-2.0, eth.Pnl, 1e-9)
}

func TestListPositionsHandlerNoPriceSource(t *testing.T) {
	lister := &stubPositionLister{positions: []model.Position{
		{Symbol: "SOL/USDT", Qty: 10, AvgPrice: 140, Notional: 1400},
	}}

	req := httptest.NewRequest(http.MethodGet, "/positions", nil)
	rr := httptest.NewRecorder()
	ListPositionsHandler(lister, nil).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var response positionsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	require.Len(t, response.Positions, 1)
	assert.Zero(t, response.Positions[0].Pnl)
}

func TestListPositionsHandlerEmpty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/positions", nil)
	rr := httptest.NewRecorder()
	ListPositionsHandler(&stubPositionLister{}, nil).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"positions": []}`, rr.Body.String())
}

func TestListPositionsHandlerStoreError(t *testing.T) {
	lister := &stubPositionLister{err: errors.New("db down")}

	req := httptest.NewRequest(http.MethodGet, "/positions", nil)
	rr := httptest.NewRecorder()
	ListPositionsHandler(lister, nil).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
