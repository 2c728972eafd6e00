package handler

import (
	"context"
	"net/http"
	"time"

	logger "github.com/sirupsen/logrus"

	"tradingservice/src/broker"
	"tradingservice/src/model"
)

type positionLister interface {
	ListOpen(ctx context.Context) ([]model.Position, error)
}

type positionResponse struct {
	Symbol    string    `json:"symbol"`
	Qty       float64   `json:"qty"`
	AvgPrice  float64   `json:"avg_price"`
	Notional  float64   `json:"notional"`
	Pnl       float64   `json:"pnl"`
	UpdatedAt time.Time `json:"updated_at"`
}

type positionsResponse struct {
	Positions []positionResponse `json:"positions"`
}

// ListPositionsHandler returns open positions with mark-to-market PnL
// computed against the broker's pricing capability. When no price source
// is available, positions are valued at their own average price (flat PnL).
func ListPositionsHandler(repo positionLister, prices broker.PriceSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		positions, err := repo.ListOpen(r.Context())
		if err != nil {
			logger.WithError(err).Error("Failed to list positions")
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		response := positionsResponse{Positions: make([]positionResponse, 0, len(positions))}
		for _, pos := range positions {
			markPrice := pos.AvgPrice
			if prices != nil {
				markPrice = prices.Price(pos.Symbol)
			}

			response.Positions = append(response.Positions, positionResponse{
				Symbol:    pos.Symbol,
				Qty:       pos.Qty,
				AvgPrice:  pos.AvgPrice,
				Notional:  pos.Notional,
				Pnl:       (markPrice - pos.AvgPrice) * pos.Qty,
				UpdatedAt: pos.UpdatedAt,
			})
		}

		writeJSON(w, http.StatusOK, response)
	}
}
