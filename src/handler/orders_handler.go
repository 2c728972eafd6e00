package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"tradingservice/src/model"
	"tradingservice/src/pipeline"
)

// orderSubmitter is the slice of the order pipeline the handlers consume.
type orderSubmitter interface {
	Submit(ctx context.Context, req pipeline.SubmitRequest) (*pipeline.SubmitResult, error)
	GetOrder(ctx context.Context, orderID string) (*model.Order, error)
}

type createOrderRequest struct {
	Symbol         string   `json:"symbol"`
	Side           string   `json:"side"`
	Type           string   `json:"type"`
	Qty            float64  `json:"qty"`
	LimitPrice     *float64 `json:"limitPrice,omitempty"`
	ClientID       string   `json:"clientId"`
	IdempotencyKey string   `json:"idempotencyKey"`
}

type createOrderResponse struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// CreateOrderHandler returns the handler for order submission.
//
// Status codes separate "don't retry" from "maybe retry": 422 is a risk
// rejection with the reason in the body, 502 is a broker/infra fault where
// resubmission may succeed, 400 is a malformed request.
func CreateOrderHandler(p orderSubmitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		req := pipeline.SubmitRequest{
			Symbol:         payload.Symbol,
			Side:           payload.Side,
			Type:           payload.Type,
			Qty:            payload.Qty,
			LimitPrice:     payload.LimitPrice,
			ClientID:       payload.ClientID,
			IdempotencyKey: payload.IdempotencyKey,
		}
		if err := req.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		result, err := p.Submit(r.Context(), req)
		if err != nil {
			var riskErr *pipeline.RiskRejectedError
			if errors.As(err, &riskErr) {
				writeError(w, http.StatusUnprocessableEntity, riskErr.Error())
				return
			}

			var execErr *pipeline.BrokerExecutionError
			if errors.As(err, &execErr) {
				writeError(w, http.StatusBadGateway, execErr.Error())
				return
			}

			logger.WithError(err).Error("Order submission failed")
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		writeJSON(w, http.StatusCreated, createOrderResponse{
			OrderID: result.OrderID,
			Status:  result.Status,
		})
	}
}

// GetOrderHandler returns the handler for order lookup by id.
func GetOrderHandler(p orderSubmitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "orderID")

		order, err := p.GetOrder(r.Context(), orderID)
		if err != nil {
			if errors.Is(err, pipeline.ErrOrderNotFound) {
				writeError(w, http.StatusNotFound, "Order not found")
				return
			}

			logger.WithError(err).Error("Order lookup failed")
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		writeJSON(w, http.StatusOK, order)
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WithError(err).Error("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, statusCode int, detail string) {
	writeJSON(w, statusCode, errorResponse{Detail: detail})
}
