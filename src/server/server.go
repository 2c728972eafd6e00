package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"tradingservice/src/auth"
	"tradingservice/src/broker"
	"tradingservice/src/handler"
	"tradingservice/src/model"
	"tradingservice/src/pipeline"
	"tradingservice/src/server/ws"
)

type positionLister interface {
	ListOpen(ctx context.Context) ([]model.Position, error)
}

// Dependencies carries everything the HTTP layer needs wired in.
type Dependencies struct {
	Pipeline  *pipeline.Pipeline
	Positions positionLister
	Prices    broker.PriceSource
	Auth      auth.Config
	Hub       *ws.Hub
}

// NewRouter builds the service router. The healthcheck stays public; every
// other route sits behind bearer token auth.
func NewRouter(deps Dependencies) *chi.Mux {
	r := chi.NewRouter()

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error(" \"/health error")
		}
	})

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(deps.Auth))

		r.Post("/orders", handler.CreateOrderHandler(deps.Pipeline))
		r.Get("/orders/{orderID}", handler.GetOrderHandler(deps.Pipeline))
		r.Get("/positions", handler.ListPositionsHandler(deps.Positions, deps.Prices))

		if deps.Hub != nil {
			r.Get("/ws", deps.Hub.HandleWS)
		}
	})

	return r
}

func StartServer(port string, deps Dependencies) {
	r := NewRouter(deps)

	// Graceful server
	// Server setup
	addr := ":" + port
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server crashed")
		}
	}()

	// Shutdown on SIGINT or SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}
}
