package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"

	"tradingservice/src/auth"
	"tradingservice/src/broker"
	"tradingservice/src/database"
	"tradingservice/src/pipeline"
	"tradingservice/src/repository"
	"tradingservice/src/risk"
	"tradingservice/src/server"
	"tradingservice/src/server/ws"
	"tradingservice/src/webhook"
)

var APP_NAME = os.Getenv("APP_NAME")

func SetupLogger() {
	levelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))

	level, err := logger.ParseLevel(levelStr)
	if err != nil {
		level = logger.DebugLevel // fallback seguro
	}

	logger.SetLevel(level)
	logger.SetFormatter(&logger.TextFormatter{
		FullTimestamp: true,
	})
}

func main() {
	SetupLogger()
	defer handlePanic()

	// Initialize main (read/write) database
	if err := database.InitMainDB(); err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}

	// Initialize read-only database
	if err := database.InitReadOnlyDB(); err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}

	brokerConfig := broker.GetConfig()
	b, err := broker.New(brokerConfig)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize broker")
	}
	logger.WithField("variant", brokerConfig.Variant).Info("Broker initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifier := webhook.NewNotifier(webhook.GetConfig(), repository.NewWebhookLogRepository())
	notifier.Start(ctx)

	hub := ws.NewHub()
	go hub.Run(ctx)

	orderPipeline := pipeline.NewPipeline(
		repository.NewOrderRepository(),
		repository.NewFillRepository(),
		repository.NewPositionRepository(),
		repository.NewRiskMetricsRepository(),
		risk.NewEngine(risk.GetConfig()),
		b,
		brokerConfig.ExecuteTimeout,
		notifier,
		hub,
	)

	// Mark-to-market pricing is only available on brokers that quote.
	prices, _ := b.(broker.PriceSource)

	server.StartServer(server.GetConfig().Port, server.Dependencies{
		Pipeline:  orderPipeline,
		Positions: repository.NewPositionRepository().WithDB(database.ReadOnlyDB),
		Prices:    prices,
		Auth:      auth.GetConfig(),
		Hub:       hub,
	})
}

func handlePanic() {
	if r := recover(); r != nil {
		logger.WithError(fmt.Errorf("%+v", r)).Error(fmt.Sprintf("Application %s panic", APP_NAME))
	}
	//nolint
	time.Sleep(time.Second * 5)
}
