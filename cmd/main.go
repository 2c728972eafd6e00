package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"tradingservice/cmd/reconcile"
	"tradingservice/cmd/webhookreplay"
	"tradingservice/src/broker"
	"tradingservice/src/database"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "Trading Service CMD"
	app.Usage = "The trading service command line interface"

	app.Commands = []cli.Command{
		reconcileCMD,
		webhookReplayCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	reconcileCMD = cli.Command{
		Name:        "reconcile",
		Usage:       "cancel stuck orders and snapshot risk metrics",
		Action:      reconcileAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run reconcile CMD`,
	}
	webhookReplayCMD = cli.Command{
		Name:        "webhook_replay",
		Usage:       "re-deliver failed webhook notifications",
		Action:      webhookReplayAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run webhook replay CMD`,
	}
)

func reconcileAction(_ *cli.Context) error {

	logrus.Info("Starting reconcile CMD")
	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	b, err := broker.New(broker.GetConfig())
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize broker")
	}

	job := &reconcile.Reconcile{
		Log:    logrus.WithField("cmd", "reconcile"),
		DB:     database.MainDB,
		Broker: b,
	}

	if err := job.Start(); err != nil {
		logrus.WithError(err).Error("Starting reconcile cmd")
		return err
	}

	return nil
}

func webhookReplayAction(_ *cli.Context) error {

	logrus.Info("Starting webhook replay CMD")
	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	job := &webhookreplay.WebhookReplay{
		Log: logrus.WithField("cmd", "webhook_replay"),
		DB:  database.MainDB,
	}

	if err := job.Start(); err != nil {
		logrus.WithError(err).Error("Starting webhook replay cmd")
		return err
	}

	return nil
}
