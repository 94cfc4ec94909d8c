package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"papertrader/cmd/keys"
	"papertrader/cmd/reconciler"
	"papertrader/src/database"
)

var Version string

func SetupLogger() {
	config := database.GetConfig()

	level, err := logrus.ParseLevel(strings.ToLower(config.LogLevel))
	if err != nil {
		level = logrus.DebugLevel
	}
	logrus.SetLevel(level)

	if strings.EqualFold(config.LogFormat, "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

func main() {
	_ = godotenv.Load()
	SetupLogger()

	app := cli.NewApp()
	app.Name = "papertrader"
	app.Usage = "Paper trading reconciliation command line interface"
	app.Version = Version

	app.Commands = []cli.Command{
		reconcilerCMD,
		reconcileOnceCMD,
		streamCMD,
		keysCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	reconcilerCMD = cli.Command{
		Name:        "reconciler",
		Usage:       "run the reconciliation scheduler",
		Action:      reconcilerAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Reconcile positions and refresh accounts of every automated user on a fixed interval`,
	}
	reconcileOnceCMD = cli.Command{
		Name:      "reconcile_once",
		Usage:     "run a single reconciliation tick",
		Action:    reconcileOnceAction,
		ArgsUsage: "",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "user", Usage: "user id to reconcile"},
		},
		Description: `Run one reconciliation tick for a user and print the positions`,
	}
	streamCMD = cli.Command{
		Name:        "stream",
		Usage:       "listen to trade updates",
		Action:      streamAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Apply trade_updates events of the shared account to the trade ledger`,
	}
	keysCMD = cli.Command{
		Name:  "keys",
		Usage: "manage broker credentials",
		Subcommands: []cli.Command{
			{
				Name:   "link",
				Usage:  "store encrypted broker credentials for a user",
				Action: keysLinkAction,
				Flags: []cli.Flag{
					cli.StringFlag{Name: "user", Usage: "user id"},
					cli.StringFlag{Name: "key", Usage: "broker API key id"},
					cli.StringFlag{Name: "secret", Usage: "broker API secret"},
					cli.StringFlag{Name: "base-url", Usage: "broker REST base url, shared default when empty"},
				},
			},
		},
	}
)

func reconcilerAction(_ *cli.Context) error {
	logrus.WithField("cmd", "reconciler").Info("Starting reconciler CMD")

	r := &reconciler.Reconciler{}
	if err := r.Start(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}
	return nil
}

func reconcileOnceAction(c *cli.Context) error {
	userID := c.String("user")
	if userID == "" {
		return errors.New("--user is required")
	}

	logrus.WithField("cmd", "reconcile_once").WithField("user_id", userID).Info("Starting reconcile_once CMD")
	r := &reconciler.Reconciler{}
	return r.Once(userID)
}

func streamAction(_ *cli.Context) error {
	logrus.WithField("cmd", "stream").Info("Starting stream CMD")

	r := &reconciler.Reconciler{}
	if err := r.Stream(); err != nil {
		logrus.WithError(err).Error("Stream stopped")
		return err
	}
	return nil
}

func keysLinkAction(c *cli.Context) error {
	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Error("Failed to connect to database")
		return err
	}
	return keys.Link(context.Background(), c.String("user"), c.String("key"), c.String("secret"), c.String("base-url"))
}
