package main

import (
	"net/http"
	"os"

	"github.com/dapmarket/marketplace-ledger/internal/api"
	"github.com/dapmarket/marketplace-ledger/internal/config"
	"github.com/dapmarket/marketplace-ledger/internal/config/di"
	"github.com/dapmarket/marketplace-ledger/internal/daemon"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	config.Init()

	app := &cli.App{
		Name:   "ledgerd",
		Usage:  "custodial marketplace ledger daemon",
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "serve the ledger API and drain the event log",
				Action: serve,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		zap.L().With(zap.Error(err)).Fatal("Failed to start ledgerd")
	}
}

func serve(c *cli.Context) error {
	container, err := di.NewContainer()
	if err != nil {
		zap.L().With(zap.Error(err)).Fatal("Failed to build container")
	}

	go container.Get("daemon").(*daemon.Daemon).Execute()

	router := container.Get("api").(api.Server).Router()

	port := config.Get().ApiPort
	zap.L().With(zap.String("port", port)).Info("Ledger started")

	return http.ListenAndServe(":"+port, router)
}
