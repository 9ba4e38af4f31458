package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/progres-gateway/internal/logging"
	"github.com/dmitrijs2005/progres-gateway/internal/server"
	"github.com/dmitrijs2005/progres-gateway/internal/server/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.NewForEnv(os.Stdout, cfg.Production)

	app, err := server.NewApp(cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(context.Background()); err != nil {
		logger.Error(context.Background(), "server stopped with error", "error", err)
		os.Exit(1)
	}
}
