package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/djorigin/rpasops/internal/app"
	"github.com/djorigin/rpasops/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	migrateOnly := flag.Bool("migrate", false, "run database migrations and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.AppConfig{ConfigPath: *configPath}

	if *migrateOnly {
		if err := app.Migrate(ctx, cfg); err != nil {
			log.WithError(err).Error("migration failed")
			os.Exit(1)
		}
		log.Info("migration complete")
		return
	}

	if err := app.RunServer(ctx, cfg); err != nil {
		log.WithError(err).Error("server exited with error")
		os.Exit(1)
	}
}
