// Command migrate applies the embedded goose migrations.
//
//	migrate [up|down|status|redo|version|reset|up-to VERSION|down-to VERSION]
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/classroom-api/migrations"
	"github.com/noah-isme/classroom-api/pkg/config"
	"github.com/noah-isme/classroom-api/pkg/database"
	"github.com/noah-isme/classroom-api/pkg/logger"
)

func main() {
	timeout := flag.Duration("timeout", 2*time.Minute, "overall timeout")
	flag.Parse()

	command := "up"
	args := flag.Args()
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Error("connect postgres", zap.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db, migrations.FS, command, args...); err != nil {
		logr.Error("migration failed", zap.String("command", command), zap.Error(err))
		os.Exit(1)
	}
	logr.Info("migration finished", zap.String("command", command))
}
