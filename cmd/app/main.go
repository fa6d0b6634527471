// app is the counter-side CLI. With arguments it runs one command and exits;
// without, it starts an interactive session.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"parts-engine/internal/adapters/cli"
	"parts-engine/internal/app"
	"parts-engine/internal/config"
	"parts-engine/internal/db"
	"parts-engine/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	svc := app.NewAppService(pool, app.OptionsFromConfig(cfg), logger, nil)

	if len(os.Args) < 2 {
		cli.RunInteractive(ctx, svc, os.Stdin, os.Stdout)
		return
	}

	if err := cli.Run(ctx, svc, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, cli.ErrUsage) {
			cli.PrintHelp(os.Stderr)
		}
		logger.Error("command failed", zap.String("command", os.Args[1]), zap.Error(err))
		pool.Close()
		os.Exit(1)
	}
}
