// migrate applies or rolls back the embedded schema migrations.
//
// Usage: go run ./cmd/migrate [up|down]
package main

import (
	"log"
	"os"

	"go.uber.org/zap"

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

	direction := "up"
	if len(os.Args) > 1 {
		direction = os.Args[1]
	}

	switch direction {
	case "up":
		version, err := db.Migrate(cfg.Database.URL)
		if err != nil {
			logger.Fatal("migrate up", zap.Error(err))
		}
		logger.Info("migrations applied", zap.Uint("version", version))
	case "down":
		if err := db.MigrateDown(cfg.Database.URL); err != nil {
			logger.Fatal("migrate down", zap.Error(err))
		}
		logger.Info("migrations rolled back")
	default:
		log.Fatalf("unknown direction %q, want up or down", direction)
	}
}
