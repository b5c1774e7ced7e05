package main

import (
	"fmt"
	"net/http"
	"os"

	"signal-trade-bot-go/internal/config"
	"signal-trade-bot-go/internal/database"
	"signal-trade-bot-go/internal/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.LoadConfig("./configs", os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Connect to the database
	db, err := database.NewDatabase(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	apiHandler := NewAPIHandler(log, database.NewRepository(db))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Info("Starting web server", zap.String("address", addr))

	if err := http.ListenAndServe(addr, apiHandler.Routes()); err != nil {
		log.Fatal("Web server failed", zap.Error(err))
	}
}
