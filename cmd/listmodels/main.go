package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sheldon123z/invoice-ocr/internal/provider"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	apiKey := os.Getenv("OPENROUTER_API_KEY")
	if apiKey == "" {
		logger.Error("OPENROUTER_API_KEY env var is required")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	or := provider.NewOpenRouter(apiKey, "", 0, logger)
	models, err := or.FetchModels(ctx)
	if err != nil {
		logger.Error("fetch models", "error", err)
		os.Exit(1)
	}

	fmt.Printf("%d usable models:\n", len(models))
	for _, m := range models {
		fmt.Printf("  %-50s %s\n", m.ID, m.Name)
	}
}
