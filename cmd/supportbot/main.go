package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tashakor/supportbot/internal/archive"
	"github.com/tashakor/supportbot/internal/assistant"
	"github.com/tashakor/supportbot/internal/config"
	"github.com/tashakor/supportbot/internal/conversation"
	"github.com/tashakor/supportbot/internal/customer"
	"github.com/tashakor/supportbot/internal/httpapi"
	"github.com/tashakor/supportbot/internal/observability"
	"github.com/tashakor/supportbot/internal/openai"
	"github.com/tashakor/supportbot/internal/records"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	archiveStore, err := archive.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("archive store init failed: %v", err)
	}
	defer archiveStore.Close()

	conversations := conversation.NewStore()
	allocator := customer.NewAllocator(cfg.CustomerNumbersFile)
	recordStore := records.NewWriter(cfg.CustomerWorkbookFile, cfg.GoogleSheetID, cfg.GoogleCredentialsFile)

	// A missing or malformed API key leaves the assistant unconfigured:
	// chat routes answer 503 while record and health routes keep working.
	var gateway httpapi.Gateway
	if err := openai.ValidateKey(cfg.OpenAIAPIKey); err != nil {
		log.Printf("assistant disabled: %v", err)
	} else {
		client, err := openai.NewClient(openai.Config{
			APIKey:           cfg.OpenAIAPIKey,
			BaseURL:          cfg.OpenAIBaseURL,
			Model:            cfg.ChatModel,
			Temperature:      cfg.ChatTemperature,
			MaxOutputTokens:  cfg.ChatMaxTokens,
			PresencePenalty:  0.1,
			FrequencyPenalty: 0.1,
			Timeout:          cfg.OpenAITimeout,
		})
		if err != nil {
			log.Fatalf("openai client init failed: %v", err)
		}
		gateway = assistant.New(client, conversations, archiveStore, assistant.Options{
			MaxHistory:     cfg.ChatMaxHistory,
			RequestTimeout: cfg.OpenAITimeout,
		})
		log.Printf("assistant ready: model=%s history=%d", cfg.ChatModel, cfg.ChatMaxHistory)
	}

	api := httpapi.New(cfg, gateway, conversations, allocator, recordStore, archiveStore, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
