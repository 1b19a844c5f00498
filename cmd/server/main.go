package main

import (
	"fmt"
	"log"
	"os"

	"github.com/pricepilot/linkverify/config"
	httpDelivery "github.com/pricepilot/linkverify/internal/delivery/http"
	"github.com/pricepilot/linkverify/internal/infrastructure/fetcher"
	"github.com/pricepilot/linkverify/internal/infrastructure/oracle"
	"github.com/pricepilot/linkverify/internal/infrastructure/secrets"
	"github.com/pricepilot/linkverify/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting Link Verification API v1.0.0")
	log.Printf("Environment: %s", cfg.Server.Environment)
	log.Printf("Port: %s", cfg.Server.Port)

	// Credential cache: populated lazily on first access, held for the
	// process lifetime. A credential rotation requires a restart.
	secretProvider := secrets.NewCachingProvider(secrets.NewEnvProvider())

	pageFetcher := fetcher.New(fetcher.Config{
		Timeout:             cfg.Fetch.Timeout,
		MaxRetries:          cfg.Fetch.MaxRetries,
		ProxyHost:           cfg.Proxy.Host,
		ProxyPort:           cfg.Proxy.Port,
		ProxyUsername:       cfg.Proxy.Username,
		ProxyPasswordSecret: cfg.Proxy.PasswordSecret,
	}, secretProvider)

	if cfg.Proxy.Host != "" {
		log.Printf("Proxy: %s:%s (user: %s)", cfg.Proxy.Host, cfg.Proxy.Port, cfg.Proxy.Username)
	} else {
		log.Printf("WARNING: no proxy configured - requests go out directly")
	}

	oracleClient := oracle.NewClient(oracle.Config{
		APIKeySecret: cfg.Oracle.APIKeySecret,
		BaseURL:      cfg.Oracle.BaseURL,
		Model:        cfg.Oracle.Model,
		Timeout:      cfg.Oracle.Timeout,
	}, secretProvider)

	log.Printf("Oracle: %s (model: %s)", cfg.Oracle.BaseURL, cfg.Oracle.Model)

	// Enable debug mode in development environment
	if cfg.Server.Environment == "development" {
		pageFetcher.SetDebug(true)
		oracleClient.SetDebug(true)
		log.Printf("Fetcher and oracle debug mode enabled")
	}

	// Initialize usecase layer
	verificationService := usecase.NewVerificationService(pageFetcher, oracleClient)

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(verificationService, cfg.Batch.Concurrency)

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Printf("Server listening on %s", addr)

	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func init() {
	// Set log flags for better debugging
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.SetOutput(os.Stdout)
}
