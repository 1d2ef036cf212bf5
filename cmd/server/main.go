package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"stravist/server/internal/auth"
	"stravist/server/internal/db"
	"stravist/server/internal/mcp"
	"stravist/server/internal/middleware"
	"stravist/server/internal/modules"
	"stravist/server/internal/modules/strava"
	"stravist/server/internal/observability"
	"stravist/server/pkg/stravaapi"
)

func main() {
	// Initialize observability (Loki)
	observability.Init()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8089"
	}

	// Instance identification for LB
	instanceID := os.Getenv("INSTANCE_ID")
	if instanceID == "" {
		instanceID = "local"
	}
	instanceRegion := os.Getenv("INSTANCE_REGION")
	if instanceRegion == "" {
		instanceRegion = "local"
	}
	log.Printf("Instance: %s (region: %s)", instanceID, instanceRegion)

	// Initialize Ed25519 signing keys for JWT API keys (optional)
	if err := auth.Init(); err != nil {
		log.Fatalf("Failed to initialize auth keys: %v", err)
	}

	client := buildStravaClient()
	modules.RegisterModule(strava.New(client))
	log.Printf("Registered modules: %v", modules.ListModules())

	authorizer := middleware.NewAuthorizer()
	rateLimiter := middleware.NewRateLimiter(10)
	mcpHandler := mcp.NewHandler()

	// Create router (Go 1.22+ method-aware patterns)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Instance-ID", instanceID)
		w.Header().Set("X-Instance-Region", instanceRegion)
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok","instance":"%s","region":"%s"}`, instanceID, instanceRegion)
	})

	// MCP endpoint with authorization + rate limit + transport middleware
	mux.Handle("/v1/mcp", middleware.Recovery(authorizer.Authorize(rateLimiter.Middleware(middleware.Transport(mcpHandler)))))

	// JWKS endpoint (public, for API key verification)
	mux.HandleFunc("GET /.well-known/jwks.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(auth.JWKS())
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: mux,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting MCP server on port %s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Printf("Received signal %s, shutting down gracefully...", sig)

	// Give in-flight requests up to 30 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Printf("Server stopped")
}

// buildStravaClient assembles the Strava API client from environment
// credentials, with optional encrypted persistence. Returns nil when no
// credentials are configured; tools then answer with a not-initialized error
// instead of hitting the network.
func buildStravaClient() *stravaapi.Client {
	creds := stravaapi.Credentials{
		ClientID:     os.Getenv("STRAVA_CLIENT_ID"),
		ClientSecret: os.Getenv("STRAVA_CLIENT_SECRET"),
		AccessToken:  os.Getenv("STRAVA_ACCESS_TOKEN"),
		RefreshToken: os.Getenv("STRAVA_REFRESH_TOKEN"),
	}
	if raw := os.Getenv("STRAVA_EXPIRES_AT"); raw != "" {
		expiresAt, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			log.Fatalf("Invalid STRAVA_EXPIRES_AT: %v", err)
		}
		creds.ExpiresAt = expiresAt
	}

	if creds.ClientID == "" || creds.ClientSecret == "" || creds.RefreshToken == "" {
		log.Printf("Strava credentials not configured, tools will report not initialized")
		return nil
	}

	store := stravaapi.TokenStore(lokiTokenStore{})

	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		database, err := db.Open(databaseURL)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		log.Printf("Database connected")

		// Panics if CREDENTIAL_ENCRYPTION_KEY is not set
		db.InitEncryptionKey()

		credStore := db.NewCredentialStore(database)

		// A persisted snapshot carries a fresher refresh token than the env
		if saved, err := credStore.Load(context.Background()); err == nil {
			creds.AccessToken = saved.AccessToken
			creds.RefreshToken = saved.RefreshToken
			creds.ExpiresAt = saved.ExpiresAt
			log.Printf("Loaded persisted Strava credentials (expires_at: %d)", saved.ExpiresAt)
		}

		store = lokiTokenStore{next: credStore}
	}

	tokens := stravaapi.NewTokenSource(creds, stravaapi.WithTokenStore(store))
	return stravaapi.NewClient(tokens)
}

// lokiTokenStore reports token refreshes to Loki and forwards the snapshot
// to the persistent store when one is configured.
type lokiTokenStore struct {
	next stravaapi.TokenStore
}

func (s lokiTokenStore) Save(ctx context.Context, creds stravaapi.Credentials) error {
	observability.LogTokenRefresh("success", creds.ExpiresAt, "")
	if s.next == nil {
		return nil
	}
	if err := s.next.Save(ctx, creds); err != nil {
		observability.LogError("credential_persist", err)
		return err
	}
	return nil
}
