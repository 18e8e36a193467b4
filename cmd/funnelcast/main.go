package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/funnelcast/funnelcast/internal/database"
	"github.com/funnelcast/funnelcast/internal/email"
	"github.com/funnelcast/funnelcast/internal/geoip"
	"github.com/funnelcast/funnelcast/internal/notify"
	"github.com/funnelcast/funnelcast/internal/server"
	"github.com/funnelcast/funnelcast/internal/session"
	slackpkg "github.com/funnelcast/funnelcast/internal/slack"
	"github.com/funnelcast/funnelcast/internal/storage"
	webhookpkg "github.com/funnelcast/funnelcast/internal/webhook"
)

func main() {
	port := getEnv("PORT", "8080")

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	playbackSecret := os.Getenv("PLAYBACK_SECRET")
	if playbackSecret == "" {
		log.Fatal("PLAYBACK_SECRET is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.Connect(ctx, databaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(databaseURL); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}
	log.Println("database migrations applied")

	store, err := storage.New(ctx, storage.Config{
		Endpoint:       getEnv("S3_ENDPOINT", "http://localhost:3900"),
		PublicEndpoint: os.Getenv("S3_PUBLIC_ENDPOINT"),
		Bucket:         getEnv("S3_BUCKET", "funnelcast"),
		AccessKey:      os.Getenv("S3_ACCESS_KEY"),
		SecretKey:      os.Getenv("S3_SECRET_KEY"),
		Region:         getEnv("S3_REGION", "eu-central-1"),
		MaxUploadBytes: getEnvInt64("MAX_UPLOAD_BYTES", 2*1024*1024*1024),
	})
	if err != nil {
		log.Fatalf("storage initialization failed: %v", err)
	}

	if err := store.EnsureBucket(ctx); err != nil {
		log.Fatalf("storage bucket check failed: %v", err)
	}

	baseURL := getEnv("BASE_URL", "http://localhost:8080")

	if err := store.SetCORS(ctx, []string{baseURL}); err != nil {
		log.Printf("storage CORS setup failed: %v", err)
	}

	log.Println("storage bucket ready")

	emailClient := email.New(email.Config{
		BaseURL:    os.Getenv("LISTMONK_URL"),
		Username:   getEnv("LISTMONK_USER", "admin"),
		Password:   os.Getenv("LISTMONK_PASSWORD"),
		TemplateID: int(getEnvInt64("LISTMONK_TEMPLATE_ID", 0)),
	})
	slackClient := slackpkg.New(db.Pool)
	notifier := notify.NewMulti(emailClient, slackClient)

	webhookClient := webhookpkg.New(db.Pool)

	geo, err := geoip.New(os.Getenv("GEOIP_DB_PATH"))
	if err != nil {
		log.Fatalf("geoip initialization failed: %v", err)
	}

	registry := session.NewRegistry(time.Duration(getEnvInt64("PLAYBACK_IDLE_MINUTES", 30)) * time.Minute)
	registryCtx, registryCancel := context.WithCancel(context.Background())
	registryDone := make(chan struct{})
	go func() {
		defer close(registryDone)
		registry.Run(registryCtx)
	}()

	srv := server.New(server.Config{
		DB:               db.Pool,
		Pinger:           db,
		Storage:          store,
		Registry:         registry,
		Notifier:         notifier,
		WebhookClient:    webhookClient,
		Geo:              geo,
		HMACSecret:       playbackSecret,
		BaseURL:          baseURL,
		S3PublicEndpoint: os.Getenv("S3_PUBLIC_ENDPOINT"),
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("funnelcast listening on :%s", port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-shutdownCh
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown failed: %v", err)
	}

	// Draining the registry flushes any in-flight watch reports before exit.
	registryCancel()
	<-registryDone
	log.Println("shutdown complete")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
