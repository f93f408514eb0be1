package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"collegemgmt/internal/academics"
	"collegemgmt/internal/auth"
	"collegemgmt/internal/bulletin"
	"collegemgmt/internal/files"
	"collegemgmt/internal/gateway"
	"collegemgmt/internal/marks"
	"collegemgmt/internal/people"
	"collegemgmt/internal/shared"
)

func main() {
	log.Println("INFO: Starting College Management API...")

	// 1. Configuration
	if err := shared.LoadEnv(".env"); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	cfg, err := shared.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	if cfg.IsDevelopment() {
		shared.PrintConfig(cfg)
	}

	// 2. Storage
	client, db, err := shared.ConnectMongoDB(&cfg.MongoDB)
	if err != nil {
		log.Fatalf("FATAL: Failed to connect to MongoDB: %v", err)
	}
	defer shared.DisconnectMongoDB(client)

	if err := shared.EnsureIndexes(context.Background(), db); err != nil {
		log.Fatalf("FATAL: Failed to create indexes: %v", err)
	}

	fileStore, err := files.NewDiskStore(cfg.Media.Dir, int(cfg.Media.MaxUploadMB))
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize media store: %v", err)
	}

	// 3. Services and Routes
	services := &gateway.Services{
		Auth:      auth.NewService(db, cfg),
		Marks:     marks.NewService(marks.NewMongoStore(client, db)),
		Academics: academics.NewService(db),
		People:    people.NewService(db, cfg),
		Bulletin:  bulletin.NewService(db, fileStore),
		Files:     fileStore,
		Config:    cfg,
	}
	router := gateway.SetupRoutes(services)

	// 4. Configure Server
	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 5. Start Server in a Goroutine
	go func() {
		log.Printf("INFO: API listening on port %s", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("FATAL: HTTP server error: %v", err)
		}
	}()

	// 6. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("INFO: Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("WARN: Forced shutdown: %v", err)
	}

	log.Println("INFO: Server stopped.")
}
