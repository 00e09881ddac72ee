package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bananalabs-oss/potassium/config"
	"github.com/bananalabs-oss/sleigh/internal/database"
	"github.com/bananalabs-oss/sleigh/internal/router"
	"github.com/bananalabs-oss/sleigh/internal/scheduler"
	"github.com/bananalabs-oss/sleigh/internal/store"
)

func main() {
	log.Printf("Starting Sleigh")

	serviceToken := config.RequireEnv("SERVICE_TOKEN")
	databaseURL := config.EnvOrDefault("DATABASE_URL", "sqlite://sleigh.db")
	host := config.EnvOrDefault("HOST", "0.0.0.0")
	port := config.EnvOrDefault("PORT", "8004")

	log.Printf("Sleigh Configuration:")
	log.Printf("  Host:     %s", host)
	log.Printf("  Port:     %s", port)
	log.Printf("  Database: %s", databaseURL)

	ctx := context.Background()

	db, err := database.Connect(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	st := store.New(db)

	// Rebuild deadline timers from persisted state before accepting
	// requests, so parties that came due while the process was down
	// resolve right away.
	sched := scheduler.New(st)
	if err := sched.Recover(ctx); err != nil {
		log.Fatalf("Failed to recover party timers: %v", err)
	}
	defer sched.Stop()

	r := router.Setup(st, sched, serviceToken)

	addr := fmt.Sprintf("%s:%s", host, port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Printf("Sleigh listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutting down Sleigh...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Printf("Sleigh stopped")
}
