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

	flag "github.com/spf13/pflag"

	"neuroflash-backend/internal/config"
	"neuroflash-backend/internal/database"
	"neuroflash-backend/internal/handlers"
	"neuroflash-backend/internal/middleware"
	"neuroflash-backend/internal/repository"
	"neuroflash-backend/internal/router"
	"neuroflash-backend/internal/services"
	"neuroflash-backend/internal/websocket"
)

func main() {
	envFile := flag.String("env-file", "", "path to a .env file (defaults to ./.env when present)")
	migrationsDir := flag.String("migrations", "migrations", "directory holding NNN_name.sql migrations")
	skipMigrations := flag.Bool("skip-migrations", false, "do not apply pending migrations on startup")
	flag.Parse()

	log.Println("🚀 Starting NeuroFlash Backend...")

	// ──── Step 1: Load Environment Variables ────
	var cfg *config.Config
	if *envFile != "" {
		cfg = config.Load(*envFile)
	} else {
		cfg = config.Load()
	}
	log.Printf("✓ Environment variables loaded (env=%s, study timezone=%s)", cfg.Env, cfg.StudyLocation)

	ctx := context.Background()

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if !*skipMigrations {
		if err := database.RunMigrations(ctx, pool, *migrationsDir); err != nil {
			log.Fatalf("✗ Database migration failed: %v", err)
		}
		log.Println("✓ Database migrations applied")
	}

	// ──── Initialize Repositories ────
	userRepo := repository.NewUserRepo(pool)
	deckRepo := repository.NewDeckRepo(pool)
	flashcardRepo := repository.NewFlashcardRepo(pool)

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	publisher := services.NewRedisPublisher(redisClients.Cache)
	userService := services.NewUserService(userRepo, redisClients.Cache, cfg.SettingsCacheTTL, cfg.StudyLocation)
	deckService := services.NewDeckService(deckRepo, flashcardRepo, cfg.StudyLocation)
	studyService := services.NewStudyService(flashcardRepo, deckRepo, userService, publisher, cfg.StudyLocation)

	// ──── Initialize Handlers ────
	studyHandler := handlers.NewStudyHandler(studyService)
	deckHandler := handlers.NewDeckHandler(deckService)
	userHandler := handlers.NewUserHandler(userService)

	// ──── Step 5: Start WebSocket Hub ────
	wsHub := websocket.NewHub(websocket.RedisStream(redisClients.PubSub), jwtAuth, cfg.FrontendURL)
	log.Println("✓ WebSocket hub started")

	// ──── Step 6: Start HTTP Server ────
	reviewLimiter := middleware.NewRateLimiter(cfg.ReviewRateLimitPerMin, time.Minute)
	r := router.New(jwtAuth, studyHandler, deckHandler, userHandler, reviewLimiter, wsHub, cfg.FrontendURL)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		reviewLimiter.Stop()
		wsHub.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	log.Printf("✓ NeuroFlash Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
	<-done
}
