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

	"chefmate-backend/internal/config"
	"chefmate-backend/internal/database"
	"chefmate-backend/internal/handlers"
	"chefmate-backend/internal/llm"
	"chefmate-backend/internal/middleware"
	"chefmate-backend/internal/repository"
	"chefmate-backend/internal/router"
	"chefmate-backend/internal/services"
	"chefmate-backend/internal/websocket"
	"chefmate-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting ChefMate Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, "migrations"); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Step 5: Initialize LLM Router ────
	llmRouter, err := llm.NewRouter(context.Background(), llm.RouterConfig{
		OpenAIAPIKey:     cfg.OpenAIAPIKey,
		OpenAIBaseURL:    cfg.OpenAIBaseURL,
		GeminiAPIKey:     cfg.GeminiAPIKey,
		OpenRouterAPIKey: cfg.OpenRouterAPIKey,
		Referer:          cfg.FrontendURL,
	})
	if err != nil {
		log.Fatalf("✗ LLM router initialization failed: %v", err)
	}
	// Fail fast when MODEL_NAME points at a provider with no API key.
	if err := llmRouter.CheckModel(cfg.ModelName); err != nil {
		log.Fatalf("✗ Configured model is unusable: %v", err)
	}
	log.Printf("✓ LLM router ready (model: %s)", cfg.ModelName)

	// ──── Initialize Repositories ────
	conversationRepo := repository.NewConversationRepo(pool)
	evalRepo := repository.NewEvalRepo(pool)

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.SessionSecret)
	tokenBudget, err := services.NewTokenBudget(cfg.HistoryTokenBudget)
	if err != nil {
		log.Fatalf("✗ Token budget initialization failed: %v", err)
	}
	agent := services.NewAgentService(llmRouter, cfg.ModelName, tokenBudget)
	sessionService := services.NewSessionService(redisClients.Queue, jwtAuth)
	videoService := services.NewVideoService()
	recipeFileService := services.NewRecipeFileService()

	if err := os.MkdirAll(cfg.StoragePath, 0o755); err != nil {
		log.Fatalf("✗ Failed to create storage directory: %v", err)
	}

	// ──── Initialize Handlers ────
	sessionHandler := handlers.NewSessionHandler(sessionService)
	chatHandler := handlers.NewChatHandler(agent)
	conversationHandler := handlers.NewConversationHandler(conversationRepo, agent, recipeFileService, videoService, cfg.StoragePath)
	evalHandler := handlers.NewEvalHandler(evalRepo, redisClients.Queue)

	// ──── Step 6: Start Eval Worker Pool ────
	workerPool := worker.NewPool(redisClients.Queue, agent, evalRepo, cfg.EvalWorkers, cfg.EvalConcurrentReqs)
	workerPool.Start()
	log.Printf("✓ Eval worker pool started (%d goroutines)", cfg.EvalWorkers)

	retentionSweeper := services.NewRetentionSweeper(conversationRepo, evalRepo, cfg.StoragePath)
	retentionSweeper.Start()
	log.Println("✓ Retention sweeper started")

	// ──── Step 7: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, jwtAuth)
	log.Println("✓ WebSocket hub started")

	// ──── Step 8: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		sessionHandler,
		chatHandler,
		conversationHandler,
		evalHandler,
		wsHub,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		workerPool.Stop()
		retentionSweeper.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ ChefMate Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
