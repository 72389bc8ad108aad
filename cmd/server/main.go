package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/veilhq/veil/internal/chat"
	"github.com/veilhq/veil/internal/config"
	"github.com/veilhq/veil/internal/db"
	"github.com/veilhq/veil/internal/emoji"
	"github.com/veilhq/veil/internal/httpapi"
	"github.com/veilhq/veil/internal/integrity"
	"github.com/veilhq/veil/internal/interaction"
	"github.com/veilhq/veil/internal/models"
	"github.com/veilhq/veil/internal/pipeline"
	"github.com/veilhq/veil/internal/store"
	"github.com/veilhq/veil/internal/ws"
)

func main() {
	// Env vars may come from a .env file or the real environment.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	database, err := db.Init(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	log.Println("Running database migrations...")
	if err := database.AutoMigrate(&models.Confession{}); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Migrations complete.")

	hub := ws.NewHub()
	go hub.Run()

	chatClient := chat.NewSlack(cfg.BotToken)
	pipe := pipeline.New(
		store.New(database),
		chatClient,
		pipeline.Channels{
			Staging:         cfg.StagingChannel,
			Confessions:     cfg.ConfessionsChannel,
			Meta:            cfg.MetaChannel,
			ConfessionsMeta: cfg.ConfessionsMetaChan,
			Log:             cfg.LogChannel,
		},
		pipeline.WithNotifier(hub),
	)

	verifier := integrity.NewVerifier(cfg.SigningSecret)
	nonces := integrity.NewNonceStore()

	env := &httpapi.Env{
		Pipe:      pipe,
		Router:    interaction.NewRouter(pipe, chatClient, emoji.NewSource(chatClient)),
		Chat:      chatClient,
		Forwarder: integrity.NewForwarder(nonces, cfg.ForwardBaseURL),
		Hub:       hub,
		Limiter:   httpapi.NewSubmitLimiter(),
	}

	router := gin.New()
	httpapi.SetupRoutes(router, env, cfg, verifier, nonces)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
