package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"driftchat/backend/internal/api/handler"
	"driftchat/backend/internal/bus"
	"driftchat/backend/internal/chathub"
	"driftchat/backend/internal/config"
	"driftchat/backend/internal/identity"
	"driftchat/backend/internal/matchmaker"
	"driftchat/backend/internal/models"
	"driftchat/backend/internal/storage"
	"driftchat/backend/internal/translate"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupDependencies(cfg config.Config) (*gorm.DB, *redis.Client) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	err = db.AutoMigrate(
		&models.QueueEntry{},
		&models.ChatSession{},
		&models.Message{},
	)
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Database and Redis connections established, migrations complete.")
	return db, rdb
}

func main() {
	log.Println("Starting DriftChat backend...")

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: no .env file loaded")
	}
	cfg := config.Load()

	db, rdb := setupDependencies(cfg)

	store := storage.NewService(db, rdb)
	notifyBus := bus.NewRedisBus(rdb)
	matcher := matchmaker.NewService(store, notifyBus)
	hub := chathub.NewHub(matcher, store, notifyBus)
	issuer := identity.NewIssuer(cfg.JWTSecret, cfg.IdentityTTL)
	translator := translate.NewService(cfg.TranslateGatewayURL, cfg.TranslateAPIKey)

	r := gin.Default()
	h := handler.NewHandler(hub, issuer, translator)

	r.GET("/anonid", h.GetAnonID)
	r.GET("/ws", h.ServeWebSocket)
	r.POST("/translate", h.TranslateMessage)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": hub.ConnCount()})
	})

	server := &http.Server{
		Addr:           cfg.ListenAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	log.Printf("Listening on %s", cfg.ListenAddr)
	log.Fatal(server.ListenAndServe())
}
