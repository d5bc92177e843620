package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"musicjam/internal/cache"
	"musicjam/internal/config"
	"musicjam/internal/fanout"
	"musicjam/internal/notify"
	"musicjam/internal/repository"
	"musicjam/internal/service"
	"musicjam/internal/transport/rest"
	"musicjam/internal/transport/ws"
)

func main() {
	log.Println("started")
	ctx := context.Background()

	cfg := config.Load()

	// MongoDB connection
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer mongoClient.Disconnect(ctx)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		log.Fatal("Failed to ping MongoDB:", err)
	}
	log.Println("Connected to MongoDB")

	db := mongoClient.Database(cfg.MongoDB)

	// The partial unique index on (code, isActive) and the compound unique
	// index on (jamId, userId) are load-bearing; refuse to start without them.
	if err := repository.EnsureJamIndexes(ctx, db); err != nil {
		log.Fatal("Failed to create jam indexes:", err)
	}
	if err := repository.EnsureParticipantIndexes(ctx, db); err != nil {
		log.Fatal("Failed to create participant indexes:", err)
	}

	// Redis connection
	redisAddr := cfg.RedisAddr
	if len(redisAddr) > 8 && redisAddr[:8] == "redis://" {
		redisAddr = redisAddr[8:]
	}
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})
	defer rdb.Close()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatal("Failed to ping Redis:", err)
	}
	log.Println("Connected to Redis")

	// WebSocket hub
	wsHub := ws.NewHub()
	log.Println("WebSocket hub started")

	// Repositories and caches
	jamRepo := repository.NewJamRepo(db)
	participantRepo := repository.NewParticipantRepo(db)
	jamCache := cache.NewJamCache(rdb)
	notifier := notify.NewRedisNotifier(rdb)

	// Services
	authSvc := service.NewAuthService(cfg.JWTSecret)
	jamSvc := service.NewJamService(jamRepo, jamCache)
	jamSvc.SetEndedBroadcaster(wsHub)
	presenceSvc := service.NewPresenceService(jamSvc, participantRepo, notifier)
	trackSvc := service.NewTrackService(jamSvc, participantRepo, notifier)

	// Fan-out: one worker per jam with connected viewers
	fanoutMgr := fanout.NewManager(participantRepo, notifier, wsHub, cfg.BackstopInterval, cfg.PruneAfter)
	defer fanoutMgr.Shutdown()

	container := &rest.Container{
		AuthService:     authSvc,
		JamService:      jamSvc,
		PresenceService: presenceSvc,
		TrackService:    trackSvc,
		WSHub:           wsHub,
		FanoutManager:   fanoutMgr,
	}

	router := rest.NewRouter(container)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on :%s", cfg.HTTPPort)
		log.Println("Endpoints:")
		log.Println("  POST /v1/jams")
		log.Println("  POST /v1/jams/{code}/join")
		log.Println("  POST /v1/jams/{code}/leave")
		log.Println("  POST /v1/jams/{code}/update-track")
		log.Println("  GET  /v1/jams/{code}/participants")
		log.Println("  WS   /v1/ws/jams/{code}")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("ListenAndServe:", err)
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
