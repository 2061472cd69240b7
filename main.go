package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/yeremiapane/roomturn/config"
	"github.com/yeremiapane/roomturn/database"
	"github.com/yeremiapane/roomturn/feed"
	"github.com/yeremiapane/roomturn/messaging"
	"github.com/yeremiapane/roomturn/router"
	"github.com/yeremiapane/roomturn/services"
	"github.com/yeremiapane/roomturn/utils"
)

func main() {
	cfg := config.Load()
	utils.InitLogger(cfg.LogLevel, cfg.LogFormat)

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.ChannelSecret == "" {
		utils.ErrorLogger.Warn("LINE_CHANNEL_SECRET is not set, every webhook signature will be reported invalid")
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		utils.ErrorLogger.Fatalf("Failed to AutoMigrate: %v", err)
	}

	if cfg.SeedFile != "" {
		n, err := database.ExecuteSQLFile(db, cfg.SeedFile)
		if err != nil {
			utils.ErrorLogger.Errorf("Error executing seed file: %v", err)
		} else {
			utils.InfoLogger.Infof("Seed file applied (%d statements)", n)
		}
	}

	client := messaging.NewClient(messaging.Config{
		BaseURL:     cfg.LineBaseURL,
		AccessToken: cfg.ChannelAccessToken,
		Timeout:     cfg.LineTimeout,
		RetryCount:  2,
	})

	rdb := connectRedis(cfg)
	if rdb != nil {
		defer rdb.Close()
	}

	store := database.NewStore(db)
	hub := feed.NewHub()
	profiles := services.NewProfileCache(rdb, client, cfg.ProfileCacheTTL)
	bot := services.NewBot(store, client, profiles, hub, cfg.RichMenus)

	sweeper := services.NewCodeSweeper(store, cfg.CodeSweepSchedule)
	if err := sweeper.Start(); err != nil {
		utils.ErrorLogger.Fatalf("Failed to start code sweeper: %v", err)
	}
	defer sweeper.Stop()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.SetupRouter(cfg, bot),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		utils.InfoLogger.Infof("Listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.ErrorLogger.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	utils.InfoLogger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		utils.ErrorLogger.Errorf("Forced shutdown: %v", err)
	}
}

// connectRedis returns nil when no address is configured or the server is unreachable;
// profile lookups then go straight to the platform.
func connectRedis(cfg config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		utils.ErrorLogger.WithError(err).Warn("redis unavailable, profile cache disabled")
		rdb.Close()
		return nil
	}
	return rdb
}
