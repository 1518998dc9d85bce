package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/redis/go-redis/v9"
	"github.com/uma-arai/sbcntr-bungalow/internal/api"
	"github.com/uma-arai/sbcntr-bungalow/internal/app"
	"github.com/uma-arai/sbcntr-bungalow/internal/common/config"
	"github.com/uma-arai/sbcntr-bungalow/internal/common/rabbitmq"
	"github.com/uma-arai/sbcntr-bungalow/internal/common/ratelimit"
	"github.com/uma-arai/sbcntr-bungalow/internal/service/scheduler"
	"github.com/uma-arai/sbcntr-bungalow/internal/settings"
)

const (
	// sweepTimeout は定期掃除1回あたりの制限時間です
	sweepTimeout = 30 * time.Second
)

func main() {
	// APIサーバーはタスクトークンを使わない
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("Failed to load config: %v\nStack trace:\n%s", err, debug.Stack())
	}

	// X-Ray設定
	if cfg.EnableTracing {
		if err := xray.Configure(xray.Config{
			DaemonAddr:     "127.0.0.1:2000", // X-Rayデーモンのアドレス
			ServiceVersion: "1.0.0",
		}); err != nil {
			log.Printf("Failed to configure X-Ray: %v", err)
			if configErr := xray.Configure(xray.Config{}); configErr != nil {
				log.Fatalf("Failed to configure default X-Ray settings: %v", configErr)
			}
		}
	}
	// トレースが無効でもサブセグメントの作成でpanicしないようにする
	os.Setenv("AWS_XRAY_CONTEXT_MISSING", "LOG_ERROR")

	stores, err := app.NewStores(cfg)
	if err != nil {
		log.Fatalf("Failed to create stores: %v\nStack trace:\n%s", err, debug.Stack())
	}
	defer stores.Close()

	// 料金規定は設定ファイルの変更を監視して再読み込みする
	provider, err := settings.NewFileProvider(cfg.SettingsPath)
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}
	provider.Watch()

	publisher := rabbitmq.NewPublisher(cfg.RabbitMQ.URL)
	defer publisher.Close()
	events := rabbitmq.NewReservationEventPublisher(publisher, cfg.RabbitMQ.Exchange)

	service := app.NewReservationService(cfg, stores, provider, events)

	var limiter api.RateLimiter
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		limiter = ratelimit.NewRedisLimiter(redisClient, "bungalow:rate_limit", cfg.Confirmation.RateLimitPerMinute, time.Minute)
	} else {
		log.Printf("REDIS_ADDR is not set. Confirmation links are not rate limited")
	}

	sweeper := scheduler.NewScheduler(service, cfg.SweepSchedule, sweepTimeout)
	if err := sweeper.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	handler := api.NewHandler(service, stores.Units, stores.Notifications)
	router := api.NewRouter(handler, api.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		JWTSecret:      cfg.Auth.JWTSecret,
		InternalAPIKey: cfg.Auth.InternalAPIKey,
		Limiter:        limiter,
		EnableTracing:  cfg.EnableTracing,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// シグナルハンドリングの設定
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
	case err := <-errChan:
		log.Printf("Server failed: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server: %v", err)
	}

	// 実行中の掃除処理の終了を待つ
	select {
	case <-sweeper.Stop().Done():
	case <-shutdownCtx.Done():
		log.Printf("Sweep job did not finish before shutdown timeout")
	}

	log.Println("Server stopped")
}
