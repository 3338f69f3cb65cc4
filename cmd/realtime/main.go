package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	fiberws "github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/carebridge/realtime-service/internal/api"
	"github.com/carebridge/realtime-service/internal/auth"
	"github.com/carebridge/realtime-service/internal/cache"
	"github.com/carebridge/realtime-service/internal/chat"
	"github.com/carebridge/realtime-service/internal/config"
	"github.com/carebridge/realtime-service/internal/eligibility"
	"github.com/carebridge/realtime-service/internal/events"
	"github.com/carebridge/realtime-service/internal/logger"
	"github.com/carebridge/realtime-service/internal/repository"
	"github.com/carebridge/realtime-service/internal/ws"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "./config/config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	sugar, err := logger.New(cfg.App.Env == "development")
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer sugar.Sync()
	sugar.Infow("starting realtime service", "env", cfg.App.Env, "port", cfg.App.Port)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Mongo
	mc, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		sugar.Fatalf("mongo connect: %v", err)
	}
	if err := mc.Ping(ctx, nil); err != nil {
		sugar.Fatalf("mongo ping: %v", err)
	}
	db := mc.Database(cfg.Mongo.Database)
	msgRepo := repository.NewMessageRepo(db.Collection(cfg.Mongo.MessagesCollection))
	gate := eligibility.NewAppointmentChecker(db.Collection(cfg.Mongo.AppointmentsCollection))

	// Redis presence mirror
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		sugar.Fatalf("redis ping: %v", err)
	}
	mirror := cache.NewPresenceStore(rdb, cfg.Redis.Prefix, cfg.PresenceTTL)

	// Kafka audit events
	var producer *events.Producer
	var publisher chat.Publisher
	if cfg.Kafka.Enabled {
		producer = events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicMessageSent)
		publisher = producer
	}

	gw := chat.New(sugar, msgRepo, gate, publisher, mirror)

	validator := auth.NewValidator(cfg.App.JWTSecret)
	socket := ws.NewHandler(gw, validator, sugar,
		cfg.PingInterval, cfg.ReadDeadline, cfg.WriteDeadline, cfg.WS.MaxMessageSizeBytes)

	app := api.New(gw, validator, sugar, func(c *fiberws.Conn) {
		socket.Handle(c)
	})

	go func() {
		addr := fmt.Sprintf(":%d", cfg.App.Port)
		if err := app.Listen(addr); err != nil {
			sugar.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	sugar.Info("shutting down realtime service...")

	shutCtx, cancelShut := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShut()
	_ = app.Shutdown()
	if producer != nil {
		_ = producer.Close()
	}
	_ = mc.Disconnect(shutCtx)
	_ = rdb.Close()
	sugar.Info("shutdown complete")
}
