package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"softcard/bridge/internal/card"
	"softcard/bridge/internal/config"
	"softcard/bridge/internal/events"
	"softcard/bridge/internal/logging"
	"softcard/bridge/internal/registry"
	"softcard/bridge/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New("info", true)
		fallback.Fatal().Err(err).Msg("configuration invalid")
	}

	log := logging.New(cfg.LogLevel, cfg.LogConsole)
	log.Info().Str("bridge_id", cfg.BridgeID).Str("addr", cfg.ListenAddr()).Msg("starting card bridge")

	// Optional Redis session registry.
	var reg *registry.Registry
	if cfg.RedisURL != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("redis connect failed")
		}
		defer rdb.Close()
		reg = registry.New(rdb, cfg.BridgeID, log)
		log.Info().Str("addr", cfg.RedisURL).Msg("connected to redis")
	}

	// Optional NATS exchange publishing.
	var pub *events.Publisher
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			log.Fatal().Err(err).Msg("nats connect failed")
		}
		defer nc.Close()
		pub = events.New(nc, cfg.BridgeID, log)
		log.Info().Str("url", cfg.NATSURL).Msg("connected to nats")
	}

	// Initialize the card backend before anything listens. An init failure
	// means the bridge must not accept connections at all.
	adapter, err := card.Open(context.Background(), card.NewLoopback(), cfg.Warmup)
	if err != nil {
		log.Fatal().Err(err).Msg("card backend init failed")
	}

	srv := server.New(cfg, log, adapter, reg, pub)
	if err := srv.Start(); err != nil {
		adapter.Close()
		log.Fatal().Err(err).Msg("server start failed")
	}
	log.Info().Dur("warmup", cfg.Warmup).Str("scope", cfg.WarmupScope).Msg("bridge started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down")
	srv.Stop()
	if err := adapter.Close(); err != nil {
		log.Error().Err(err).Msg("card backend shutdown failed")
	}
	log.Info().Msg("bridge stopped")
}
