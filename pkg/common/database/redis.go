package database

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/synaptica-ai/symptomscan/pkg/common/config"
	"github.com/synaptica-ai/symptomscan/pkg/common/logger"
)

// RedisOptions builds client options for the result cache. Command timeouts
// are short so a slow Redis degrades to cache misses.
func RedisOptions(cfg *config.Config) *redis.Options {
	return &redis.Options{
		Addr:         net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	}
}

// OpenRedis connects and pings. The client is closed again when the ping
// fails; the caller owns it otherwise.
func OpenRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	opts := RedisOptions(cfg)
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}

	logger.Log.WithFields(map[string]interface{}{
		"addr": opts.Addr,
		"db":   opts.DB,
	}).Info("Connected to Redis")
	return client, nil
}
