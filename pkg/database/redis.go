package database

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/yourusername/microlearn-api/internal/config"
)

const defaultRedisDialTimeout = 5 * time.Second

// NewUniversalRedisClient создает клиент Redis для режимов single, sentinel и cluster
// и проверяет подключение PING-ом.
func NewUniversalRedisClient(cfg config.RedisConfig) (redis.UniversalClient, error) {
	options, mode, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewUniversalClient(options)

	ctx, cancel := context.WithTimeout(context.Background(), options.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis (mode: %s, addrs: %v): %w", mode, options.Addrs, err)
	}

	return client, nil
}

// redisOptions переводит конфигурацию в UniversalOptions.
// Тип клиента go-redis выбирает по опциям: при заданном MasterName это sentinel, при нескольких адресах cluster.
func redisOptions(cfg config.RedisConfig) (*redis.UniversalOptions, string, error) {
	addresses := cfg.Addrs
	if len(addresses) == 0 {
		if cfg.Addr == "" {
			return nil, "", fmt.Errorf("redis configuration error: addrs or addr must be provided")
		}
		addresses = []string{cfg.Addr}
	}

	mode := cfg.Mode
	if mode == "" {
		mode = "single"
	}

	options := &redis.UniversalOptions{
		Addrs:       addresses,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: defaultRedisDialTimeout,
	}
	if cfg.DialTimeoutMs > 0 {
		options.DialTimeout = time.Duration(cfg.DialTimeoutMs) * time.Millisecond
	}
	if cfg.MaxRetries != 0 {
		options.MaxRetries = cfg.MaxRetries
	}
	if cfg.MinRetryBackoff != 0 {
		options.MinRetryBackoff = time.Duration(cfg.MinRetryBackoff) * time.Millisecond
	}
	if cfg.MaxRetryBackoff != 0 {
		options.MaxRetryBackoff = time.Duration(cfg.MaxRetryBackoff) * time.Millisecond
	}

	switch mode {
	case "single":
		// Лишние адреса превратили бы клиент в cluster
		options.Addrs = addresses[:1]
	case "sentinel":
		if cfg.MasterName == "" {
			return nil, "", fmt.Errorf("redis sentinel mode requires master_name")
		}
		options.MasterName = cfg.MasterName
	case "cluster":
		if cfg.DB != 0 {
			return nil, "", fmt.Errorf("redis cluster mode supports only db 0, got %d", cfg.DB)
		}
	default:
		return nil, "", fmt.Errorf("unsupported redis mode: %s", mode)
	}

	return options, mode, nil
}
