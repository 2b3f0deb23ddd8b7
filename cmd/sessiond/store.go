package main

import (
	"context"
	"fmt"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goSession/session"
)

// openStore returns the configured session store and a func that releases it.
func openStore(ctx context.Context, cfg daemonConfig) (session.Store, func(), error) {
	switch cfg.Store {
	case storeRedis:
		addr := cfg.RedisAddr
		release := func() {}
		if addr == "" {
			mr, err := miniredis.Run()
			if err != nil {
				return nil, nil, fmt.Errorf("start embedded redis: %w", err)
			}
			addr = mr.Addr()
			release = mr.Close
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			release()
			return nil, nil, fmt.Errorf("redis %s: %w", addr, err)
		}
		return session.NewRedisStore(client, cfg.RedisPrefix), func() {
			_ = client.Close()
			release()
		}, nil
	case storeSQLite:
		st, err := session.OpenSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil
	default:
		return session.NewMemoryStore(), func() {}, nil
	}
}
