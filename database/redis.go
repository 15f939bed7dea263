package database

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"relatim-chat/config"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	RedisTokens  = 0
	RedisAdapter = 1
)

// RedisConnect opens one client per logical database listed in REDIS_DB.
func RedisConnect(log *logrus.Logger) (map[int]*redis.Client, error) {
	clients := make(map[int]*redis.Client)

	for _, db := range strings.Split(config.Config("REDIS_DB"), ",") {
		dbNumber, err := strconv.Atoi(strings.TrimSpace(db))
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB entry %q: %w", db, err)
		}

		options := &redis.Options{
			Addr: fmt.Sprintf(
				"%s:%s",
				config.Config("REDIS_HOST"),
				config.Config("REDIS_PORT"),
			),
			Password: config.Config("REDIS_PASSWORD"),
			DB:       dbNumber,
		}

		client := redis.NewClient(options)
		if err := client.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("redis db %d: %w", dbNumber, err)
		}
		clients[dbNumber] = client
	}

	for _, required := range []int{RedisTokens, RedisAdapter} {
		if _, ok := clients[required]; !ok {
			return nil, fmt.Errorf("REDIS_DB must include database %d", required)
		}
	}

	log.Info("Connections opened to Redis")
	return clients, nil
}
