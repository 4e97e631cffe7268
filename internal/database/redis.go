package database

import (
	"context"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
)

// InitRedis builds the client backing the leaderboard cache, pay codes and the
// revoked-token denylist. Redis is optional: when it is unreachable the server
// starts anyway and those features degrade (no caching, no pay codes, logout
// cannot revoke tokens early).
func InitRedis() *redis.Client {
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	rdb := redis.NewClient(&redis.Options{
		Addr:     viper.GetString("redis.host") + ":" + viper.GetString("redis.port"),
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.db"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("[REDIS] unreachable, starting degraded (no leaderboard cache, pay codes or token revocation): %v", err)
		return nil
	}

	log.Println("[REDIS] connection established")
	return rdb
}
