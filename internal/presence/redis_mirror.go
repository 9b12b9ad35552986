package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string
	KeyTTL   time.Duration // expiry of per-user hashes; zero keeps them until offline
}

// Redis key patterns:
// {prefix}:online           SET<user_id>  - users with a routable connection
// {prefix}:user:{user_id}   HASH          - username, since (unix seconds)

type redisMirror struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisMirror connects to Redis and pings it.
func NewRedisMirror(cfg RedisConfig) (Mirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newRedisMirror(client, cfg.Prefix, cfg.KeyTTL), nil
}

func newRedisMirror(client *redis.Client, prefix string, ttl time.Duration) *redisMirror {
	if prefix == "" {
		prefix = "messenger:presence"
	}
	return &redisMirror{client: client, prefix: prefix, ttl: ttl}
}

func (m *redisMirror) onlineKey() string {
	return m.prefix + ":online"
}

func (m *redisMirror) userKey(userID string) string {
	return fmt.Sprintf("%s:user:%s", m.prefix, userID)
}

func (m *redisMirror) SetOnline(ctx context.Context, userID, username string) error {
	pipe := m.client.TxPipeline()
	pipe.SAdd(ctx, m.onlineKey(), userID)
	pipe.HSet(ctx, m.userKey(userID), "username", username, "since", time.Now().Unix())
	if m.ttl > 0 {
		pipe.Expire(ctx, m.userKey(userID), m.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (m *redisMirror) SetOffline(ctx context.Context, userID string) error {
	pipe := m.client.TxPipeline()
	pipe.SRem(ctx, m.onlineKey(), userID)
	pipe.Del(ctx, m.userKey(userID))
	_, err := pipe.Exec(ctx)
	return err
}

func (m *redisMirror) OnlineUsers(ctx context.Context) ([]string, error) {
	return m.client.SMembers(ctx, m.onlineKey()).Result()
}

// Reset drops the online set and every user hash under the prefix.
func (m *redisMirror) Reset(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := m.client.Scan(ctx, cursor, m.prefix+":user:*", 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := m.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return m.client.Del(ctx, m.onlineKey()).Err()
}

func (m *redisMirror) Close() error {
	return m.client.Close()
}
