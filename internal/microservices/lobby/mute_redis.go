package lobby

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisMuteStore keeps mutes as keys with a TTL; Redis expires them for us
// so there is nothing to sweep.
type RedisMuteStore struct {
	client *redis.Client // Redis client instance
}

// constructor for RedisMuteStore
func NewRedisMuteStore(redisAddr, password string) (*RedisMuteStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         redisAddr,
		Password:     password,
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisMuteStore{client: rdb}, nil
}

func muteKey(username string) string {
	return fmt.Sprintf("mute:user:%s", username)
}

// Mute sets the mute key with the duration as TTL (upsert)
func (s *RedisMuteStore) Mute(ctx context.Context, username string, duration time.Duration) error {
	return s.client.Set(ctx, muteKey(username), time.Now().UTC().Format(time.RFC3339Nano), duration).Err()
}

// Unmute lifts the mute early
func (s *RedisMuteStore) Unmute(ctx context.Context, username string) error {
	return s.client.Del(ctx, muteKey(username)).Err()
}

// IsMuted checks whether the mute key still exists
func (s *RedisMuteStore) IsMuted(ctx context.Context, username string) (bool, error) {
	n, err := s.client.Exists(ctx, muteKey(username)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close releases the underlying client
func (s *RedisMuteStore) Close() error {
	return s.client.Close()
}
