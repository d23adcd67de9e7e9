package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	currentAPIKeyRedisKey  = "apikey:current"
	previousAPIKeyRedisKey = "apikey:previous"

	// A rotated-out key stays valid this long so in-flight admin callers
	// are not cut off mid-rotation.
	previousKeyGrace = 24 * time.Hour
)

// APIKeyService guards the administrative endpoints (revocation) with a
// shared key. Only the SHA-256 of the key is stored in Redis.
type APIKeyService struct {
	rdb *redis.Client
	log *zap.SugaredLogger
}

func NewAPIKeyService(rdb *redis.Client, log *zap.SugaredLogger) *APIKeyService {
	return &APIKeyService{rdb: rdb, log: log}
}

// SyncAPIKey pushes the key from the environment into Redis, demoting the
// old one to the grace slot when the key changed.
func (s *APIKeyService) SyncAPIKey(ctx context.Context) error {
	key := os.Getenv("ADMIN_API_KEY")
	if key == "" {
		return fmt.Errorf("ADMIN_API_KEY is not set")
	}
	hashed := hashAPIKey(key)

	current, err := s.rdb.Get(ctx, currentAPIKeyRedisKey).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("failed to get current API key from Redis: %w", err)
	}

	if current == hashed {
		return nil
	}

	pipe := s.rdb.Pipeline()
	if current != "" {
		pipe.Set(ctx, previousAPIKeyRedisKey, current, previousKeyGrace)
	}
	pipe.Set(ctx, currentAPIKeyRedisKey, hashed, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to sync API key in Redis: %w", err)
	}

	s.log.Info("Admin API key synced.")
	return nil
}

// IsValidAPIKey accepts the current key, or the previous one while its
// grace TTL has not run out.
func (s *APIKeyService) IsValidAPIKey(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}
	hashed := hashAPIKey(key)

	for _, redisKey := range []string{currentAPIKeyRedisKey, previousAPIKeyRedisKey} {
		stored, err := s.rdb.Get(ctx, redisKey).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("failed to get API key from Redis: %w", err)
		}
		if len(stored) == len(hashed) && subtle.ConstantTimeCompare([]byte(stored), []byte(hashed)) == 1 {
			return true, nil
		}
	}

	return false, nil
}

func hashAPIKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}
