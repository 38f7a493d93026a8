package usecase

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/example/smile-overlay/internal/smile"
)

// ObservationCache stores landmark provider output keyed by image content.
// Observations do not depend on the threshold, so cached entries stay valid
// across threshold changes.
type ObservationCache interface {
	Load(ctx context.Context, key string) (obs *smile.FaceObservation, found bool, err error)
	Store(ctx context.Context, key string, obs *smile.FaceObservation, ttl time.Duration) error
}

// RedisObservationCache is an ObservationCache backed by go-redis.
type RedisObservationCache struct {
	client redis.Cmdable
}

// NewRedisObservationCache constructs a Redis-backed observation cache.
func NewRedisObservationCache(client redis.Cmdable) *RedisObservationCache {
	return &RedisObservationCache{client: client}
}

// Load reads a cached observation. A missing key is reported as found=false with no error.
func (c *RedisObservationCache) Load(ctx context.Context, key string) (*smile.FaceObservation, bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	obs, err := decodeObservation(raw)
	if err != nil {
		return nil, false, err
	}
	return obs, true, nil
}

// Store writes an observation, including a nil one meaning "no face".
func (c *RedisObservationCache) Store(ctx context.Context, key string, obs *smile.FaceObservation, ttl time.Duration) error {
	raw, err := encodeObservation(obs)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, ttl).Err()
}

type cachedObservation struct {
	Face *smile.FaceObservation `json:"face"`
}

func encodeObservation(obs *smile.FaceObservation) ([]byte, error) {
	return json.Marshal(cachedObservation{Face: obs})
}

func decodeObservation(raw []byte) (*smile.FaceObservation, error) {
	var payload cachedObservation
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode cached observation: %w", err)
	}
	return payload.Face, nil
}

func observationKey(image []byte) string {
	sum := sha1.Sum(image)
	return "landmarks:" + hex.EncodeToString(sum[:])
}
