package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "kakao"

type redisMeta struct {
	MIMEType string `json:"mime_type"`
}

// RedisStore keeps artifacts in Redis with per-kind expiry. The content type
// lives next to the payload under "<key>:meta".
type RedisStore struct {
	client *redis.Client
	ttl    TTLFunc
}

func NewRedisStore(client *redis.Client, ttl TTLFunc) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(kind Kind, id string) string {
	return fmt.Sprintf("%s:%s:%s", redisKeyPrefix, kind, id)
}

func (s *RedisStore) Put(ctx context.Context, kind Kind, data []byte, mimeType string) (string, error) {
	id := NewID()
	if err := s.PutWithID(ctx, kind, id, data, mimeType); err != nil {
		return "", err
	}
	return id, nil
}

func (s *RedisStore) PutWithID(ctx context.Context, kind Kind, id string, data []byte, mimeType string) error {
	meta, err := json.Marshal(redisMeta{MIMEType: mimeType})
	if err != nil {
		return err
	}

	var ttl time.Duration
	if s.ttl != nil {
		ttl = s.ttl(kind)
	}
	key := redisKey(kind, id)

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, data, ttl)
	pipe.Set(ctx, key+":meta", meta, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store %s artifact: %w", kind, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, kind Kind, id string) (*Artifact, error) {
	key := redisKey(kind, id)

	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s artifact: %w", kind, err)
	}

	artifact := &Artifact{Data: data, MIMEType: "application/octet-stream"}

	raw, err := s.client.Get(ctx, key+":meta").Bytes()
	if err == nil {
		var meta redisMeta
		if json.Unmarshal(raw, &meta) == nil && meta.MIMEType != "" {
			artifact.MIMEType = meta.MIMEType
		}
	}

	return artifact, nil
}

func (s *RedisStore) Delete(ctx context.Context, kind Kind, id string) error {
	key := redisKey(kind, id)
	return s.client.Del(ctx, key, key+":meta").Err()
}
