package objectstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"vouch/pkg/platform/sentinel"
)

const (
	defaultKeyPrefix = "vouch:objects:"
	fieldData        = "data"
	fieldContentType = "content_type"
)

// RedisStore keeps each object as a hash with its bytes and content type.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, prefix: defaultKeyPrefix}
}

func (s *RedisStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	err := s.client.HSet(ctx, s.prefix+key, fieldData, data, fieldContentType, contentType).Err()
	if err != nil {
		return fmt.Errorf("redis put object: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Object, error) {
	vals, err := s.client.HMGet(ctx, s.prefix+key, fieldData, fieldContentType).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("redis get object: %w", err)
	}
	data, ok := vals[0].(string)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	contentType, _ := vals[1].(string)
	return &Object{Data: []byte(data), ContentType: contentType}, nil
}
