package repository

import (
	"context"

	v1 "turnero/pkg/api/v1"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisPrefix = "turnero:session:"

// RedisStore keeps the session in one hash whose fields are the storage keys.
type RedisStore struct {
	client redis.UniversalClient
	key    string
}

func NewRedisStore(client redis.UniversalClient, prefix, profile string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, key: prefix + profile}
}

func (r *RedisStore) Load(ctx context.Context) (*v1.Session, error) {
	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, err
	}
	return decodeFields(fields)
}

// Save replaces the hash inside MULTI/EXEC so no reader sees a mix of old and new fields.
func (r *RedisStore) Save(ctx context.Context, s *v1.Session) error {
	fields, err := encodeFields(s)
	if err != nil {
		return err
	}
	values := make(map[string]any, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key)
		pipe.HSet(ctx, r.key, values)
		return nil
	})
	return err
}

func (r *RedisStore) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}
