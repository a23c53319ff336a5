package store

import (
	"context"
	"slices"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/kode4food/courier/pkg/api"
)

// RedisBackend keeps every plan in a single hash, field per plan ID
type RedisBackend struct {
	client *redis.Client
	key    string
}

var _ Backend = (*RedisBackend)(nil)

// NewRedisBackend stores plans in the hash <prefix>:plans
func NewRedisBackend(client *redis.Client, prefix string) *RedisBackend {
	return &RedisBackend{
		client: client,
		key:    prefix + ":plans",
	}
}

func (b *RedisBackend) Put(
	ctx context.Context, id api.PlanID, data []byte,
) error {
	return b.client.HSet(ctx, b.key, string(id), data).Err()
}

func (b *RedisBackend) Delete(ctx context.Context, id api.PlanID) error {
	return b.client.HDel(ctx, b.key, string(id)).Err()
}

func (b *RedisBackend) LoadAll(ctx context.Context) ([]Record, error) {
	all, err := b.client.HGetAll(ctx, b.key).Result()
	if err != nil {
		return nil, err
	}
	res := make([]Record, 0, len(all))
	for id, data := range all {
		res = append(res, Record{ID: api.PlanID(id), Data: []byte(data)})
	}
	slices.SortFunc(res, func(l, r Record) int {
		return strings.Compare(string(l.ID), string(r.ID))
	})
	return res, nil
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}
