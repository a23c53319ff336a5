package store

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Open selects a Backend from the URL scheme: redis:// and rediss:// use a
// Redis hash, postgres:// and postgresql:// use Postgres, and anything else
// is handed to gocloud.dev/blob (mem://, file://, s3://, gs://, azblob://)
func Open(ctx context.Context, storeURL, prefix string) (Backend, error) {
	u, err := url.Parse(storeURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidStoreURL, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "redis", "rediss":
		opts, err := redis.ParseURL(storeURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidStoreURL, err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, err
		}
		return NewRedisBackend(client, prefix), nil
	case "postgres", "postgresql":
		return NewPostgresBackend(ctx, storeURL)
	case "":
		return nil, fmt.Errorf("%w: missing scheme", ErrInvalidStoreURL)
	default:
		return NewBlobBackend(ctx, storeURL, blobPrefix(prefix))
	}
}

func blobPrefix(prefix string) string {
	if prefix == "" || strings.HasSuffix(prefix, "/") {
		return prefix
	}
	return prefix + "/"
}
