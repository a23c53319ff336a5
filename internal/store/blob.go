package store

import (
	"context"
	"errors"
	"io"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"github.com/kode4food/courier/pkg/api"

	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

// BlobBackend keeps one JSON object per plan in a gocloud.dev bucket,
// supporting S3, GCS, Azure Blob Storage, local files, and memory
type BlobBackend struct {
	bucket *blob.Bucket
	prefix string
}

const blobSuffix = ".json"

var _ Backend = (*BlobBackend)(nil)

// NewBlobBackend opens the bucket at bucketURL. Objects are named
// <prefix><plan ID>.json
func NewBlobBackend(
	ctx context.Context, bucketURL, prefix string,
) (*BlobBackend, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, err
	}
	return NewBlobBackendWithBucket(bucket, prefix), nil
}

// NewBlobBackendWithBucket wraps an already opened bucket
func NewBlobBackendWithBucket(bucket *blob.Bucket, prefix string) *BlobBackend {
	return &BlobBackend{bucket: bucket, prefix: prefix}
}

func (b *BlobBackend) Put(
	ctx context.Context, id api.PlanID, data []byte,
) error {
	return b.bucket.WriteAll(ctx, b.keyFor(id), data, &blob.WriterOptions{
		ContentType: "application/json",
	})
}

func (b *BlobBackend) Delete(ctx context.Context, id api.PlanID) error {
	err := b.bucket.Delete(ctx, b.keyFor(id))
	if err != nil && gcerrors.Code(err) == gcerrors.NotFound {
		return nil
	}
	return err
}

func (b *BlobBackend) LoadAll(ctx context.Context) ([]Record, error) {
	var res []Record
	iter := b.bucket.List(&blob.ListOptions{Prefix: b.prefix})
	for {
		obj, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			return nil, err
		}
		id, ok := b.idFor(obj.Key)
		if obj.IsDir || !ok {
			continue
		}
		data, err := b.bucket.ReadAll(ctx, obj.Key)
		if err != nil {
			if gcerrors.Code(err) == gcerrors.NotFound {
				continue
			}
			return nil, err
		}
		res = append(res, Record{ID: id, Data: data})
	}
}

func (b *BlobBackend) Close() error {
	return b.bucket.Close()
}

func (b *BlobBackend) keyFor(id api.PlanID) string {
	return b.prefix + string(id) + blobSuffix
}

func (b *BlobBackend) idFor(key string) (api.PlanID, bool) {
	name, ok := strings.CutPrefix(key, b.prefix)
	if !ok {
		return "", false
	}
	name, ok = strings.CutSuffix(name, blobSuffix)
	if !ok || name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return api.PlanID(name), true
}
