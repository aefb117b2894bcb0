package saltedbloom

import (
	"context"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/vkuptcov/saltedbloom/redisclients"
)

// Shared zstd coders, safe for concurrent use.
var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil)
)

// RedisStore keeps a snapshot under two Redis keys written in one MULTI/EXEC
// transaction, so readers never observe a bitmap and info from different saves.
// The bitmap is stored zstd-compressed.
type RedisStore struct {
	redis       redisclients.RedisClient
	cachePrefix string
}

func NewRedisStore(redis redisclients.RedisClient, cachePrefix string) *RedisStore {
	return &RedisStore{
		redis:       redis,
		cachePrefix: cachePrefix,
	}
}

func (r *RedisStore) Save(ctx context.Context, snapshot *Snapshot) error {
	bitmap, info, err := encodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	err = r.redis.Pipeliner(ctx).
		Set(r.bitmapKey(), zstdEncoder.EncodeAll(bitmap, nil), 0).
		Set(r.infoKey(), info, 0).
		Exec()
	return errors.Wrapf(err, "snapshot save under %q failed", r.cachePrefix)
}

func (r *RedisStore) Load(ctx context.Context) (*Snapshot, error) {
	info, err := r.get(ctx, r.infoKey())
	if err != nil {
		return nil, err
	}
	compressed, err := r.get(ctx, r.bitmapKey())
	if err != nil {
		return nil, err
	}
	bitmap, err := zstdDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, errors.Wrapf(ErrCorruptSnapshot, "bitmap decompression failed: %v", err)
	}
	snapshot, err := decodeSnapshot(bitmap, info)
	return snapshot, errors.Wrapf(err, "snapshot under %q", r.cachePrefix)
}

func (r *RedisStore) get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.redis.Get(ctx, key)
	if errors.Is(err, redisclients.ErrNotFound) {
		return nil, errors.Wrapf(ErrSnapshotNotFound, "redis key %q doesn't exist", key)
	}
	return data, errors.Wrapf(err, "redis key %q read failed", key)
}

func (r *RedisStore) bitmapKey() string {
	return r.cachePrefix + "|bitmap"
}

func (r *RedisStore) infoKey() string {
	return r.cachePrefix + "|info"
}
