package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Data-to-Insight-Center/ckn-edge-awareness-framework/internal/logging"
	"github.com/Data-to-Insight-Center/ckn-edge-awareness-framework/internal/model"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "upload:"

// UploadCache keeps upload metadata rows in Redis so repeated meta and
// download requests skip Postgres. Entries are invalidated on delete and
// expire on their own after the configured TTL.
type UploadCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewUploadCache(rdb *redis.Client, ttl time.Duration) *UploadCache {
	return &UploadCache{rdb: rdb, ttl: ttl}
}

func (c *UploadCache) Get(ctx context.Context, uploadId uuid.UUID) (*model.Upload, bool) {
	val, err := c.rdb.Get(ctx, key(uploadId)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.warn(ctx, "cache get failed", uploadId, err)
		return nil, false
	}

	var upload model.Upload
	if err := json.Unmarshal(val, &upload); err != nil {
		// A corrupt entry would otherwise shadow the row forever.
		c.rdb.Del(ctx, key(uploadId))
		c.warn(ctx, "evicted corrupt cache entry", uploadId, err)
		return nil, false
	}
	return &upload, true
}

func (c *UploadCache) Set(ctx context.Context, upload *model.Upload) {
	data, err := json.Marshal(upload)
	if err != nil {
		c.warn(ctx, "cache set skipped", upload.Id, err)
		return
	}
	if err := c.rdb.Set(ctx, key(upload.Id), data, c.ttl).Err(); err != nil {
		c.warn(ctx, "cache set failed", upload.Id, err)
	}
}

func (c *UploadCache) Delete(ctx context.Context, uploadId uuid.UUID) {
	if err := c.rdb.Del(ctx, key(uploadId)).Err(); err != nil {
		c.warn(ctx, "cache delete failed", uploadId, err)
	}
}

func (c *UploadCache) warn(ctx context.Context, msg string, uploadId uuid.UUID, err error) {
	if logger, ok := logging.GetFromContext(ctx); ok {
		logger.Warn(ctx, msg, zap.String("upload_id", uploadId.String()), zap.Error(err))
	}
}

func key(uploadId uuid.UUID) string {
	return keyPrefix + uploadId.String()
}
