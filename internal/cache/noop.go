package cache

import (
	"context"

	"github.com/Data-to-Insight-Center/ckn-edge-awareness-framework/internal/model"
	"github.com/google/uuid"
)

// Noop satisfies the cache interface for deployments without Redis.
type Noop struct{}

func NewNoop() *Noop {
	return &Noop{}
}

func (Noop) Get(ctx context.Context, uploadId uuid.UUID) (*model.Upload, bool) {
	return nil, false
}

func (Noop) Set(ctx context.Context, upload *model.Upload) {}

func (Noop) Delete(ctx context.Context, uploadId uuid.UUID) {}
