package ctxdata

import (
	"context"
)

type traceIDKey struct{}
type deviceIDKey struct{}

var (
	traceIDKeyInstance  = traceIDKey{}
	deviceIDKeyInstance = deviceIDKey{}
)

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKeyInstance, traceID)
}

func GetTraceID(ctx context.Context) (string, bool) {
	v := ctx.Value(traceIDKeyInstance)
	traceID, ok := v.(string)
	return traceID, ok
}

func WithDeviceID(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, deviceIDKeyInstance, deviceID)
}

func GetDeviceID(ctx context.Context) (string, bool) {
	v := ctx.Value(deviceIDKeyInstance)
	deviceID, ok := v.(string)
	return deviceID, ok
}
