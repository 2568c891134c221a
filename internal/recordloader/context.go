package recordloader

import (
	"context"

	"github.com/graph-gophers/dataloader"
)

type ctxKey string

const recordLoaderKey ctxKey = "recordLoader"

// WithContext attaches the underlying dataloader to a request context.
func WithContext[T any](ctx context.Context, loader *RecordLoader[T]) context.Context {
	return context.WithValue(ctx, recordLoaderKey, loader.Loader)
}

// FromContext retrieves the dataloader from context, or nil when absent.
func FromContext(ctx context.Context) *dataloader.Loader {
	if l, ok := ctx.Value(recordLoaderKey).(*dataloader.Loader); ok {
		return l
	}
	return nil
}
