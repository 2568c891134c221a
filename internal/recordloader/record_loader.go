// Package recordloader batches individual by-ID record fetches into single
// any-of queries against the store.
package recordloader

import (
	"context"
	"time"

	"github.com/graph-gophers/dataloader"

	"github.com/rpattn/storekit/internal/service"
)

// RecordLoader coalesces Load calls issued within the batching window into
// one GetByIDs round trip, preserving input order. IDs with no matching
// record resolve to the zero value.
type RecordLoader[T any] struct {
	Loader *dataloader.Loader
}

// NewRecordLoader creates a loader over the collection service. The idOf
// function extracts a record's identifier so results can be matched back to
// their keys.
func NewRecordLoader[T any](svc *service.Collection[T], idOf func(T) string) *RecordLoader[T] {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		ids := make([]string, len(keys))
		for i, k := range keys {
			ids[i] = k.String()
		}

		records, err := svc.GetByIDs(ctx, ids)
		if err != nil {
			results := make([]*dataloader.Result, len(keys))
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}

		// Map ID -> record for ordering
		byID := make(map[string]T, len(records))
		for _, record := range records {
			byID[idOf(record)] = record
		}

		results := make([]*dataloader.Result, len(keys))
		for i, id := range ids {
			if record, ok := byID[id]; ok {
				results[i] = &dataloader.Result{Data: record}
			} else {
				results[i] = &dataloader.Result{Data: nil}
			}
		}

		return results
	}

	loader := dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(5*time.Millisecond))

	return &RecordLoader[T]{Loader: loader}
}

// Load resolves one record by ID through the batching window. The boolean
// reports whether the record exists.
func (l *RecordLoader[T]) Load(ctx context.Context, id string) (T, bool, error) {
	var zero T
	data, err := l.Loader.Load(ctx, dataloader.StringKey(id))()
	if err != nil {
		return zero, false, err
	}
	record, ok := data.(T)
	if !ok {
		return zero, false, nil
	}
	return record, true, nil
}
