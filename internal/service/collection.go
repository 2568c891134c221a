// Package service exposes the uniform CRUD/query/subscribe contract
// application code uses. A Collection composes the field mapper, filter
// serializer, error classifier and subscription registry so no caller ever
// talks to the raw transport directly.
package service

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/rpattn/storekit/internal/apierror"
	"github.com/rpattn/storekit/internal/client"
	"github.com/rpattn/storekit/internal/domain"
	"github.com/rpattn/storekit/internal/filter"
	"github.com/rpattn/storekit/internal/mapper"
	"github.com/rpattn/storekit/internal/metrics"
	"github.com/rpattn/storekit/internal/subscription"
)

const defaultPerPage = 30

// ListOptions selects a page of records. Zero values fall back to the
// per-collection defaults.
type ListOptions struct {
	Page    int
	PerPage int
	Sort    string
	Expand  string
	Filter  *domain.StructuredFilter
}

// ListResult is one decoded page plus paging totals.
type ListResult[T any] struct {
	Page       int
	PerPage    int
	TotalItems int
	TotalPages int
	Items      []T
}

// BatchUpdate pairs a record ID with its replacement data.
type BatchUpdate[T any] struct {
	ID   string
	Data T
}

// Stats reports the collection's record count and active subscriptions.
type Stats struct {
	TotalRecords        int
	ActiveSubscriptions int
}

// Options configure a Collection. Nil collaborators are replaced with
// defaults at construction.
type Options struct {
	Mapper     *mapper.FieldMapper
	Classifier *apierror.Classifier
	Registry   *subscription.Registry
	Metrics    *metrics.Metrics

	DefaultSort    string
	DefaultExpand  string
	DefaultPerPage int
}

// Collection is the generic data-access façade for one store collection.
type Collection[T any] struct {
	client     client.Client
	collection string
	mapper     *mapper.FieldMapper
	classifier *apierror.Classifier
	registry   *subscription.Registry
	metrics    *metrics.Metrics

	defaultSort    string
	defaultExpand  string
	defaultPerPage int
}

// NewCollection creates the service for one collection over the injected
// transport client.
func NewCollection[T any](c client.Client, collection string, opts Options) *Collection[T] {
	m := opts.Mapper
	if m == nil {
		m = mapper.New(nil)
	}
	classifier := opts.Classifier
	if classifier == nil {
		classifier = apierror.NewClassifier()
	}
	registry := opts.Registry
	if registry == nil {
		registry = subscription.NewRegistry(c, subscription.WithFieldMapper(m), subscription.WithMetrics(opts.Metrics))
	}
	perPage := opts.DefaultPerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	return &Collection[T]{
		client:         c,
		collection:     collection,
		mapper:         m,
		classifier:     classifier,
		registry:       registry,
		metrics:        opts.Metrics,
		defaultSort:    opts.DefaultSort,
		defaultExpand:  opts.DefaultExpand,
		defaultPerPage: perPage,
	}
}

// Name returns the collection name.
func (s *Collection[T]) Name() string {
	return s.collection
}

// List fetches one page of records matching the options.
func (s *Collection[T]) List(ctx context.Context, opts ListOptions) (ListResult[T], error) {
	page := opts.Page
	if page <= 0 {
		page = 1
	}
	perPage := opts.PerPage
	if perPage <= 0 {
		perPage = s.defaultPerPage
	}
	sort := opts.Sort
	if sort == "" {
		sort = s.defaultSort
	}
	expand := opts.Expand
	if expand == "" {
		expand = s.defaultExpand
	}

	filterStr, err := s.filterString(opts.Filter)
	if err != nil {
		return ListResult[T]{}, s.fail("list", err)
	}

	raw, err := s.client.GetList(ctx, s.collection, page, perPage, client.ListParams{
		Sort:   sort,
		Filter: filterStr,
		Expand: expand,
	})
	if err != nil {
		return ListResult[T]{}, s.fail("list", err)
	}

	items := make([]T, len(raw.Items))
	for i, record := range raw.Items {
		item, err := s.decode(record)
		if err != nil {
			return ListResult[T]{}, s.fail("list", err)
		}
		items[i] = item
	}
	s.metrics.ObserveOperation(s.collection, "list", nil)

	return ListResult[T]{
		Page:       raw.Page,
		PerPage:    raw.PerPage,
		TotalItems: raw.TotalItems,
		TotalPages: raw.TotalPages,
		Items:      items,
	}, nil
}

// GetOne fetches a single record by ID.
func (s *Collection[T]) GetOne(ctx context.Context, id string, expand ...string) (T, error) {
	var zero T
	record, err := s.client.GetOne(ctx, s.collection, id, client.GetParams{Expand: s.expandOf(expand)})
	if err != nil {
		return zero, s.fail("get_one", err)
	}
	item, err := s.decode(record)
	if err != nil {
		return zero, s.fail("get_one", err)
	}
	s.metrics.ObserveOperation(s.collection, "get_one", nil)
	return item, nil
}

// GetFirst returns the first record matching the filter, or nil when nothing
// matches. Any classification other than NotFound propagates.
func (s *Collection[T]) GetFirst(ctx context.Context, f domain.StructuredFilter, expand ...string) (*T, error) {
	filterStr, err := s.filterString(&f)
	if err != nil {
		return nil, s.fail("get_first", err)
	}
	record, err := s.client.GetFirstListItem(ctx, s.collection, filterStr, client.GetParams{Expand: s.expandOf(expand)})
	if err != nil {
		svcErr := s.fail("get_first", err)
		if apierror.IsNotFound(svcErr) {
			return nil, nil
		}
		return nil, svcErr
	}
	item, err := s.decode(record)
	if err != nil {
		return nil, s.fail("get_first", err)
	}
	s.metrics.ObserveOperation(s.collection, "get_first", nil)
	return &item, nil
}

// Create inserts a new record and returns the stored form.
func (s *Collection[T]) Create(ctx context.Context, data T) (T, error) {
	var zero T
	payload, err := s.encode(data)
	if err != nil {
		return zero, s.fail("create", err)
	}
	record, err := s.client.Create(ctx, s.collection, payload)
	if err != nil {
		return zero, s.fail("create", err)
	}
	item, err := s.decode(record)
	if err != nil {
		return zero, s.fail("create", err)
	}
	s.metrics.ObserveOperation(s.collection, "create", nil)
	return item, nil
}

// Update replaces a record's data and returns the stored form.
func (s *Collection[T]) Update(ctx context.Context, id string, data T) (T, error) {
	var zero T
	payload, err := s.encode(data)
	if err != nil {
		return zero, s.fail("update", err)
	}
	record, err := s.client.Update(ctx, s.collection, id, payload)
	if err != nil {
		return zero, s.fail("update", err)
	}
	item, err := s.decode(record)
	if err != nil {
		return zero, s.fail("update", err)
	}
	s.metrics.ObserveOperation(s.collection, "update", nil)
	return item, nil
}

// Delete removes a record by ID.
func (s *Collection[T]) Delete(ctx context.Context, id string) error {
	if err := s.client.Delete(ctx, s.collection, id); err != nil {
		return s.fail("delete", err)
	}
	s.metrics.ObserveOperation(s.collection, "delete", nil)
	return nil
}

// Count returns the total number of records matching the filter without
// transferring a full page.
func (s *Collection[T]) Count(ctx context.Context, f *domain.StructuredFilter) (int, error) {
	result, err := s.List(ctx, ListOptions{PerPage: 1, Filter: f})
	if err != nil {
		return 0, err
	}
	return result.TotalItems, nil
}

// Exists reports whether a record with the given ID exists. Only a NotFound
// classification maps to false; any other failure propagates rather than
// being treated as absence.
func (s *Collection[T]) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.GetOne(ctx, id)
	if err != nil {
		if apierror.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CreateBatch fans out Create over the items in parallel. Any single failure
// rejects the whole batch.
func (s *Collection[T]) CreateBatch(ctx context.Context, items []T) ([]T, error) {
	results := make([]T, len(items))
	g, gctx := errgroup.WithContext(ctx)
	for i, item := range items {
		g.Go(func() error {
			created, err := s.Create(gctx, item)
			if err != nil {
				return err
			}
			results[i] = created
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// UpdateBatch fans out Update over the pairs in parallel. Any single failure
// rejects the whole batch.
func (s *Collection[T]) UpdateBatch(ctx context.Context, updates []BatchUpdate[T]) ([]T, error) {
	results := make([]T, len(updates))
	g, gctx := errgroup.WithContext(ctx)
	for i, update := range updates {
		g.Go(func() error {
			updated, err := s.Update(gctx, update.ID, update.Data)
			if err != nil {
				return err
			}
			results[i] = updated
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// DeleteBatch fans out Delete over the IDs in parallel. Any single failure
// rejects the whole batch.
func (s *Collection[T]) DeleteBatch(ctx context.Context, ids []string) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		g.Go(func() error {
			return s.Delete(gctx, id)
		})
	}
	return g.Wait()
}

// GetByIDs fetches the records with the given IDs using one any-of query.
// Empty input returns an empty slice without touching the transport.
func (s *Collection[T]) GetByIDs(ctx context.Context, ids []string, expand ...string) ([]T, error) {
	if len(ids) == 0 {
		return []T{}, nil
	}
	values := make([]any, len(ids))
	for i, id := range ids {
		values[i] = id
	}
	f := filter.NewBuilder().In("id", values...).Build()
	result, err := s.List(ctx, ListOptions{
		PerPage: len(ids),
		Expand:  s.expandOf(expand),
		Filter:  &f,
	})
	if err != nil {
		return nil, err
	}
	return result.Items, nil
}

// Subscribe registers a realtime callback for this collection, optionally
// scoped by a structured filter. Pushed payloads arrive with application
// field names.
func (s *Collection[T]) Subscribe(callback client.SubscriptionHandler, f *domain.StructuredFilter) (client.UnsubscribeFunc, error) {
	filterStr, err := s.filterString(f)
	if err != nil {
		return nil, s.fail("subscribe", err)
	}
	cancel, err := s.registry.Subscribe(s.collection, callback, filterStr)
	if err != nil {
		return nil, s.fail("subscribe", err)
	}
	s.metrics.ObserveOperation(s.collection, "subscribe", nil)
	return cancel, nil
}

// UnsubscribeAll tears down every subscription of this collection.
func (s *Collection[T]) UnsubscribeAll() {
	s.registry.UnsubscribeCollection(s.collection)
}

// GetStats returns the record count and active subscription count.
func (s *Collection[T]) GetStats(ctx context.Context) (Stats, error) {
	total, err := s.Count(ctx, nil)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		TotalRecords:        total,
		ActiveSubscriptions: s.registry.ActiveCount(s.collection),
	}, nil
}

// Registry exposes the subscription registry for callers that manage
// process-wide teardown.
func (s *Collection[T]) Registry() *subscription.Registry {
	return s.registry
}

func (s *Collection[T]) filterString(f *domain.StructuredFilter) (string, error) {
	if f == nil || f.Empty() {
		return "", nil
	}
	return filter.ToFilterString(*f, s.mapper.StorageField)
}

func (s *Collection[T]) expandOf(expand []string) string {
	if len(expand) > 0 && expand[0] != "" {
		return expand[0]
	}
	return s.defaultExpand
}

func (s *Collection[T]) decode(record client.Record) (T, error) {
	var item T
	mapped := s.mapper.ToApplication(record)
	raw, err := json.Marshal(mapped)
	if err != nil {
		return item, fmt.Errorf("failed to encode record payload: %w", err)
	}
	if err := json.Unmarshal(raw, &item); err != nil {
		return item, fmt.Errorf("failed to decode record: %w", err)
	}
	return item, nil
}

func (s *Collection[T]) encode(data T) (client.Record, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	payload := make(client.Record)
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode record payload: %w", err)
	}
	return s.mapper.ToStorage(payload), nil
}

func (s *Collection[T]) fail(op string, err error) error {
	svcErr := s.classifier.Classify(err)
	s.metrics.ObserveOperation(s.collection, op, svcErr)
	return svcErr
}
