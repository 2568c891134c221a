// Package storekit is a typed data-access layer over a remote document
// store. The host application injects the wire transport as a Client;
// storekit layers field-name translation, structured filters, error
// classification with retry, realtime subscription bookkeeping and file
// export on top of it.
package storekit

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rpattn/storekit/internal/apierror"
	"github.com/rpattn/storekit/internal/client"
	"github.com/rpattn/storekit/internal/config"
	"github.com/rpattn/storekit/internal/domain"
	"github.com/rpattn/storekit/internal/export"
	"github.com/rpattn/storekit/internal/filter"
	"github.com/rpattn/storekit/internal/mapper"
	"github.com/rpattn/storekit/internal/metrics"
	"github.com/rpattn/storekit/internal/recordloader"
	"github.com/rpattn/storekit/internal/service"
	"github.com/rpattn/storekit/internal/subscription"
)

// Transport contract, implemented and injected by the host.
type (
	Client              = client.Client
	Record              = client.Record
	ListParams          = client.ListParams
	GetParams           = client.GetParams
	Event               = client.Event
	SubscriptionHandler = client.SubscriptionHandler
	UnsubscribeFunc     = client.UnsubscribeFunc
	ResponseError       = client.ResponseError
	FieldError          = client.FieldError
)

// Filter construction, sorting and the record identity fields.
type (
	FilterBuilder    = filter.Builder
	StructuredFilter = domain.StructuredFilter
	Operator         = domain.Operator
	Logic            = domain.Logic
	Sort             = domain.Sort
	SortField        = domain.SortField
	BaseRecord       = domain.BaseRecord
)

// Classified errors.
type (
	ServiceError = apierror.ServiceError
	ErrorKind    = apierror.Kind
)

const (
	KindNetwork    = apierror.KindNetwork
	KindValidation = apierror.KindValidation
	KindAuth       = apierror.KindAuth
	KindPermission = apierror.KindPermission
	KindNotFound   = apierror.KindNotFound
	KindServer     = apierror.KindServer
)

// Collection services and their helpers.
type (
	Collection[T any]   = service.Collection[T]
	ListOptions         = service.ListOptions
	ListResult[T any]   = service.ListResult[T]
	BatchUpdate[T any]  = service.BatchUpdate[T]
	CollectionStats     = service.Stats
	Holder[T any]       = service.Holder[T]
	RecordLoader[T any] = recordloader.RecordLoader[T]
	Lifecycle           = subscription.Lifecycle
	PausedSubscription  = subscription.PausedSubscription
	SubscriptionStats   = subscription.Stats
)

// Export surface.
type (
	ExportFormat  = export.Format
	ExportRequest = export.Request
	ExportResult  = export.Result
)

const (
	FormatCSV  = export.FormatCSV
	FormatXLSX = export.FormatXLSX
)

// NewFilter starts a fluent filter chain.
func NewFilter() *FilterBuilder {
	return filter.NewBuilder()
}

// IsNotFound reports whether err classified as a missing record.
func IsNotFound(err error) bool {
	return apierror.IsNotFound(err)
}

// IsKind reports whether err is a classified error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return apierror.IsKind(err, kind)
}

// Store bundles the collaborators shared by every collection service built
// from it: one field mapper, one classifier, one subscription registry and
// one loaded configuration.
type Store struct {
	client     client.Client
	cfg        config.Config
	mapper     *mapper.FieldMapper
	classifier *apierror.Classifier
	registry   *subscription.Registry
	metrics    *metrics.Metrics
	export     *export.Service
}

type options struct {
	configPath string
	overrides  map[string]string
	lifecycle  subscription.Lifecycle
	registerer prometheus.Registerer
	offline    func() bool
	exportDir  string

	maxRetries int
	baseDelay  time.Duration
	perPage    int
}

// Option configures a Store.
type Option func(*options)

// WithConfigPath loads config.yaml from the directory, layered with
// STORE_-prefixed environment overrides.
func WithConfigPath(dir string) Option {
	return func(o *options) {
		o.configPath = dir
	}
}

// WithFieldOverrides fixes application-to-storage field name mappings that
// the camelCase/snake_case convention would get wrong.
func WithFieldOverrides(overrides map[string]string) Option {
	return func(o *options) {
		o.overrides = overrides
	}
}

// WithLifecycle attaches process lifecycle signals to the subscription
// registry.
func WithLifecycle(lc Lifecycle) Option {
	return func(o *options) {
		o.lifecycle = lc
	}
}

// WithMetricsRegisterer enables Prometheus instrumentation, registered
// against the given registerer.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithOfflineProbe installs the runtime connectivity flag consulted during
// error classification.
func WithOfflineProbe(probe func() bool) Option {
	return func(o *options) {
		o.offline = probe
	}
}

// WithExportDirectory overrides where export files are written.
func WithExportDirectory(dir string) Option {
	return func(o *options) {
		o.exportDir = dir
	}
}

// WithRetryPolicy overrides the configured retry budget and backoff base.
func WithRetryPolicy(maxRetries int, baseDelay time.Duration) Option {
	return func(o *options) {
		o.maxRetries = maxRetries
		o.baseDelay = baseDelay
	}
}

// WithDefaultPerPage overrides the configured default page size.
func WithDefaultPerPage(perPage int) Option {
	return func(o *options) {
		o.perPage = perPage
	}
}

// New creates a Store over the injected transport client.
func New(c Client, opts ...Option) (*Store, error) {
	if c == nil {
		return nil, errors.New("transport client is required")
	}
	o := &options{maxRetries: -1}
	for _, opt := range opts {
		opt(o)
	}

	cfg := config.DefaultConfig()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if o.maxRetries >= 0 {
		cfg.Retry.MaxRetries = o.maxRetries
	}
	if o.baseDelay > 0 {
		cfg.Retry.BaseDelay = o.baseDelay
	}
	if o.perPage > 0 {
		cfg.List.PerPage = o.perPage
	}

	m := mapper.New(o.overrides)

	var mets *metrics.Metrics
	if o.registerer != nil {
		mets = metrics.New(o.registerer)
	}

	classifierOpts := []apierror.Option{apierror.WithMetrics(mets)}
	if o.offline != nil {
		classifierOpts = append(classifierOpts, apierror.WithOfflineProbe(o.offline))
	}
	classifier := apierror.NewClassifier(classifierOpts...)

	registryOpts := []subscription.Option{
		subscription.WithFieldMapper(m),
		subscription.WithMetrics(mets),
	}
	if o.lifecycle != nil {
		registryOpts = append(registryOpts, subscription.WithLifecycle(o.lifecycle))
	}
	registry := subscription.NewRegistry(c, registryOpts...)

	var exportOpts []export.Option
	if o.exportDir != "" {
		exportOpts = append(exportOpts, export.WithExportDirectory(o.exportDir))
	}

	return &Store{
		client:     c,
		cfg:        cfg,
		mapper:     m,
		classifier: classifier,
		registry:   registry,
		metrics:    mets,
		export:     export.NewService(exportOpts...),
	}, nil
}

// NewCollection creates the typed service for one collection, applying the
// store's configured defaults for that collection.
func NewCollection[T any](s *Store, name string) *Collection[T] {
	defaults := s.cfg.DefaultsFor(name)
	return service.NewCollection[T](s.client, name, service.Options{
		Mapper:         s.mapper,
		Classifier:     s.classifier,
		Registry:       s.registry,
		Metrics:        s.metrics,
		DefaultSort:    defaults.Sort,
		DefaultExpand:  defaults.Expand,
		DefaultPerPage: s.cfg.List.PerPage,
	})
}

// NewRecordLoader creates a batching by-ID loader over a collection service.
func NewRecordLoader[T any](svc *Collection[T], idOf func(T) string) *RecordLoader[T] {
	return recordloader.NewRecordLoader(svc, idOf)
}

// WithRetry runs op under the store's configured retry policy. Retryable
// classifications back off exponentially; anything else aborts immediately.
func WithRetry[T any](ctx context.Context, s *Store, op func(context.Context) (T, error)) (T, error) {
	return apierror.Retry(ctx, s.classifier, op, s.cfg.Retry.MaxRetries, s.cfg.Retry.BaseDelay)
}

// Export streams a filtered collection into a CSV or XLSX file.
func (s *Store) Export(ctx context.Context, req ExportRequest) (ExportResult, error) {
	return s.export.Export(ctx, req)
}

// Classify maps any failure value to its classified form.
func (s *Store) Classify(v any) *ServiceError {
	return s.classifier.Classify(v)
}

// IsNetworkError reports whether the failure value describes a
// transport-level connectivity problem.
func (s *Store) IsNetworkError(v any) bool {
	return s.classifier.IsNetworkError(v)
}

// Pause tears down network subscriptions while retaining bookkeeping of what
// was active.
func (s *Store) Pause() {
	s.registry.Pause()
}

// Resume clears the paused bookkeeping and returns what was paused so the
// caller can re-subscribe.
func (s *Store) Resume() []PausedSubscription {
	return s.registry.Resume()
}

// UnsubscribeAll tears down every active subscription.
func (s *Store) UnsubscribeAll() {
	s.registry.UnsubscribeAll()
}

// Stats reports the active and paused subscription counts.
func (s *Store) Stats() SubscriptionStats {
	return s.registry.Stats()
}

// Close tears down every subscription and detaches lifecycle hooks. The
// store must not be used afterwards.
func (s *Store) Close() {
	s.registry.Destroy()
}
