// Package subscription owns the bookkeeping for realtime push subscriptions:
// one underlying subscription per (collection, filter) key, deterministic
// teardown, and lifecycle-driven cleanup.
package subscription

import (
	"log"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/rpattn/storekit/internal/client"
	"github.com/rpattn/storekit/internal/mapper"
	"github.com/rpattn/storekit/internal/metrics"
)

// Registry tracks active realtime subscriptions. Mutations to the map are
// serialized through a single mutex; the underlying cancel calls run outside
// the lock so teardown can trigger further lifecycle events without
// deadlocking.
type Registry struct {
	client  client.Client
	mapper  *mapper.FieldMapper
	metrics *metrics.Metrics

	mu         sync.Mutex
	entries    map[string]*entry
	paused     map[string]PausedSubscription
	cleaning   bool
	unregister []func()
}

type entry struct {
	id         uuid.UUID
	collection string
	topic      string
	cancel     client.UnsubscribeFunc
}

// PausedSubscription records a subscription torn down on backgrounding. The
// original callback is not retained; the caller re-subscribes explicitly on
// resume.
type PausedSubscription struct {
	Collection string
	Topic      string
}

// Stats is the observable subscription state.
type Stats struct {
	Total        int
	ByCollection map[string]int
	Paused       int
}

// Option configures a Registry.
type Option func(*Registry)

// WithFieldMapper translates pushed payloads to application field names
// before callbacks run.
func WithFieldMapper(m *mapper.FieldMapper) Option {
	return func(r *Registry) {
		r.mapper = m
	}
}

// WithLifecycle attaches process lifecycle signals: terminate unsubscribes
// everything, background pauses, foreground logs and leaves re-subscription
// to the caller.
func WithLifecycle(lc Lifecycle) Option {
	return func(r *Registry) {
		if lc == nil {
			return
		}
		r.unregister = append(r.unregister,
			lc.OnTerminate(func() { r.UnsubscribeAll() }),
			lc.OnBackground(func() { r.Pause() }),
			lc.OnForeground(func() { r.Resume() }),
		)
	}
}

// WithMetrics records the active-subscription gauge.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// NewRegistry creates a registry over the given transport client.
func NewRegistry(c client.Client, opts ...Option) *Registry {
	r := &Registry{
		client:  c,
		entries: make(map[string]*entry),
		paused:  make(map[string]PausedSubscription),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscribe creates the realtime subscription for the (collection, filter)
// key. An existing subscription under the same key is torn down first: keys
// replace, they never stack. The returned cancel function is idempotent.
func (r *Registry) Subscribe(collection string, callback client.SubscriptionHandler, filter string) (client.UnsubscribeFunc, error) {
	topic := filter
	if topic == "" {
		topic = client.TopicWildcard
	}
	key := subscriptionKey(collection, topic)

	r.mu.Lock()
	existing := r.entries[key]
	delete(r.entries, key)
	r.mu.Unlock()
	if existing != nil {
		log.Printf("[subscription] replacing existing subscription %s (%s)", key, existing.id)
		r.cancelEntry(existing)
	}

	handler := func(ev client.Event) {
		if r.mapper != nil {
			ev.Record = r.mapper.ToApplication(ev.Record)
		}
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("[subscription] callback panic for %s: %v", key, rec)
			}
		}()
		callback(ev)
	}

	cancel, err := r.client.Subscribe(collection, topic, handler)
	if err != nil {
		return nil, err
	}

	e := &entry{id: uuid.New(), collection: collection, topic: topic, cancel: cancel}
	r.mu.Lock()
	r.entries[key] = e
	delete(r.paused, key)
	total := len(r.entries)
	r.mu.Unlock()
	r.metrics.SetActiveSubscriptions(total)

	return func() error {
		r.remove(key, e)
		return nil
	}, nil
}

// UnsubscribeCollection tears down every subscription of the collection,
// regardless of filter.
func (r *Registry) UnsubscribeCollection(collection string) {
	r.mu.Lock()
	var removed []*entry
	for key, e := range r.entries {
		if e.collection == collection {
			removed = append(removed, e)
			delete(r.entries, key)
		}
	}
	total := len(r.entries)
	r.mu.Unlock()

	for _, e := range removed {
		r.cancelEntry(e)
	}
	r.metrics.SetActiveSubscriptions(total)
}

// UnsubscribeAll tears down every subscription. The call is idempotent and
// re-entrancy safe: a nested call triggered by teardown itself is a no-op.
func (r *Registry) UnsubscribeAll() {
	r.mu.Lock()
	if r.cleaning {
		r.mu.Unlock()
		return
	}
	r.cleaning = true
	removed := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		removed = append(removed, e)
	}
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range removed {
		r.cancelEntry(e)
	}

	r.mu.Lock()
	r.cleaning = false
	r.mu.Unlock()
	r.metrics.SetActiveSubscriptions(0)

	if len(removed) > 0 {
		log.Printf("[subscription] unsubscribed %d subscriptions", len(removed))
	}
}

// Pause tears down the network subscriptions while retaining bookkeeping of
// what was active, so callers can re-subscribe on foreground resume.
func (r *Registry) Pause() {
	r.mu.Lock()
	removed := make([]*entry, 0, len(r.entries))
	for key, e := range r.entries {
		removed = append(removed, e)
		r.paused[key] = PausedSubscription{Collection: e.collection, Topic: e.topic}
		delete(r.entries, key)
	}
	r.mu.Unlock()

	for _, e := range removed {
		r.cancelEntry(e)
	}
	r.metrics.SetActiveSubscriptions(0)

	if len(removed) > 0 {
		log.Printf("[subscription] paused %d subscriptions", len(removed))
	}
}

// Resume clears the paused bookkeeping and returns what was paused. The
// original callbacks are not restored; re-subscription is the caller's job.
func (r *Registry) Resume() []PausedSubscription {
	r.mu.Lock()
	resumed := make([]PausedSubscription, 0, len(r.paused))
	for _, p := range r.paused {
		resumed = append(resumed, p)
	}
	r.paused = make(map[string]PausedSubscription)
	r.mu.Unlock()

	if len(resumed) > 0 {
		sort.Slice(resumed, func(i, j int) bool {
			if resumed[i].Collection != resumed[j].Collection {
				return resumed[i].Collection < resumed[j].Collection
			}
			return resumed[i].Topic < resumed[j].Topic
		})
		log.Printf("[subscription] %d paused subscriptions require explicit re-subscription", len(resumed))
	}
	return resumed
}

// Paused returns the subscriptions torn down by the last Pause that have not
// been re-subscribed or resumed since.
func (r *Registry) Paused() []PausedSubscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	paused := make([]PausedSubscription, 0, len(r.paused))
	for _, p := range r.paused {
		paused = append(paused, p)
	}
	return paused
}

// Stats returns the total count and per-collection breakdown.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := Stats{
		Total:        len(r.entries),
		ByCollection: make(map[string]int),
		Paused:       len(r.paused),
	}
	for _, e := range r.entries {
		stats.ByCollection[e.collection]++
	}
	return stats
}

// ActiveCount returns the number of active subscriptions for one collection.
func (r *Registry) ActiveCount(collection string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, e := range r.entries {
		if e.collection == collection {
			count++
		}
	}
	return count
}

// Destroy unsubscribes everything and detaches the lifecycle hooks.
func (r *Registry) Destroy() {
	r.UnsubscribeAll()
	r.mu.Lock()
	unregister := r.unregister
	r.unregister = nil
	r.paused = make(map[string]PausedSubscription)
	r.mu.Unlock()
	for _, fn := range unregister {
		fn()
	}
}

func (r *Registry) remove(key string, e *entry) {
	r.mu.Lock()
	current, ok := r.entries[key]
	if ok && current == e {
		delete(r.entries, key)
	}
	total := len(r.entries)
	r.mu.Unlock()

	if ok && current == e {
		r.cancelEntry(e)
		r.metrics.SetActiveSubscriptions(total)
	}
}

func (r *Registry) cancelEntry(e *entry) {
	if err := e.cancel(); err != nil {
		log.Printf("[subscription] failed to cancel %s/%s: %v", e.collection, e.topic, err)
	}
}

func subscriptionKey(collection, topic string) string {
	return collection + "::" + topic
}
