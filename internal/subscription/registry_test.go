package subscription

import (
	"context"
	"sync"
	"testing"

	"github.com/rpattn/storekit/internal/client"
	"github.com/rpattn/storekit/internal/mapper"
)

// stubClient records Subscribe calls and lets tests push events through the
// registered handlers.
type stubClient struct {
	mu       sync.Mutex
	handlers map[string]client.SubscriptionHandler
	subs     int
	cancels  int
}

func newStubClient() *stubClient {
	return &stubClient{handlers: make(map[string]client.SubscriptionHandler)}
}

func (s *stubClient) GetList(ctx context.Context, collection string, page, perPage int, params client.ListParams) (client.ListResult, error) {
	return client.ListResult{}, nil
}

func (s *stubClient) GetOne(ctx context.Context, collection, id string, params client.GetParams) (client.Record, error) {
	return nil, nil
}

func (s *stubClient) GetFirstListItem(ctx context.Context, collection, filter string, params client.GetParams) (client.Record, error) {
	return nil, nil
}

func (s *stubClient) Create(ctx context.Context, collection string, body client.Record) (client.Record, error) {
	return nil, nil
}

func (s *stubClient) Update(ctx context.Context, collection, id string, body client.Record) (client.Record, error) {
	return nil, nil
}

func (s *stubClient) Delete(ctx context.Context, collection, id string) error {
	return nil
}

func (s *stubClient) Subscribe(collection, topic string, handler client.SubscriptionHandler) (client.UnsubscribeFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs++
	key := collection + "::" + topic
	s.handlers[key] = handler
	return func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.cancels++
		delete(s.handlers, key)
		return nil
	}, nil
}

func (s *stubClient) push(collection, topic string, ev client.Event) {
	s.mu.Lock()
	handler := s.handlers[collection+"::"+topic]
	s.mu.Unlock()
	if handler != nil {
		handler(ev)
	}
}

func (s *stubClient) counts() (subs, cancels int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subs, s.cancels
}

type stubLifecycle struct {
	terminate  func()
	background func()
	foreground func()
}

func (l *stubLifecycle) OnTerminate(fn func()) func() {
	l.terminate = fn
	return func() { l.terminate = nil }
}

func (l *stubLifecycle) OnBackground(fn func()) func() {
	l.background = fn
	return func() { l.background = nil }
}

func (l *stubLifecycle) OnForeground(fn func()) func() {
	l.foreground = fn
	return func() { l.foreground = nil }
}

func TestSubscribeDeliversEvents(t *testing.T) {
	c := newStubClient()
	r := NewRegistry(c)

	var got client.Event
	if _, err := r.Subscribe("tasks", func(ev client.Event) { got = ev }, ""); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	c.push("tasks", client.TopicWildcard, client.Event{Action: "create", Record: client.Record{"id": "t1"}})
	if got.Action != "create" || got.Record["id"] != "t1" {
		t.Fatalf("event not delivered: %+v", got)
	}
}

func TestSubscribeMapsRecordFields(t *testing.T) {
	c := newStubClient()
	r := NewRegistry(c, WithFieldMapper(mapper.New(nil)))

	var got client.Event
	if _, err := r.Subscribe("tasks", func(ev client.Event) { got = ev }, ""); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	c.push("tasks", client.TopicWildcard, client.Event{Action: "update", Record: client.Record{"user_name": "u1"}})
	if got.Record["userName"] != "u1" {
		t.Fatalf("record fields not translated: %+v", got.Record)
	}
}

func TestSubscribeSameKeyReplaces(t *testing.T) {
	c := newStubClient()
	r := NewRegistry(c)

	first := 0
	if _, err := r.Subscribe("tasks", func(client.Event) { first++ }, "status = 'active'"); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	second := 0
	if _, err := r.Subscribe("tasks", func(client.Event) { second++ }, "status = 'active'"); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	if stats := r.Stats(); stats.Total != 1 {
		t.Fatalf("same key must replace, got %d active", stats.Total)
	}
	subs, cancels := c.counts()
	if subs != 2 || cancels != 1 {
		t.Fatalf("expected old subscription torn down: subs=%d cancels=%d", subs, cancels)
	}

	c.push("tasks", "status = 'active'", client.Event{Action: "create"})
	if first != 0 || second != 1 {
		t.Fatalf("replaced callback still live: first=%d second=%d", first, second)
	}
}

func TestDistinctFiltersCoexist(t *testing.T) {
	c := newStubClient()
	r := NewRegistry(c)

	if _, err := r.Subscribe("tasks", func(client.Event) {}, "status = 'active'"); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	if _, err := r.Subscribe("tasks", func(client.Event) {}, "status = 'done'"); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	if got := r.ActiveCount("tasks"); got != 2 {
		t.Fatalf("distinct filters must coexist, got %d", got)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	c := newStubClient()
	r := NewRegistry(c)

	cancel, err := r.Subscribe("tasks", func(client.Event) {}, "")
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	if err := cancel(); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if err := cancel(); err != nil {
		t.Fatalf("second cancel failed: %v", err)
	}

	if _, cancels := c.counts(); cancels != 1 {
		t.Fatalf("underlying cancel must run once, ran %d times", cancels)
	}
}

func TestStaleCancelDoesNotRemoveReplacement(t *testing.T) {
	c := newStubClient()
	r := NewRegistry(c)

	cancelFirst, err := r.Subscribe("tasks", func(client.Event) {}, "")
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	if _, err := r.Subscribe("tasks", func(client.Event) {}, ""); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	if err := cancelFirst(); err != nil {
		t.Fatalf("stale cancel failed: %v", err)
	}
	if stats := r.Stats(); stats.Total != 1 {
		t.Fatalf("stale cancel removed the replacement, got %d active", stats.Total)
	}
}

func TestUnsubscribeCollection(t *testing.T) {
	c := newStubClient()
	r := NewRegistry(c)

	mustSubscribe(t, r, "tasks", "")
	mustSubscribe(t, r, "tasks", "status = 'active'")
	mustSubscribe(t, r, "projects", "")

	r.UnsubscribeCollection("tasks")

	if got := r.ActiveCount("tasks"); got != 0 {
		t.Fatalf("tasks subscriptions survived: %d", got)
	}
	if got := r.ActiveCount("projects"); got != 1 {
		t.Fatalf("other collections must be untouched: %d", got)
	}
}

func TestUnsubscribeAllIsIdempotent(t *testing.T) {
	c := newStubClient()
	r := NewRegistry(c)

	mustSubscribe(t, r, "tasks", "")
	mustSubscribe(t, r, "projects", "")

	r.UnsubscribeAll()
	r.UnsubscribeAll()

	if stats := r.Stats(); stats.Total != 0 {
		t.Fatalf("subscriptions survived: %d", stats.Total)
	}
	if _, cancels := c.counts(); cancels != 2 {
		t.Fatalf("expected 2 cancels, got %d", cancels)
	}
}

func TestUnsubscribeAllReentrant(t *testing.T) {
	lc := &stubLifecycle{}
	c := newStubClient()
	r := NewRegistry(c, WithLifecycle(lc))

	mustSubscribe(t, r, "tasks", "")

	// Teardown of the last subscription fires the terminate signal, which
	// calls back into UnsubscribeAll. The nested call must be a no-op rather
	// than a deadlock or a double cancel.
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.mu.Lock()
		e := &entry{collection: "tasks", topic: client.TopicWildcard, cancel: func() error {
			lc.terminate()
			return nil
		}}
		r.entries["tasks::reentrant"] = e
		r.mu.Unlock()
		r.UnsubscribeAll()
	}()
	<-done

	if stats := r.Stats(); stats.Total != 0 {
		t.Fatalf("subscriptions survived re-entrant teardown: %d", stats.Total)
	}
}

func TestPauseAndResume(t *testing.T) {
	c := newStubClient()
	r := NewRegistry(c)

	mustSubscribe(t, r, "tasks", "status = 'active'")
	mustSubscribe(t, r, "projects", "")

	r.Pause()

	stats := r.Stats()
	if stats.Total != 0 || stats.Paused != 2 {
		t.Fatalf("after pause: total=%d paused=%d", stats.Total, stats.Paused)
	}
	if _, cancels := c.counts(); cancels != 2 {
		t.Fatalf("pause must tear down network subscriptions, got %d cancels", cancels)
	}

	resumed := r.Resume()
	if len(resumed) != 2 {
		t.Fatalf("resume must report what was paused, got %d", len(resumed))
	}
	if resumed[0].Collection != "projects" || resumed[1].Collection != "tasks" {
		t.Fatalf("resume order not deterministic: %+v", resumed)
	}
	if stats := r.Stats(); stats.Paused != 0 {
		t.Fatalf("resume must clear paused bookkeeping, got %d", stats.Paused)
	}
}

func TestResubscribeClearsPausedEntry(t *testing.T) {
	c := newStubClient()
	r := NewRegistry(c)

	mustSubscribe(t, r, "tasks", "")
	r.Pause()
	mustSubscribe(t, r, "tasks", "")

	if paused := r.Paused(); len(paused) != 0 {
		t.Fatalf("re-subscribing must clear the paused entry: %+v", paused)
	}
}

func TestLifecycleSignals(t *testing.T) {
	lc := &stubLifecycle{}
	c := newStubClient()
	r := NewRegistry(c, WithLifecycle(lc))

	mustSubscribe(t, r, "tasks", "")

	lc.background()
	if stats := r.Stats(); stats.Total != 0 || stats.Paused != 1 {
		t.Fatalf("background must pause: total=%d paused=%d", stats.Total, stats.Paused)
	}

	lc.foreground()
	if stats := r.Stats(); stats.Paused != 0 {
		t.Fatalf("foreground must clear paused bookkeeping: %d", stats.Paused)
	}

	mustSubscribe(t, r, "tasks", "")
	lc.terminate()
	if stats := r.Stats(); stats.Total != 0 {
		t.Fatalf("terminate must unsubscribe everything: %d", stats.Total)
	}
}

func TestCallbackPanicIsContained(t *testing.T) {
	c := newStubClient()
	r := NewRegistry(c)

	if _, err := r.Subscribe("tasks", func(client.Event) { panic("boom") }, ""); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	// Must not propagate out of the push.
	c.push("tasks", client.TopicWildcard, client.Event{Action: "create"})

	if stats := r.Stats(); stats.Total != 1 {
		t.Fatalf("panicking callback must not tear down the subscription: %d", stats.Total)
	}
}

func TestDestroyDetachesLifecycle(t *testing.T) {
	lc := &stubLifecycle{}
	c := newStubClient()
	r := NewRegistry(c, WithLifecycle(lc))

	mustSubscribe(t, r, "tasks", "")
	r.Destroy()

	if stats := r.Stats(); stats.Total != 0 {
		t.Fatalf("destroy must unsubscribe everything: %d", stats.Total)
	}
	if lc.terminate != nil || lc.background != nil || lc.foreground != nil {
		t.Fatal("destroy must unregister lifecycle hooks")
	}
}

func mustSubscribe(t *testing.T, r *Registry, collection, filter string) {
	t.Helper()
	if _, err := r.Subscribe(collection, func(client.Event) {}, filter); err != nil {
		t.Fatalf("subscribe %s failed: %v", collection, err)
	}
}
