package storekit

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rpattn/storekit/internal/client"
)

type task struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	DueDate string `json:"dueDate,omitempty"`
}

// memoryClient is an in-memory transport backing the facade tests.
type memoryClient struct {
	records   map[string]client.Record
	listCalls int
	failWith  error
}

func newMemoryClient(records ...client.Record) *memoryClient {
	c := &memoryClient{records: make(map[string]client.Record)}
	for _, r := range records {
		c.records[r["id"].(string)] = r
	}
	return c
}

func (c *memoryClient) all() []client.Record {
	items := make([]client.Record, 0, len(c.records))
	for _, r := range c.records {
		items = append(items, r)
	}
	return items
}

func (c *memoryClient) GetList(ctx context.Context, collection string, page, perPage int, params client.ListParams) (client.ListResult, error) {
	c.listCalls++
	if c.failWith != nil {
		return client.ListResult{}, c.failWith
	}
	items := c.all()
	return client.ListResult{Page: page, PerPage: perPage, TotalItems: len(items), TotalPages: 1, Items: items}, nil
}

func (c *memoryClient) GetOne(ctx context.Context, collection, id string, params client.GetParams) (client.Record, error) {
	if r, ok := c.records[id]; ok {
		return r, nil
	}
	return nil, &client.ResponseError{Status: 404}
}

func (c *memoryClient) GetFirstListItem(ctx context.Context, collection, filter string, params client.GetParams) (client.Record, error) {
	for _, r := range c.records {
		return r, nil
	}
	return nil, &client.ResponseError{Status: 404}
}

func (c *memoryClient) Create(ctx context.Context, collection string, data client.Record) (client.Record, error) {
	if data["id"] == nil || data["id"] == "" {
		data["id"] = "generated"
	}
	c.records[data["id"].(string)] = data
	return data, nil
}

func (c *memoryClient) Update(ctx context.Context, collection, id string, data client.Record) (client.Record, error) {
	if _, ok := c.records[id]; !ok {
		return nil, &client.ResponseError{Status: 404}
	}
	data["id"] = id
	c.records[id] = data
	return data, nil
}

func (c *memoryClient) Delete(ctx context.Context, collection, id string) error {
	if _, ok := c.records[id]; !ok {
		return &client.ResponseError{Status: 404}
	}
	delete(c.records, id)
	return nil
}

func (c *memoryClient) Subscribe(collection, topic string, handler client.SubscriptionHandler) (client.UnsubscribeFunc, error) {
	return func() error { return nil }, nil
}

func TestNewRequiresClient(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("expected error for nil client")
	}
}

func TestCollectionRoundTrip(t *testing.T) {
	mem := newMemoryClient()
	store, err := New(mem)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()

	tasks := NewCollection[task](store, "tasks")

	created, err := tasks.Create(context.Background(), task{Title: "write tests", DueDate: "2024-03-01"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.ID == "" {
		t.Fatal("created record has no id")
	}
	if mem.records[created.ID]["due_date"] != "2024-03-01" {
		t.Fatalf("stored payload must use storage field names: %#v", mem.records[created.ID])
	}

	fetched, err := tasks.GetOne(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if fetched.DueDate != "2024-03-01" {
		t.Fatalf("fetched = %+v", fetched)
	}

	if err := tasks.Delete(context.Background(), created.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := tasks.GetOne(context.Background(), created.ID); !IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestConfigDefaultsFlowIntoCollections(t *testing.T) {
	dir := t.TempDir()
	yaml := `
list:
  per_page: 5
collections:
  tasks:
    sort: "-created"
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	mem := newMemoryClient()
	store, err := New(mem, WithConfigPath(dir))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()

	tasks := NewCollection[task](store, "tasks")
	result, err := tasks.List(context.Background(), ListOptions{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if result.PerPage != 5 {
		t.Fatalf("configured page size not applied: %d", result.PerPage)
	}
}

func TestWithRetryUsesStorePolicy(t *testing.T) {
	mem := newMemoryClient()
	store, err := New(mem, WithRetryPolicy(2, time.Millisecond))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()

	attempts := 0
	got, err := WithRetry(context.Background(), store, func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 2 {
			return "", &client.ResponseError{Status: 503}
		}
		return "ok", nil
	})
	if err != nil || got != "ok" {
		t.Fatalf("got %q, %v", got, err)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d", attempts)
	}
}

func TestClassifyAndNetworkProbe(t *testing.T) {
	offline := true
	store, err := New(newMemoryClient(), WithOfflineProbe(func() bool { return offline }))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()

	svcErr := store.Classify(&client.ResponseError{Status: 500})
	if svcErr.Kind != KindNetwork {
		t.Fatalf("offline failures must classify as network, got %s", svcErr.Kind)
	}

	offline = false
	if store.IsNetworkError(&client.ResponseError{Status: 500}) {
		t.Fatal("definite server response is not a network failure")
	}
}

func TestStoreSubscriptionLifecycle(t *testing.T) {
	mem := newMemoryClient()
	store, err := New(mem)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()

	tasks := NewCollection[task](store, "tasks")
	if _, err := tasks.Subscribe(func(Event) {}, nil); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	if stats := store.Stats(); stats.Total != 1 {
		t.Fatalf("active = %d", stats.Total)
	}

	store.Pause()
	if stats := store.Stats(); stats.Total != 0 || stats.Paused != 1 {
		t.Fatalf("after pause: %+v", stats)
	}
	if resumed := store.Resume(); len(resumed) != 1 || resumed[0].Collection != "tasks" {
		t.Fatalf("resumed = %+v", resumed)
	}

	if _, err := tasks.Subscribe(func(Event) {}, nil); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	store.UnsubscribeAll()
	if stats := store.Stats(); stats.Total != 0 {
		t.Fatalf("subscriptions survived: %d", stats.Total)
	}
}

func TestStoreExport(t *testing.T) {
	mem := newMemoryClient(
		client.Record{"id": "t1", "title": "first"},
		client.Record{"id": "t2", "title": "second"},
	)
	store, err := New(mem, WithExportDirectory(t.TempDir()))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()

	records := NewCollection[map[string]any](store, "tasks")
	result, err := store.Export(context.Background(), ExportRequest{
		Collection: records,
		Format:     FormatCSV,
	})
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if result.Rows != 2 {
		t.Fatalf("rows = %d", result.Rows)
	}
	if _, err := os.Stat(result.Path); err != nil {
		t.Fatalf("export file missing: %v", err)
	}
}

func TestMetricsRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	store, err := New(newMemoryClient(), WithMetricsRegisterer(reg))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()

	tasks := NewCollection[task](store, "tasks")
	if _, err := tasks.List(context.Background(), ListOptions{}); err != nil {
		t.Fatalf("list failed: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	found := false
	for _, family := range families {
		if family.GetName() == "storekit_operations_total" {
			found = true
		}
	}
	if !found {
		t.Fatal("operation counter not registered")
	}
}

func TestFilterFacade(t *testing.T) {
	f := NewFilter().
		Equals("user", "u1").
		Group(func(b *FilterBuilder) {
			b.Equals("status", "active").Group(func(n *FilterBuilder) {
				n.Equals("type", "premium").Equals("category", "special")
			})
		}).
		Build()

	if f.Empty() {
		t.Fatal("filter must not be empty")
	}
	if len(f.Groups) != 1 || len(f.Groups[0].Groups) != 1 {
		t.Fatalf("nested groups lost: %+v", f)
	}
}

func TestRecordLoaderFacade(t *testing.T) {
	mem := newMemoryClient(client.Record{"id": "t1", "title": "first"})
	store, err := New(mem)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()

	tasks := NewCollection[task](store, "tasks")
	loader := NewRecordLoader(tasks, func(t task) string { return t.ID })

	got, ok, err := loader.Load(context.Background(), "t1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !ok || got.Title != "first" {
		t.Fatalf("loaded %+v, ok=%v", got, ok)
	}
}
