// Package client declares the transport contract this layer consumes. The
// wire protocol itself (HTTP transport, auth token storage, realtime
// handshake) lives outside this repository; the host application injects an
// implementation of Client.
package client

import "context"

// Record is a raw payload as the transport sees it, keyed by storage field
// names.
type Record = map[string]any

// TopicWildcard subscribes to every record of a collection.
const TopicWildcard = "*"

// ListParams carry the optional query parts of a paged listing.
type ListParams struct {
	Sort   string
	Filter string
	Expand string
}

// GetParams carry the optional query parts of a single-record fetch.
type GetParams struct {
	Expand string
}

// ListResult is one page of raw records plus paging totals.
type ListResult struct {
	Page       int
	PerPage    int
	TotalItems int
	TotalPages int
	Items      []Record
}

// Event is one realtime push notification.
type Event struct {
	// Action is the store's change kind: "create", "update" or "delete".
	Action string
	Record Record
}

// SubscriptionHandler consumes realtime events for one subscription.
type SubscriptionHandler func(Event)

// UnsubscribeFunc tears down one realtime subscription. Implementations must
// tolerate repeated calls.
type UnsubscribeFunc func() error

// Client exposes collection-scoped CRUD and subscribe primitives. Errors
// surfaced by implementations should be *ResponseError where a store response
// (or the failure to obtain one) is involved, so classification can read the
// status code.
type Client interface {
	GetList(ctx context.Context, collection string, page, perPage int, params ListParams) (ListResult, error)
	GetOne(ctx context.Context, collection, id string, params GetParams) (Record, error)
	GetFirstListItem(ctx context.Context, collection, filter string, params GetParams) (Record, error)
	Create(ctx context.Context, collection string, data Record) (Record, error)
	Update(ctx context.Context, collection, id string, data Record) (Record, error)
	Delete(ctx context.Context, collection, id string) error

	// Subscribe registers a realtime handler for the collection, scoped to a
	// filter string or TopicWildcard, and returns the teardown function.
	Subscribe(collection, topic string, handler SubscriptionHandler) (UnsubscribeFunc, error)
}
