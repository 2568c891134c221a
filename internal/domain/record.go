package domain

import "time"

// BaseRecord carries the identity fields every stored record has. The store
// owns these; the service layer never mutates them.
type BaseRecord struct {
	ID      string    `json:"id"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}
