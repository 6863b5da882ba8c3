// Package remote defines the contract between the shelf and whatever hosts
// the books table: row CRUD, a change-event stream and a cover bucket.
//
// Two implementations exist: remote/supabase (hosted PostgREST, Realtime and
// Storage) and database (local SQLite with an in-process change feed).
package remote

import (
	"context"
	"errors"
	"io"

	"github.com/mrlokans/flashshelf/internal/entities"
)

// ErrFeedClosed is returned by consumers when the change feed ended without
// the caller cancelling it.
var ErrFeedClosed = errors.New("change feed closed")

// ErrBookNotFound is returned by stores that can tell an update or delete
// targeted a missing row. PostgREST cannot, so the hosted store never does.
var ErrBookNotFound = errors.New("book not found")

// BookStore performs row-level operations on the books table.
type BookStore interface {
	// List returns every row ordered by created_at, newest first.
	List(ctx context.Context) ([]entities.Book, error)
	Insert(ctx context.Context, book entities.NewBook) error
	Update(ctx context.Context, id string, update entities.BookUpdate) error
	Delete(ctx context.Context, id string) error
}

// ChangeFeed delivers row change events for the books table in arrival order.
// The returned channel is closed when ctx is done or the connection drops.
type ChangeFeed interface {
	Subscribe(ctx context.Context) (<-chan ChangeEvent, error)
}

// Bucket stores cover images and returns their public URL.
type Bucket interface {
	Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error)
}

type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// ChangeEvent is one realtime notification. Record is set for inserts and
// updates; OldID identifies the removed row for deletes.
type ChangeEvent struct {
	Type   ChangeType    `json:"type"`
	Record entities.Book `json:"record"`
	OldID  string        `json:"old_id,omitempty"`
}

// ID returns the identifier of the row the event refers to.
func (e ChangeEvent) ID() string {
	if e.Type == ChangeDelete && e.OldID != "" {
		return e.OldID
	}
	return e.Record.ID
}
