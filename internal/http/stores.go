package http

import (
	"context"

	"github.com/mrlokans/flashshelf/internal/addbook"
	"github.com/mrlokans/flashshelf/internal/entities"
	"github.com/mrlokans/flashshelf/internal/library"
)

// BookService is the part of library.Library the book routes use.
type BookService interface {
	Snapshot() library.State
	Watch(ctx context.Context) <-chan library.State
	UpdateBook(ctx context.Context, id string, update entities.BookUpdate) error
	DeleteBook(ctx context.Context, id string) error
}

// FormRegistry hands out add-book forms by id.
type FormRegistry interface {
	Open() *addbook.Form
	Get(id string) (*addbook.Form, bool)
	Close(id string) bool
}

var _ BookService = (*library.Library)(nil)
