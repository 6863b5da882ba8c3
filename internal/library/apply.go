package library

import (
	"github.com/mrlokans/flashshelf/internal/entities"
	"github.com/mrlokans/flashshelf/internal/remote"
)

// Apply returns the collection that results from applying event to books.
// books is never modified; a new slice is returned whenever anything changes.
//
// INSERT prepends, or replaces in place when the id is already present.
// UPDATE replaces in place and ignores unknown ids. DELETE drops the id.
func Apply(books []entities.Book, event remote.ChangeEvent) []entities.Book {
	id := event.ID()
	idx := indexOf(books, id)

	switch event.Type {
	case remote.ChangeInsert:
		if idx >= 0 {
			return replaceAt(books, idx, event.Record)
		}
		next := make([]entities.Book, 0, len(books)+1)
		next = append(next, event.Record)
		return append(next, books...)

	case remote.ChangeUpdate:
		if idx < 0 {
			return books
		}
		return replaceAt(books, idx, event.Record)

	case remote.ChangeDelete:
		if idx < 0 {
			return books
		}
		next := make([]entities.Book, 0, len(books)-1)
		next = append(next, books[:idx]...)
		return append(next, books[idx+1:]...)
	}
	return books
}

// ApplyAll folds events over books in order.
func ApplyAll(books []entities.Book, events []remote.ChangeEvent) []entities.Book {
	for _, event := range events {
		books = Apply(books, event)
	}
	return books
}

func indexOf(books []entities.Book, id string) int {
	if id == "" {
		return -1
	}
	for i := range books {
		if books[i].ID == id {
			return i
		}
	}
	return -1
}

func replaceAt(books []entities.Book, idx int, book entities.Book) []entities.Book {
	next := make([]entities.Book, len(books))
	copy(next, books)
	next[idx] = book
	return next
}

// FilterByTag returns the books carrying tag. An empty tag returns books as is.
func FilterByTag(books []entities.Book, tag string) []entities.Book {
	if tag == "" {
		return books
	}
	filtered := []entities.Book{}
	for _, book := range books {
		if book.HasTag(tag) {
			filtered = append(filtered, book)
		}
	}
	return filtered
}
