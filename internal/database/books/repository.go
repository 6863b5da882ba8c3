// Package books is the local books table: a remote.BookStore over GORM that
// publishes a remote.ChangeEvent to its Feed after every successful write.
//
// # Usage
//
//	feed := books.NewFeed()
//	repo := books.NewRepository(db, feed)
//	events, err := feed.Subscribe(ctx)
package books

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/mrlokans/flashshelf/internal/entities"
	"github.com/mrlokans/flashshelf/internal/remote"
)

// ErrBookNotFound is returned when an update or delete targets a missing id.
var ErrBookNotFound = remote.ErrBookNotFound

// Repository handles all book database operations.
type Repository struct {
	db   *gorm.DB
	feed *Feed
}

var _ remote.BookStore = (*Repository)(nil)

// NewRepository creates a new books repository. feed may be nil.
func NewRepository(db *gorm.DB, feed *Feed) *Repository {
	return &Repository{db: db, feed: feed}
}

func (r *Repository) publish(event remote.ChangeEvent) {
	if r.feed != nil {
		r.feed.Publish(event)
	}
}

// List returns every book, newest first.
func (r *Repository) List(ctx context.Context) ([]entities.Book, error) {
	books := []entities.Book{}
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&books).Error
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

// Insert stores a new row; id and created_at are assigned here.
func (r *Repository) Insert(ctx context.Context, book entities.NewBook) error {
	tags := book.Tags
	if tags == nil {
		tags = []string{}
	}
	row := entities.Book{
		ISBN:     book.ISBN,
		Title:    book.Title,
		CoverURL: book.CoverURL,
		Tags:     tags,
		Rating:   book.Rating,
		Comment:  book.Comment,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert book: %w", err)
	}

	r.publish(remote.ChangeEvent{Type: remote.ChangeInsert, Record: row})
	return nil
}

// Update applies the set fields of update to the row with the given id.
func (r *Repository) Update(ctx context.Context, id string, update entities.BookUpdate) error {
	var row entities.Book
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookNotFound
			}
			return err
		}
		update.ApplyTo(&row)
		return tx.Save(&row).Error
	})
	if err != nil {
		return fmt.Errorf("update book %s: %w", id, err)
	}

	r.publish(remote.ChangeEvent{Type: remote.ChangeUpdate, Record: row})
	return nil
}

// Delete removes the row with the given id.
func (r *Repository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&entities.Book{})
	if result.Error != nil {
		return fmt.Errorf("delete book %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("delete book %s: %w", id, ErrBookNotFound)
	}

	r.publish(remote.ChangeEvent{Type: remote.ChangeDelete, Record: entities.Book{ID: id}, OldID: id})
	return nil
}
