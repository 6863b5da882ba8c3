// Package database owns the local SQLite file.
//
// The file always holds the unlock sessions (see auth.NewSessionManager).
// With BACKEND=local it also holds the books table, served by the books
// sub-package:
//
//	database/
//	├── database.go      # Connection setup and migrations
//	└── books/           # remote.BookStore + remote.ChangeFeed over GORM
//
// # Usage
//
//	db, err := database.NewDatabase("./flashshelf.db")
//	store := books.NewRepository(db.DB, books.NewFeed())
//	rows, err := store.List(ctx)
package database
