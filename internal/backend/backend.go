// Package backend selects where books live: the hosted Supabase project or
// the local SQLite table with covers on disk.
package backend

import (
	"fmt"
	"log"
	"net/url"

	"github.com/mrlokans/flashshelf/internal/config"
	"github.com/mrlokans/flashshelf/internal/covers"
	"github.com/mrlokans/flashshelf/internal/database"
	"github.com/mrlokans/flashshelf/internal/database/books"
	"github.com/mrlokans/flashshelf/internal/remote"
	"github.com/mrlokans/flashshelf/internal/remote/supabase"
)

// Backend bundles the three remote capabilities.
type Backend struct {
	Kind   config.BackendKind
	Store  remote.BookStore
	Feed   remote.ChangeFeed
	Bucket remote.Bucket

	// CoversDir is set for the local backend so the router can serve it.
	CoversDir string
	// Origin is the hosted project origin the browser loads covers from.
	Origin string
}

// Open builds the backend named by cfg.Backend.Kind. db is only used by the
// local backend.
func Open(cfg *config.Config, db *database.Database) (*Backend, error) {
	switch cfg.Backend.Kind {
	case config.BackendSupabase, "":
		client := supabase.NewClient(cfg.Supabase.URL, cfg.Supabase.AnonKey, supabase.Options{
			Table:   cfg.Supabase.Table,
			Schema:  cfg.Supabase.Schema,
			Bucket:  cfg.Supabase.Bucket,
			Channel: cfg.Supabase.Channel,
		})
		log.Printf("Backend: Supabase project %s (table %s)", cfg.Supabase.URL, cfg.Supabase.Table)
		return &Backend{
			Kind:   config.BackendSupabase,
			Store:  client,
			Feed:   client,
			Bucket: client,
			Origin: origin(cfg.Supabase.URL),
		}, nil

	case config.BackendLocal:
		if db == nil {
			return nil, fmt.Errorf("local backend needs a database")
		}
		store, err := covers.NewStore(cfg.Covers.Dir, cfg.Covers.BaseURL)
		if err != nil {
			return nil, err
		}
		feed := books.NewFeed()
		log.Printf("Backend: local SQLite, covers in %s", cfg.Covers.Dir)
		return &Backend{
			Kind:      config.BackendLocal,
			Store:     books.NewRepository(db.DB, feed),
			Feed:      feed,
			Bucket:    store,
			CoversDir: store.Dir(),
		}, nil

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend.Kind)
	}
}

func origin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
