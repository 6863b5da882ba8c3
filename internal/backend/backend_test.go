package backend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/flashshelf/internal/config"
	"github.com/mrlokans/flashshelf/internal/database"
	"github.com/mrlokans/flashshelf/internal/entities"
	"github.com/mrlokans/flashshelf/internal/remote"
	"github.com/mrlokans/flashshelf/internal/remote/supabase"
)

func TestOpen_Supabase(t *testing.T) {
	cfg := &config.Config{
		Supabase: config.Supabase{URL: "https://abc.supabase.co/", AnonKey: "key"},
	}

	b, err := Open(cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, config.BackendSupabase, b.Kind)
	assert.IsType(t, &supabase.Client{}, b.Store)
	assert.Equal(t, "https://abc.supabase.co", b.Origin)
	assert.Empty(t, b.CoversDir)
}

func TestOpen_Local(t *testing.T) {
	dir := t.TempDir()
	db, err := database.NewDatabase(filepath.Join(dir, "local.db"))
	require.NoError(t, err)
	defer db.Close()

	cfg := &config.Config{
		Backend: config.Backend{Kind: config.BackendLocal},
		Covers:  config.Covers{Dir: filepath.Join(dir, "covers"), BaseURL: "/covers"},
	}
	b, err := Open(cfg, db)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "covers"), b.CoversDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := b.Feed.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, b.Store.Insert(ctx, entities.NewBook{Title: "Sample"}))

	select {
	case event := <-events:
		assert.Equal(t, remote.ChangeInsert, event.Type)
		assert.Equal(t, "Sample", event.Record.Title)
	case <-time.After(time.Second):
		t.Fatal("no insert event from the local feed")
	}
}

func TestOpen_LocalNeedsDatabase(t *testing.T) {
	_, err := Open(&config.Config{Backend: config.Backend{Kind: config.BackendLocal}}, nil)
	assert.Error(t, err)
}

func TestOpen_Unknown(t *testing.T) {
	_, err := Open(&config.Config{Backend: config.Backend{Kind: "firebase"}}, nil)
	assert.Error(t, err)
}
