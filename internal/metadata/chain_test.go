package metadata

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/flashshelf/internal/config"
)

type stubProvider struct {
	name   string
	result *Result
	err    error
	calls  int
	isbn   string
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) LookupISBN(ctx context.Context, isbn string) (*Result, error) {
	s.calls++
	s.isbn = isbn
	return s.result, s.err
}

func TestChain_FirstProviderWins(t *testing.T) {
	first := &stubProvider{name: "openbd", result: &Result{Title: "A", Source: "openbd"}}
	second := &stubProvider{name: "google_books", result: &Result{Title: "B"}}

	result, err := NewChain(first, second).LookupISBN(context.Background(), " 9784101010014\n")
	require.NoError(t, err)
	assert.Equal(t, "A", result.Title)
	assert.Equal(t, "9784101010014", first.isbn)
	assert.Equal(t, 0, second.calls)
}

func TestChain_FallsBackOnNotFound(t *testing.T) {
	first := &stubProvider{name: "openbd", err: ErrNotFound}
	second := &stubProvider{name: "google_books", result: &Result{Title: "B", Categories: []string{"Fiction"}}}

	result, err := NewChain(first, second).LookupISBN(context.Background(), "9780000000000")
	require.NoError(t, err)
	assert.Equal(t, "B", result.Title)
	assert.Equal(t, []string{"Fiction"}, result.Categories)
}

func TestChain_SkipsUntitledResult(t *testing.T) {
	first := &stubProvider{name: "openbd", result: &Result{CoverURL: "x"}}
	second := &stubProvider{name: "google_books", result: &Result{Title: "B"}}

	result, err := NewChain(first, second).LookupISBN(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "B", result.Title)
}

func TestChain_AllNotFound(t *testing.T) {
	chain := NewChain(
		&stubProvider{name: "openbd", err: ErrNotFound},
		&stubProvider{name: "google_books", err: ErrNotFound},
	)

	_, err := chain.LookupISBN(context.Background(), "9780000000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChain_TransportErrorContinues(t *testing.T) {
	boom := errors.New("connection reset")
	first := &stubProvider{name: "openbd", err: boom}
	second := &stubProvider{name: "google_books", result: &Result{Title: "B"}}

	result, err := NewChain(first, second).LookupISBN(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "B", result.Title)
}

func TestChain_TransportErrorReportedWhenNothingFound(t *testing.T) {
	boom := errors.New("connection reset")
	chain := NewChain(
		&stubProvider{name: "openbd", err: boom},
		&stubProvider{name: "google_books", err: ErrNotFound},
	)

	_, err := chain.LookupISBN(context.Background(), "1")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestChain_CancelledContext(t *testing.T) {
	first := &stubProvider{name: "openbd", result: &Result{Title: "A"}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewChain(first).LookupISBN(ctx, "1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, first.calls)
}

func TestChain_NilProvidersSkipped(t *testing.T) {
	chain := NewChain(nil, &stubProvider{name: "google_books", err: ErrNotFound}, nil)
	assert.Equal(t, []string{"google_books"}, chain.Providers())
}

func TestNewDefaultChain(t *testing.T) {
	chain := NewDefaultChain(config.Metadata{})
	assert.Equal(t, []string{"openbd", "google_books"}, chain.Providers())

	chain = NewDefaultChain(config.Metadata{OpenLibraryFallback: true})
	assert.Equal(t, []string{"openbd", "google_books", "openlibrary"}, chain.Providers())
}
