package metadata

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/mrlokans/flashshelf/internal/config"
)

// Chain asks providers in priority order and keeps the first result that has
// a title.
type Chain struct {
	providers []Provider
}

var _ Provider = (*Chain)(nil)

// NewChain creates a chain; nil providers are skipped.
func NewChain(providers ...Provider) *Chain {
	chain := &Chain{}
	for _, p := range providers {
		if p != nil {
			chain.providers = append(chain.providers, p)
		}
	}
	return chain
}

func (c *Chain) Name() string { return "chain" }

// Providers returns the provider names in lookup order.
func (c *Chain) Providers() []string {
	names := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		names = append(names, p.Name())
	}
	return names
}

// LookupISBN returns ErrNotFound only when every provider said so. If any
// provider failed outright and none produced a title, the last failure is
// returned instead.
func (c *Chain) LookupISBN(ctx context.Context, isbn string) (*Result, error) {
	isbn = strings.TrimSpace(isbn)

	var lastErr error
	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := p.LookupISBN(ctx, isbn)
		switch {
		case err == nil && result != nil && result.Title != "":
			return result, nil
		case err == nil, errors.Is(err, ErrNotFound):
			continue
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			log.Printf("[metadata] %s lookup for %s failed: %v", p.Name(), isbn, err)
			lastErr = err
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrNotFound
}

// NewDefaultChain builds the lookup order used by the service: openBD first,
// then Google Books, then OpenLibrary when enabled.
func NewDefaultChain(cfg config.Metadata) *Chain {
	var openLibrary Provider
	if cfg.OpenLibraryFallback {
		openLibrary = NewOpenLibraryClient(cfg.Timeout)
	}
	return NewChain(
		NewOpenBDClient(cfg.Timeout),
		NewGoogleBooksClient(cfg.GoogleBooksAPIKey, cfg.Timeout),
		openLibrary,
	)
}
