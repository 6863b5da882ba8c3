package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrNotFound means the provider answered but knows no book for the ISBN.
var ErrNotFound = errors.New("book not found")

const userAgent = "FlashShelf/1.0"

// Result is what a lookup contributes to the add-book form.
type Result struct {
	Title      string   `json:"title"`
	CoverURL   string   `json:"cover_url"`
	Categories []string `json:"categories,omitempty"`
	Source     string   `json:"source"`
}

// Provider resolves an ISBN to book metadata.
type Provider interface {
	Name() string
	LookupISBN(ctx context.Context, isbn string) (*Result, error)
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// getJSON performs a GET and decodes the body into out. A 404 maps to ErrNotFound.
func getJSON(ctx context.Context, client *http.Client, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", req.URL.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// JoinCategories renders categories as the comma-separated tag text the form edits.
func JoinCategories(categories []string) string {
	return strings.Join(categories, ", ")
}
