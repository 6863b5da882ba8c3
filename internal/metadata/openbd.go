package metadata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// OpenBDClient queries openBD, which covers Japanese publications well.
// It has no category data.
type OpenBDClient struct {
	baseURL string
	client  *http.Client
}

// NewOpenBDClient creates a client for https://api.openbd.jp.
func NewOpenBDClient(timeout time.Duration) *OpenBDClient {
	return &OpenBDClient{
		baseURL: "https://api.openbd.jp",
		client:  newHTTPClient(timeout),
	}
}

func (c *OpenBDClient) Name() string { return "openbd" }

// LookupISBN returns ErrNotFound when openBD answers with a null entry.
func (c *OpenBDClient) LookupISBN(ctx context.Context, isbn string) (*Result, error) {
	endpoint := fmt.Sprintf("%s/v1/get?isbn=%s", c.baseURL, url.QueryEscape(strings.TrimSpace(isbn)))

	var entries []*openBDEntry
	if err := getJSON(ctx, c.client, endpoint, &entries); err != nil {
		return nil, err
	}
	if len(entries) == 0 || entries[0] == nil {
		return nil, ErrNotFound
	}

	summary := entries[0].Summary
	return &Result{
		Title:    summary.Title,
		CoverURL: summary.Cover,
		Source:   c.Name(),
	}, nil
}

type openBDEntry struct {
	Summary struct {
		ISBN      string `json:"isbn"`
		Title     string `json:"title"`
		Author    string `json:"author"`
		Publisher string `json:"publisher"`
		Cover     string `json:"cover"`
	} `json:"summary"`
}
