package metadata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// GoogleBooksClient queries the Google Books volumes API. The API key is optional.
type GoogleBooksClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewGoogleBooksClient creates a client for https://www.googleapis.com/books.
func NewGoogleBooksClient(apiKey string, timeout time.Duration) *GoogleBooksClient {
	return &GoogleBooksClient{
		baseURL: "https://www.googleapis.com",
		apiKey:  apiKey,
		client:  newHTTPClient(timeout),
	}
}

func (c *GoogleBooksClient) Name() string { return "google_books" }

// LookupISBN uses the first volume returned for isbn:<isbn>.
func (c *GoogleBooksClient) LookupISBN(ctx context.Context, isbn string) (*Result, error) {
	query := url.Values{}
	query.Set("q", "isbn:"+strings.TrimSpace(isbn))
	if c.apiKey != "" {
		query.Set("key", c.apiKey)
	}
	endpoint := fmt.Sprintf("%s/books/v1/volumes?%s", c.baseURL, query.Encode())

	var response googleVolumes
	if err := getJSON(ctx, c.client, endpoint, &response); err != nil {
		return nil, err
	}
	if len(response.Items) == 0 {
		return nil, ErrNotFound
	}

	info := response.Items[0].VolumeInfo
	return &Result{
		Title:      info.Title,
		CoverURL:   info.ImageLinks.Thumbnail,
		Categories: info.Categories,
		Source:     c.Name(),
	}, nil
}

type googleVolumes struct {
	TotalItems int `json:"totalItems"`
	Items      []struct {
		VolumeInfo struct {
			Title      string   `json:"title"`
			Authors    []string `json:"authors"`
			Categories []string `json:"categories"`
			ImageLinks struct {
				SmallThumbnail string `json:"smallThumbnail"`
				Thumbnail      string `json:"thumbnail"`
			} `json:"imageLinks"`
		} `json:"volumeInfo"`
	} `json:"items"`
}
