package metadata

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const maxSubjects = 10

// OpenLibraryClient fetches book metadata from the OpenLibrary API.
type OpenLibraryClient struct {
	httpClient *http.Client
	baseURL    string
	coversURL  string
}

// NewOpenLibraryClient creates a new OpenLibrary API client.
func NewOpenLibraryClient(timeout time.Duration) *OpenLibraryClient {
	return &OpenLibraryClient{
		httpClient: newHTTPClient(timeout),
		baseURL:    "https://openlibrary.org",
		coversURL:  "https://covers.openlibrary.org",
	}
}

func (c *OpenLibraryClient) Name() string { return "openlibrary" }

// LookupISBN looks up an edition by ISBN. Subjects become categories.
func (c *OpenLibraryClient) LookupISBN(ctx context.Context, isbn string) (*Result, error) {
	isbn = normalizeISBN(isbn)
	if isbn == "" {
		return nil, ErrNotFound
	}

	var edition openLibraryBook
	if err := getJSON(ctx, c.httpClient, fmt.Sprintf("%s/isbn/%s.json", c.baseURL, isbn), &edition); err != nil {
		return nil, err
	}

	result := &Result{
		Title:  edition.Title,
		Source: c.Name(),
	}
	if len(edition.Covers) > 0 && edition.Covers[0] > 0 {
		result.CoverURL = fmt.Sprintf("%s/b/id/%d-L.jpg", c.coversURL, edition.Covers[0])
	} else {
		result.CoverURL = fmt.Sprintf("%s/b/isbn/%s-L.jpg", c.coversURL, isbn)
	}
	if len(edition.Subjects) > 0 {
		result.Categories = edition.Subjects
		if len(result.Categories) > maxSubjects {
			result.Categories = result.Categories[:maxSubjects]
		}
	}
	return result, nil
}

// normalizeISBN removes hyphens and spaces. Anything that is not 10 or 13
// characters long afterwards yields "".
func normalizeISBN(isbn string) string {
	isbn = strings.ReplaceAll(isbn, "-", "")
	isbn = strings.ReplaceAll(isbn, " ", "")
	isbn = strings.TrimSpace(isbn)

	if len(isbn) != 10 && len(isbn) != 13 {
		return ""
	}
	return isbn
}

type openLibraryBook struct {
	Key      string   `json:"key"`
	Title    string   `json:"title"`
	Subjects []string `json:"subjects"`
	Covers   []int    `json:"covers"`
}
