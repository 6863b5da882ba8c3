package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/mrlokans/flashshelf/internal/entities"
)

func (c *Client) tableURL(query url.Values) string {
	u := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, url.PathEscape(c.table))
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// do sends a PostgREST request and decodes a JSON body into out when non-nil.
func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setAuth(req)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("Prefer", "return=minimal")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// List selects every book, newest first.
func (c *Client) List(ctx context.Context) ([]entities.Book, error) {
	query := url.Values{}
	query.Set("select", "*")
	query.Set("order", "created_at.desc")

	var books []entities.Book
	if err := c.do(ctx, http.MethodGet, c.tableURL(query), nil, &books); err != nil {
		return nil, fmt.Errorf("select %s: %w", c.table, err)
	}
	if books == nil {
		books = []entities.Book{}
	}
	return books, nil
}

// Insert writes a single row with exactly the supplied fields.
func (c *Client) Insert(ctx context.Context, book entities.NewBook) error {
	if book.Tags == nil {
		book.Tags = []string{}
	}
	if err := c.do(ctx, http.MethodPost, c.tableURL(nil), []entities.NewBook{book}, nil); err != nil {
		return fmt.Errorf("insert into %s: %w", c.table, err)
	}
	return nil
}

// Update patches the row with the given id.
func (c *Client) Update(ctx context.Context, id string, update entities.BookUpdate) error {
	if err := c.do(ctx, http.MethodPatch, c.tableURL(idFilter(id)), update, nil); err != nil {
		return fmt.Errorf("update %s %s: %w", c.table, id, err)
	}
	return nil
}

// Delete removes the row with the given id.
func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, c.tableURL(idFilter(id)), nil, nil); err != nil {
		return fmt.Errorf("delete from %s %s: %w", c.table, id, err)
	}
	return nil
}

func idFilter(id string) url.Values {
	query := url.Values{}
	query.Set("id", "eq."+id)
	return query
}
