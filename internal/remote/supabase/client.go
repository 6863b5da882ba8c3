// Package supabase talks to a hosted Supabase project: PostgREST for rows,
// Realtime (Phoenix channels over WebSocket) for change events and Storage
// for cover images.
package supabase

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mrlokans/flashshelf/internal/remote"
)

// keyPlaceholder is the template text that sometimes gets pasted along with
// the anon key from the setup instructions.
const keyPlaceholder = "ここにAnonKeyを貼"

const (
	defaultTable   = "books"
	defaultSchema  = "public"
	defaultBucket  = "book-covers"
	defaultChannel = "books_channel"

	defaultHeartbeat = 25 * time.Second
	joinTimeout      = 10 * time.Second
)

// Options tunes table, bucket and channel names. Zero values use the defaults.
type Options struct {
	Table      string
	Schema     string
	Bucket     string
	Channel    string
	HTTPClient *http.Client
}

// Client implements remote.BookStore, remote.ChangeFeed and remote.Bucket.
type Client struct {
	baseURL    string
	apiKey     string
	table      string
	schema     string
	bucket     string
	channel    string
	httpClient *http.Client
	dialer     *websocket.Dialer
	heartbeat  time.Duration
}

var (
	_ remote.BookStore  = (*Client)(nil)
	_ remote.ChangeFeed = (*Client)(nil)
	_ remote.Bucket     = (*Client)(nil)
)

// NewClient creates a client for the project at baseURL using the anon key.
func NewClient(baseURL, apiKey string, opts Options) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     sanitizeKey(apiKey),
		table:      opts.Table,
		schema:     opts.Schema,
		bucket:     opts.Bucket,
		channel:    opts.Channel,
		httpClient: opts.HTTPClient,
		dialer:     websocket.DefaultDialer,
		heartbeat:  defaultHeartbeat,
	}
	if c.table == "" {
		c.table = defaultTable
	}
	if c.schema == "" {
		c.schema = defaultSchema
	}
	if c.bucket == "" {
		c.bucket = defaultBucket
	}
	if c.channel == "" {
		c.channel = defaultChannel
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return c
}

func sanitizeKey(key string) string {
	return strings.TrimSpace(strings.ReplaceAll(key, keyPlaceholder, ""))
}

// setAuth adds the headers every Supabase gateway endpoint expects.
func (c *Client) setAuth(req *http.Request) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}
