package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mrlokans/flashshelf/internal/entities"
	"github.com/mrlokans/flashshelf/internal/remote"
)

// Phoenix channel message as sent by the Realtime server.
type phxMessage struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     *string         `json:"ref"`
	JoinRef *string         `json:"join_ref,omitempty"`
}

type phxOutgoing struct {
	Topic   string `json:"topic"`
	Event   string `json:"event"`
	Payload any    `json:"payload"`
	Ref     string `json:"ref"`
	JoinRef string `json:"join_ref,omitempty"`
}

type phxReply struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

type postgresChangePayload struct {
	Data struct {
		Schema    string          `json:"schema"`
		Table     string          `json:"table"`
		Type      string          `json:"type"`
		Record    json.RawMessage `json:"record"`
		OldRecord json.RawMessage `json:"old_record"`
	} `json:"data"`
}

// realtimeConn serializes writes; gorilla connections allow one concurrent writer.
type realtimeConn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	ref     atomic.Int64
}

func (rc *realtimeConn) nextRef() string {
	return strconv.FormatInt(rc.ref.Add(1), 10)
}

func (rc *realtimeConn) write(msg phxOutgoing) error {
	rc.writeMu.Lock()
	defer rc.writeMu.Unlock()

	_ = rc.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return rc.ws.WriteJSON(msg)
}

func (c *Client) realtimeURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/realtime/v1/websocket"
	query := u.Query()
	query.Set("apikey", c.apiKey)
	query.Set("vsn", "1.0.0")
	u.RawQuery = query.Encode()
	return u.String(), nil
}

func (c *Client) topic() string {
	return "realtime:" + c.channel
}

func (c *Client) joinPayload() map[string]any {
	return map[string]any{
		"config": map[string]any{
			"broadcast": map[string]any{"self": false, "ack": false},
			"presence":  map[string]any{"key": ""},
			"postgres_changes": []map[string]string{
				{"event": "*", "schema": c.schema, "table": c.table},
			},
			"private": false,
		},
		"access_token": c.apiKey,
	}
}

// Subscribe opens one realtime channel for the books table and streams its
// insert, update and delete events until ctx is done or the socket drops.
func (c *Client) Subscribe(ctx context.Context) (<-chan remote.ChangeEvent, error) {
	endpoint, err := c.realtimeURL()
	if err != nil {
		return nil, err
	}

	ws, _, err := c.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("connect realtime: %w", err)
	}
	conn := &realtimeConn{ws: ws}

	joinRef := conn.nextRef()
	err = conn.write(phxOutgoing{
		Topic:   c.topic(),
		Event:   "phx_join",
		Payload: c.joinPayload(),
		Ref:     joinRef,
		JoinRef: joinRef,
	})
	if err != nil {
		ws.Close()
		return nil, fmt.Errorf("join %s: %w", c.topic(), err)
	}

	if err := c.awaitJoin(conn, joinRef); err != nil {
		ws.Close()
		return nil, err
	}
	log.Printf("[realtime] subscribed to %s.%s on %s", c.schema, c.table, c.topic())

	events := make(chan remote.ChangeEvent, 64)
	done := make(chan struct{})
	go c.readLoop(ctx, conn, events, done)
	go c.keepAlive(ctx, conn, joinRef, done)

	return events, nil
}

func (c *Client) awaitJoin(conn *realtimeConn, joinRef string) error {
	_ = conn.ws.SetReadDeadline(time.Now().Add(joinTimeout))
	defer func() { _ = conn.ws.SetReadDeadline(time.Time{}) }()

	for {
		var msg phxMessage
		if err := conn.ws.ReadJSON(&msg); err != nil {
			return fmt.Errorf("await join reply: %w", err)
		}
		if msg.Topic != c.topic() || msg.Event != "phx_reply" || msg.Ref == nil || *msg.Ref != joinRef {
			continue
		}

		var reply phxReply
		if err := json.Unmarshal(msg.Payload, &reply); err != nil {
			return fmt.Errorf("decode join reply: %w", err)
		}
		if reply.Status != "ok" {
			return fmt.Errorf("join %s rejected: %s %s", c.topic(), reply.Status, string(reply.Response))
		}
		return nil
	}
}

func (c *Client) readLoop(ctx context.Context, conn *realtimeConn, events chan<- remote.ChangeEvent, done chan<- struct{}) {
	defer close(events)
	defer close(done)
	defer conn.ws.Close()

	for {
		var msg phxMessage
		if err := conn.ws.ReadJSON(&msg); err != nil {
			if ctx.Err() == nil {
				log.Printf("[realtime] connection lost: %v", err)
			}
			return
		}

		switch msg.Event {
		case "postgres_changes":
			event, err := decodeChange(msg.Payload)
			if err != nil {
				log.Printf("[realtime] skipping malformed change: %v", err)
				continue
			}
			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		case "phx_error", "phx_close":
			if msg.Topic == c.topic() {
				log.Printf("[realtime] channel %s closed by server (%s)", c.topic(), msg.Event)
				return
			}
		}
	}
}

func (c *Client) keepAlive(ctx context.Context, conn *realtimeConn, joinRef string, done <-chan struct{}) {
	ticker := time.NewTicker(c.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			_ = conn.write(phxOutgoing{
				Topic:   c.topic(),
				Event:   "phx_leave",
				Payload: map[string]any{},
				Ref:     conn.nextRef(),
				JoinRef: joinRef,
			})
			_ = conn.ws.Close()
			return
		case <-ticker.C:
			err := conn.write(phxOutgoing{
				Topic:   "phoenix",
				Event:   "heartbeat",
				Payload: map[string]any{},
				Ref:     conn.nextRef(),
			})
			if err != nil {
				log.Printf("[realtime] heartbeat failed: %v", err)
				_ = conn.ws.Close()
				return
			}
		}
	}
}

func decodeChange(payload json.RawMessage) (remote.ChangeEvent, error) {
	var p postgresChangePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return remote.ChangeEvent{}, err
	}

	event := remote.ChangeEvent{Type: remote.ChangeType(p.Data.Type)}
	switch event.Type {
	case remote.ChangeInsert, remote.ChangeUpdate:
		var book entities.Book
		if err := json.Unmarshal(p.Data.Record, &book); err != nil {
			return remote.ChangeEvent{}, fmt.Errorf("decode record: %w", err)
		}
		event.Record = book
	case remote.ChangeDelete:
		var old struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(p.Data.OldRecord, &old); err != nil {
			return remote.ChangeEvent{}, fmt.Errorf("decode old record: %w", err)
		}
		if old.ID == "" {
			return remote.ChangeEvent{}, fmt.Errorf("delete event without id")
		}
		event.OldID = old.ID
	default:
		return remote.ChangeEvent{}, fmt.Errorf("unknown change type %q", p.Data.Type)
	}
	return event, nil
}
