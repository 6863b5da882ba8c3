package supabase

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/flashshelf/internal/entities"
	"github.com/mrlokans/flashshelf/internal/remote"
)

const testKey = "anon-key"

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient("https://example.supabase.co/", testKey, Options{})

	assert.Equal(t, "https://example.supabase.co", c.baseURL)
	assert.Equal(t, "books", c.table)
	assert.Equal(t, "public", c.schema)
	assert.Equal(t, "book-covers", c.bucket)
	assert.Equal(t, "books_channel", c.channel)
}

func TestSanitizeKey(t *testing.T) {
	assert.Equal(t, "abc", sanitizeKey(" abc "))
	assert.Equal(t, "abc", sanitizeKey("ここにAnonKeyを貼abc"))
	assert.Equal(t, "", sanitizeKey("ここにAnonKeyを貼"))
}

func TestClient_List(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/rest/v1/books", r.URL.Path)
		assert.Equal(t, "*", r.URL.Query().Get("select"))
		assert.Equal(t, "created_at.desc", r.URL.Query().Get("order"))
		assert.Equal(t, testKey, r.Header.Get("apikey"))
		assert.Equal(t, "Bearer "+testKey, r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":"b2","isbn":"","title":"Newer","cover_url":null,"tags":["x"],"rating":4,"comment":null,"created_at":"2024-05-02T10:00:00Z"},
			{"id":"b1","isbn":"9784000000000","title":"Older","cover_url":"","tags":null,"rating":null,"comment":"","created_at":"2024-05-01T10:00:00Z"}
		]`))
	}))
	defer server.Close()

	c := NewClient(server.URL, testKey, Options{})
	books, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, books, 2)

	assert.Equal(t, "b2", books[0].ID)
	assert.Equal(t, []string{"x"}, books[0].Tags)
	require.NotNil(t, books[0].Rating)
	assert.Equal(t, 4, *books[0].Rating)
	assert.Nil(t, books[1].Rating)
	assert.Equal(t, "9784000000000", books[1].ISBN)
}

func TestClient_List_EmptyTable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	books, err := NewClient(server.URL, testKey, Options{}).List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, books)
	assert.Empty(t, books)
}

func TestClient_List_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"PGRST301","message":"JWT expired","details":null,"hint":null}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, testKey, Options{}).List(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "PGRST301", apiErr.Code)
	assert.Equal(t, "JWT expired", apiErr.Message)
}

func TestClient_Insert(t *testing.T) {
	var body []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/v1/books", r.URL.Path)
		assert.Equal(t, "return=minimal", r.Header.Get("Prefer"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	err := NewClient(server.URL, testKey, Options{}).Insert(context.Background(), entities.NewBook{Title: "Sample"})
	require.NoError(t, err)

	require.Len(t, body, 1)
	assert.Equal(t, "Sample", body[0]["title"])
	assert.Equal(t, "", body[0]["isbn"])
	assert.Equal(t, "", body[0]["cover_url"])
	assert.Equal(t, []any{}, body[0]["tags"])
	assert.NotContains(t, body[0], "id")
	assert.NotContains(t, body[0], "rating")
}

func TestClient_UpdateAndDelete(t *testing.T) {
	var calls []string
	var patch map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Query().Get("id"))
		if r.Method == http.MethodPatch {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&patch))
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := NewClient(server.URL, testKey, Options{})
	rating := 5
	require.NoError(t, c.Update(context.Background(), "b1", entities.BookUpdate{Rating: &rating}))
	require.NoError(t, c.Delete(context.Background(), "b1"))

	assert.Equal(t, []string{"PATCH eq.b1", "DELETE eq.b1"}, calls)
	assert.Equal(t, map[string]any{"rating": float64(5)}, patch)
}

func TestClient_Upload(t *testing.T) {
	var gotPath, gotType, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		_, _ = w.Write([]byte(`{"Key":"book-covers/covers/1_abc.jpg"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, testKey, Options{})
	publicURL, err := c.Upload(context.Background(), "covers/1_abc.jpg", "image/jpeg", strings.NewReader("jpeg"))
	require.NoError(t, err)

	assert.Equal(t, "/storage/v1/object/book-covers/covers/1_abc.jpg", gotPath)
	assert.Equal(t, "image/jpeg", gotType)
	assert.Equal(t, "jpeg", gotBody)
	assert.Equal(t, server.URL+"/storage/v1/object/public/book-covers/covers/1_abc.jpg", publicURL)
}

func TestClient_Upload_StorageError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"statusCode":"409","error":"Duplicate","message":"The resource already exists"}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, testKey, Options{}).Upload(context.Background(), "a.jpg", "", strings.NewReader("x"))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Duplicate", apiErr.Code)
	assert.Equal(t, "The resource already exists", apiErr.Message)
}

func TestDecodeChange(t *testing.T) {
	t.Run("insert carries full record", func(t *testing.T) {
		event, err := decodeChange(json.RawMessage(`{"data":{"type":"INSERT","record":{"id":"b1","title":"T","tags":["a"]}}}`))
		require.NoError(t, err)
		assert.Equal(t, remote.ChangeInsert, event.Type)
		assert.Equal(t, "b1", event.ID())
		assert.Equal(t, []string{"a"}, event.Record.Tags)
	})

	t.Run("delete uses old record id", func(t *testing.T) {
		event, err := decodeChange(json.RawMessage(`{"data":{"type":"DELETE","record":null,"old_record":{"id":"b9"}}}`))
		require.NoError(t, err)
		assert.Equal(t, remote.ChangeDelete, event.Type)
		assert.Equal(t, "b9", event.ID())
	})

	t.Run("delete without id is rejected", func(t *testing.T) {
		_, err := decodeChange(json.RawMessage(`{"data":{"type":"DELETE","old_record":{}}}`))
		assert.Error(t, err)
	})

	t.Run("unknown type is rejected", func(t *testing.T) {
		_, err := decodeChange(json.RawMessage(`{"data":{"type":"TRUNCATE"}}`))
		assert.Error(t, err)
	})
}

// fakeRealtime accepts one socket, acknowledges the join and then pushes frames.
func fakeRealtime(t *testing.T, joinStatus string, frames []string) (*httptest.Server, <-chan phxMessage) {
	t.Helper()
	received := make(chan phxMessage, 16)
	upgrader := websocket.Upgrader{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/realtime/v1/websocket", r.URL.Path)
		assert.Equal(t, testKey, r.URL.Query().Get("apikey"))
		assert.Equal(t, "1.0.0", r.URL.Query().Get("vsn"))

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var join phxMessage
		if err := conn.ReadJSON(&join); err != nil {
			return
		}
		received <- join

		reply := map[string]any{
			"topic":   join.Topic,
			"event":   "phx_reply",
			"ref":     *join.Ref,
			"payload": map[string]any{"status": joinStatus, "response": map[string]any{}},
		}
		if err := conn.WriteJSON(reply); err != nil {
			return
		}
		for _, frame := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		for {
			var msg phxMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			received <- msg
		}
	}))
	return server, received
}

func TestClient_Subscribe(t *testing.T) {
	frames := []string{
		`{"topic":"realtime:books_channel","event":"system","payload":{"status":"ok"},"ref":null}`,
		`{"topic":"realtime:books_channel","event":"postgres_changes","payload":{"data":{"type":"INSERT","record":{"id":"b1","title":"One","tags":[]}}},"ref":null}`,
		`{"topic":"realtime:books_channel","event":"postgres_changes","payload":{"data":{"type":"DELETE","old_record":{"id":"b1"}}},"ref":null}`,
	}
	server, received := fakeRealtime(t, "ok", frames)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := NewClient(server.URL, testKey, Options{})
	events, err := c.Subscribe(ctx)
	require.NoError(t, err)

	join := <-received
	assert.Equal(t, "realtime:books_channel", join.Topic)
	assert.Equal(t, "phx_join", join.Event)
	assert.Contains(t, string(join.Payload), `"table":"books"`)
	assert.Contains(t, string(join.Payload), `"schema":"public"`)

	first := <-events
	assert.Equal(t, remote.ChangeInsert, first.Type)
	assert.Equal(t, "One", first.Record.Title)

	second := <-events
	assert.Equal(t, remote.ChangeDelete, second.Type)
	assert.Equal(t, "b1", second.ID())

	cancel()
	select {
	case _, ok := <-events:
		for ok {
			_, ok = <-events
		}
	case <-time.After(2 * time.Second):
		t.Fatal("events channel not closed after cancel")
	}
}

func TestClient_Subscribe_Heartbeat(t *testing.T) {
	server, received := fakeRealtime(t, "ok", nil)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := NewClient(server.URL, testKey, Options{})
	c.heartbeat = 20 * time.Millisecond
	_, err := c.Subscribe(ctx)
	require.NoError(t, err)

	<-received // join
	select {
	case msg := <-received:
		assert.Equal(t, "phoenix", msg.Topic)
		assert.Equal(t, "heartbeat", msg.Event)
	case <-time.After(2 * time.Second):
		t.Fatal("no heartbeat received")
	}
}

func TestClient_Subscribe_JoinRejected(t *testing.T) {
	server, _ := fakeRealtime(t, "error", nil)
	defer server.Close()

	_, err := NewClient(server.URL, testKey, Options{}).Subscribe(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected")
}
