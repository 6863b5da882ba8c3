package http

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/flashshelf/internal/entities"
	"github.com/mrlokans/flashshelf/internal/library"
)

func dialBooks(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/books/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readBooks(t *testing.T, conn *websocket.Conn) booksResponse {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var resp booksResponse
	require.NoError(t, conn.ReadJSON(&resp))
	return resp
}

func TestStreamBooks_PushesSnapshots(t *testing.T) {
	books := newFakeBooks(entities.Book{ID: "b1", Title: "First"})
	srv := httptest.NewServer(newBooksRouter(books))
	defer srv.Close()

	conn := dialBooks(t, srv, "")

	initial := readBooks(t, conn)
	require.Len(t, initial.Books, 1)
	assert.Equal(t, "b1", initial.Books[0].ID)

	books.watch <- library.State{Books: []entities.Book{
		{ID: "b2", Title: "Second"},
		{ID: "b1", Title: "First"},
	}}
	next := readBooks(t, conn)
	assert.Equal(t, 2, next.Count)
	assert.Equal(t, "b2", next.Books[0].ID)
}

func TestStreamBooks_TagFilter(t *testing.T) {
	books := newFakeBooks(
		entities.Book{ID: "b1", Title: "A", Tags: []string{"sf"}},
		entities.Book{ID: "b2", Title: "B"},
	)
	srv := httptest.NewServer(newBooksRouter(books))
	defer srv.Close()

	conn := dialBooks(t, srv, "?tag=sf")
	resp := readBooks(t, conn)
	require.Len(t, resp.Books, 1)
	assert.Equal(t, "b1", resp.Books[0].ID)
}

func TestStreamBooks_ClosesWhenWatchEnds(t *testing.T) {
	books := newFakeBooks()
	srv := httptest.NewServer(newBooksRouter(books))
	defer srv.Close()

	conn := dialBooks(t, srv, "")
	readBooks(t, conn)

	close(books.watch)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
