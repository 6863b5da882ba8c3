package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBD_LookupISBN(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/get", r.URL.Path)
		assert.Equal(t, "9784101010014", r.URL.Query().Get("isbn"))
		_, _ = w.Write([]byte(`[{"onix":{},"hanmoto":{},"summary":{"isbn":"9784101010014","title":"吾輩は猫である","cover":"https://cover.openbd.jp/9784101010014.jpg"}}]`))
	}))
	defer server.Close()

	client := NewOpenBDClient(time.Second)
	client.baseURL = server.URL

	result, err := client.LookupISBN(context.Background(), " 9784101010014 ")
	require.NoError(t, err)
	assert.Equal(t, "吾輩は猫である", result.Title)
	assert.Equal(t, "https://cover.openbd.jp/9784101010014.jpg", result.CoverURL)
	assert.Empty(t, result.Categories)
	assert.Equal(t, "openbd", result.Source)
}

func TestOpenBD_NullEntryIsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[null]`))
	}))
	defer server.Close()

	client := NewOpenBDClient(time.Second)
	client.baseURL = server.URL

	_, err := client.LookupISBN(context.Background(), "9780000000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenBD_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer server.Close()

	client := NewOpenBDClient(time.Second)
	client.baseURL = server.URL

	_, err := client.LookupISBN(context.Background(), "9784101010014")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestGoogleBooks_LookupISBN(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/books/v1/volumes", r.URL.Path)
		assert.Equal(t, "isbn:9780134685991", r.URL.Query().Get("q"))
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(`{"totalItems":1,"items":[{"volumeInfo":{
			"title":"Effective Java",
			"categories":["Computers","Programming"],
			"imageLinks":{"smallThumbnail":"http://s","thumbnail":"http://t"}
		}}]}`))
	}))
	defer server.Close()

	client := NewGoogleBooksClient("secret", time.Second)
	client.baseURL = server.URL

	result, err := client.LookupISBN(context.Background(), "9780134685991")
	require.NoError(t, err)
	assert.Equal(t, "Effective Java", result.Title)
	assert.Equal(t, "http://t", result.CoverURL)
	assert.Equal(t, []string{"Computers", "Programming"}, result.Categories)
	assert.Equal(t, "google_books", result.Source)
}

func TestGoogleBooks_NoItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(`{"kind":"books#volumes","totalItems":0}`))
	}))
	defer server.Close()

	client := NewGoogleBooksClient("", time.Second)
	client.baseURL = server.URL

	_, err := client.LookupISBN(context.Background(), "9780000000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJoinCategories(t *testing.T) {
	assert.Equal(t, "Computers, Programming", JoinCategories([]string{"Computers", "Programming"}))
	assert.Equal(t, "", JoinCategories(nil))
}
