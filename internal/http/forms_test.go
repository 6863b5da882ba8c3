package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/flashshelf/internal/addbook"
	"github.com/mrlokans/flashshelf/internal/entities"
	"github.com/mrlokans/flashshelf/internal/metadata"
)

type stubLookup struct {
	results map[string]*metadata.Result
}

func (s *stubLookup) Name() string { return "stub" }

func (s *stubLookup) LookupISBN(_ context.Context, isbn string) (*metadata.Result, error) {
	if r, ok := s.results[isbn]; ok {
		return r, nil
	}
	return nil, metadata.ErrNotFound
}

type memoryBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (b *memoryBucket) Upload(_ context.Context, name, _ string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[name] = data
	return "https://cdn.example/" + name, nil
}

type recordingAdder struct {
	mu    sync.Mutex
	added []entities.NewBook
	err   error
}

func (a *recordingAdder) AddBook(_ context.Context, book entities.NewBook) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.added = append(a.added, book)
	return nil
}

type formsHarness struct {
	router   *gin.Engine
	registry *addbook.Registry
	adder    *recordingAdder
	bucket   *memoryBucket
}

func newFormsHarness(t *testing.T) *formsHarness {
	t.Helper()
	h := &formsHarness{
		adder:  &recordingAdder{},
		bucket: &memoryBucket{objects: map[string][]byte{}},
	}
	h.registry = addbook.NewRegistry(addbook.Deps{
		Lookup: &stubLookup{results: map[string]*metadata.Result{
			"9784167158057": {Title: "容疑者Xの献身", CoverURL: "https://cover.openbd.jp/9784167158057.jpg", Categories: []string{"Fiction", "Mystery"}},
		}},
		Bucket: h.bucket,
		Books:  h.adder,
		Now:    func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	})
	t.Cleanup(h.registry.CloseAll)
	h.router = NewRouter(RouterConfig{Forms: h.registry})
	return h
}

func (h *formsHarness) json(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, addbook.State) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	var state addbook.State
	if w.Code < 300 && w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &state)
	}
	return w, state
}

func (h *formsHarness) open(t *testing.T) string {
	t.Helper()
	w, state := h.json(t, http.MethodPost, "/api/forms", "")
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotEmpty(t, state.ID)
	assert.Equal(t, addbook.ModeManual, state.Mode)
	return state.ID
}

func TestForms_ManualEntryAndSubmit(t *testing.T) {
	h := newFormsHarness(t)
	id := h.open(t)

	w, state := h.json(t, http.MethodPatch, "/api/forms/"+id, `{"title":"Sample","tags":"a, b ,,c"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Sample", state.Fields.Title)

	w = httptest.NewRecorder()
	h.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/forms/"+id+"/submit", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp submitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Saved)
	assert.True(t, resp.State.Closed)

	require.Len(t, h.adder.added, 1)
	assert.Equal(t, entities.NewBook{Title: "Sample", Tags: []string{"a", "b", "c"}}, h.adder.added[0])

	// Closed forms leave the registry.
	w, _ = h.json(t, http.MethodGet, "/api/forms/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestForms_SubmitEmptyTitleIsNoop(t *testing.T) {
	h := newFormsHarness(t)
	id := h.open(t)

	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/forms/"+id+"/submit", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp submitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Saved)
	assert.Empty(t, h.adder.added)
}

func TestForms_SubmitFailureKeepsFields(t *testing.T) {
	h := newFormsHarness(t)
	h.adder.err = errors.New("insert failed")
	id := h.open(t)
	h.json(t, http.MethodPatch, "/api/forms/"+id, `{"title":"Sample"}`)

	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/forms/"+id+"/submit", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp submitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Saved)
	assert.Equal(t, "Sample", resp.State.Fields.Title)
	require.NotNil(t, resp.State.Message)
	assert.Equal(t, addbook.MessageSaveFailed, resp.State.Message.Kind)
}

func TestForms_Lookup(t *testing.T) {
	h := newFormsHarness(t)
	id := h.open(t)

	h.json(t, http.MethodPatch, "/api/forms/"+id, `{"isbn":"9784167158057"}`)
	w, state := h.json(t, http.MethodPost, "/api/forms/"+id+"/lookup", "")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "容疑者Xの献身", state.Fields.Title)
	assert.Equal(t, "https://cover.openbd.jp/9784167158057.jpg", state.Fields.CoverURL)
	assert.Equal(t, "Fiction, Mystery", state.Fields.Tags)
}

func TestForms_LookupNotFoundSetsMessage(t *testing.T) {
	h := newFormsHarness(t)
	id := h.open(t)

	h.json(t, http.MethodPatch, "/api/forms/"+id, `{"isbn":"9780000000000","title":"Keep"}`)
	w, state := h.json(t, http.MethodPost, "/api/forms/"+id+"/lookup", "")
	require.Equal(t, http.StatusOK, w.Code)

	require.NotNil(t, state.Message)
	assert.Equal(t, addbook.MessageNotFound, state.Message.Kind)
	assert.Equal(t, "Keep", state.Fields.Title)

	_, state = h.json(t, http.MethodPatch, "/api/forms/"+id, `{"dismiss_message":true}`)
	assert.Nil(t, state.Message)
}

func TestForms_ScanDetect(t *testing.T) {
	h := newFormsHarness(t)
	id := h.open(t)

	w, _ := h.json(t, http.MethodPost, "/api/forms/"+id+"/scan/detect", `{"code":"9784167158057"}`)
	assert.Equal(t, http.StatusConflict, w.Code, "detect without an active scanner")

	w, state := h.json(t, http.MethodPost, "/api/forms/"+id+"/scan", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, state.Scanning)
	assert.Equal(t, addbook.ModeScan, state.Mode)

	detect := func(code string) detectResponse {
		w, _ := h.json(t, http.MethodPost, "/api/forms/"+id+"/scan/detect", `{"code":"`+code+`"}`)
		require.Equal(t, http.StatusOK, w.Code)
		var resp detectResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		return resp
	}

	resp := detect("4901234567894")
	assert.False(t, resp.Accepted)
	assert.True(t, resp.State.Scanning)

	resp = detect("9784167158057")
	assert.True(t, resp.Accepted)
	assert.False(t, resp.State.Scanning)
	assert.Equal(t, addbook.ModeManual, resp.State.Mode)
	assert.Equal(t, "9784167158057", resp.State.Fields.ISBN)
	assert.Equal(t, "容疑者Xの献身", resp.State.Fields.Title)
}

func TestForms_StopScanAndModeSwitch(t *testing.T) {
	h := newFormsHarness(t)
	id := h.open(t)

	h.json(t, http.MethodPost, "/api/forms/"+id+"/scan", "")
	w, state := h.json(t, http.MethodDelete, "/api/forms/"+id+"/scan", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, state.Scanning)
	assert.Equal(t, addbook.ModeScan, state.Mode)

	_, state = h.json(t, http.MethodPatch, "/api/forms/"+id, `{"mode":"manual"}`)
	assert.Equal(t, addbook.ModeManual, state.Mode)

	w, _ = h.json(t, http.MethodPatch, "/api/forms/"+id, `{"mode":"camera"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestForms_UploadCover(t *testing.T) {
	h := newFormsHarness(t)
	id := h.open(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "Cover.PNG")
	require.NoError(t, err)
	_, _ = part.Write([]byte("png-bytes"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/forms/"+id+"/cover", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var state addbook.State
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.True(t, strings.HasPrefix(state.Fields.CoverURL, "https://cdn.example/covers/1714564800000_"))
	assert.True(t, strings.HasSuffix(state.Fields.CoverURL, ".png"))
	assert.Len(t, h.bucket.objects, 1)
}

func TestForms_UploadCoverRequiresFile(t *testing.T) {
	h := newFormsHarness(t)
	id := h.open(t)

	w, _ := h.json(t, http.MethodPost, "/api/forms/"+id+"/cover", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestForms_CloseAndUnknown(t *testing.T) {
	h := newFormsHarness(t)
	id := h.open(t)

	w, _ := h.json(t, http.MethodDelete, "/api/forms/"+id, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, h.registry.Len())

	w, _ = h.json(t, http.MethodDelete, "/api/forms/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = h.json(t, http.MethodPost, "/api/forms/missing/lookup", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
