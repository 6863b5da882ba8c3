// Package addbook is the add-book workflow: a form that is filled by hand or
// from a barcode, enriched by ISBN lookup, cover upload and tag suggestion,
// and finally submitted as one insert.
//
// Every form owns a context. Closing the form cancels whatever lookup, upload
// or suggestion is still running, and results that arrive afterwards are
// dropped instead of being written into the form.
package addbook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/mrlokans/flashshelf/internal/entities"
	"github.com/mrlokans/flashshelf/internal/metadata"
	"github.com/mrlokans/flashshelf/internal/remote"
	"github.com/mrlokans/flashshelf/internal/scanner"
	"github.com/mrlokans/flashshelf/internal/tags"
)

var (
	ErrFormClosed  = errors.New("form closed")
	ErrNotScanning = errors.New("scanner is not active")
)

type Mode string

const (
	ModeManual Mode = "manual"
	ModeScan   Mode = "scan"
)

// BookAdder inserts a finished book.
type BookAdder interface {
	AddBook(ctx context.Context, book entities.NewBook) error
}

// Deps are the collaborators a form calls out to. Suggester and Bucket may be nil.
type Deps struct {
	Lookup    metadata.Provider
	Suggester tags.Suggester
	Bucket    remote.Bucket
	Books     BookAdder
	Now       func() time.Time
}

// Fields are the editable inputs. Tags is the raw comma-separated text.
type Fields struct {
	ISBN     string `json:"isbn"`
	Title    string `json:"title"`
	CoverURL string `json:"cover_url"`
	Tags     string `json:"tags"`
}

// Patch changes the non-nil fields.
type Patch struct {
	ISBN     *string `json:"isbn"`
	Title    *string `json:"title"`
	CoverURL *string `json:"cover_url"`
	Tags     *string `json:"tags"`
}

// State is a copy of the form as the client renders it.
type State struct {
	ID         string   `json:"id"`
	Mode       Mode     `json:"mode"`
	Fields     Fields   `json:"fields"`
	Busy       bool     `json:"busy"`
	Scanning   bool     `json:"scanning"`
	Suggesting bool     `json:"suggesting"`
	Message    *Message `json:"message,omitempty"`
	Closed     bool     `json:"closed"`
	Saved      bool     `json:"saved"`
}

type Form struct {
	id   string
	deps Deps

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	mode       Mode
	fields     Fields
	busy       int
	suggesting int
	session    *scanner.Session
	message    *Message
	closed     bool
	saved      bool
	tagsRev    int
	lastActive time.Time
	onClose    func(id string)
	pending    sync.WaitGroup
}

// NewForm opens a form in manual mode.
func NewForm(id string, deps Deps) *Form {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Form{
		id:         id,
		deps:       deps,
		ctx:        ctx,
		cancel:     cancel,
		mode:       ModeManual,
		lastActive: deps.Now(),
	}
}

func (f *Form) ID() string { return f.id }

// Done is closed when the form closes.
func (f *Form) Done() <-chan struct{} { return f.ctx.Done() }

// State returns the current form state.
func (f *Form) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stateLocked()
}

func (f *Form) stateLocked() State {
	return State{
		ID:         f.id,
		Mode:       f.mode,
		Fields:     f.fields,
		Busy:       f.busy > 0,
		Scanning:   f.session != nil && f.session.Active(),
		Suggesting: f.suggesting > 0,
		Message:    f.message,
		Closed:     f.closed,
		Saved:      f.saved,
	}
}

// LastActive is the time of the most recent operation on the form.
func (f *Form) LastActive() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastActive
}

// begin checks the form is open and marks it active. Callers hold f.mu.
func (f *Form) begin() error {
	if f.closed {
		return ErrFormClosed
	}
	f.lastActive = f.deps.Now()
	return nil
}

// scope derives a context that ends with either the request or the form.
func (f *Form) scope(ctx context.Context) (context.Context, context.CancelFunc) {
	opCtx, cancel := context.WithCancel(f.ctx)
	stop := context.AfterFunc(ctx, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}

// SetFields applies a patch. Any edit to Tags counts as a user edit, which
// keeps a pending suggestion from overwriting it.
func (f *Form) SetFields(patch Patch) (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(); err != nil {
		return State{}, err
	}

	if patch.ISBN != nil {
		f.fields.ISBN = *patch.ISBN
	}
	if patch.Title != nil {
		f.fields.Title = *patch.Title
	}
	if patch.CoverURL != nil {
		f.fields.CoverURL = *patch.CoverURL
	}
	if patch.Tags != nil {
		f.fields.Tags = *patch.Tags
		f.tagsRev++
	}
	return f.stateLocked(), nil
}

// SetMode switches between manual entry and barcode mode. Leaving scan mode
// stops an active scanner.
func (f *Form) SetMode(mode Mode) (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(); err != nil {
		return State{}, err
	}
	if mode != ModeManual && mode != ModeScan {
		return State{}, fmt.Errorf("unknown mode %q", mode)
	}

	f.mode = mode
	if mode == ModeManual {
		f.stopScanLocked()
	}
	return f.stateLocked(), nil
}

// DismissMessage clears the current notice.
func (f *Form) DismissMessage() {
	f.mu.Lock()
	f.message = nil
	f.mu.Unlock()
}

// Lookup resolves the current ISBN and fills title, cover and tags. A result
// without categories starts a background tag suggestion when one is
// configured. Not-found and transport failures leave the fields untouched and
// set a message instead of returning an error.
func (f *Form) Lookup(ctx context.Context) (State, error) {
	f.mu.Lock()
	if err := f.begin(); err != nil {
		f.mu.Unlock()
		return State{}, err
	}
	isbn := f.fields.ISBN
	rev := f.tagsRev
	f.busy++
	f.message = nil
	f.mu.Unlock()

	opCtx, cancel := f.scope(ctx)
	defer cancel()
	result, err := f.deps.Lookup.LookupISBN(opCtx, isbn)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy--
	if f.closed {
		return State{}, ErrFormClosed
	}

	switch {
	case err == nil:
		f.fields.Title = result.Title
		f.fields.CoverURL = result.CoverURL
		f.fields.Tags = metadata.JoinCategories(result.Categories)
		if tags.ShouldSuggest(result.Categories, f.deps.Suggester) {
			f.suggestLocked(result.Title, rev)
		}
	case errors.Is(err, metadata.ErrNotFound):
		f.message = newMessage(MessageNotFound)
	case opCtx.Err() != nil:
		return f.stateLocked(), opCtx.Err()
	default:
		log.Printf("[addbook] lookup %q failed: %v", isbn, err)
		f.message = newMessage(MessageLookupFailed)
	}
	return f.stateLocked(), nil
}

// suggestLocked runs tag suggestion in the background. The result is applied
// only if the form is still open and the user has not edited Tags since rev.
func (f *Form) suggestLocked(title string, rev int) {
	f.suggesting++
	f.pending.Add(1)
	suggester := f.deps.Suggester

	go func() {
		defer f.pending.Done()
		suggested, err := suggester.SuggestTags(f.ctx, title)

		f.mu.Lock()
		defer f.mu.Unlock()
		f.suggesting--

		switch {
		case f.closed:
			return
		case err != nil:
			log.Printf("[addbook] tag suggestion for %q failed: %v", title, err)
		case len(suggested) == 0:
		case f.tagsRev != rev:
			log.Printf("[addbook] discarding suggested tags for %q: tags were edited", title)
		default:
			f.fields.Tags = strings.Join(suggested, ", ")
		}
	}()
}

// WaitPending blocks until background suggestions have finished.
func (f *Form) WaitPending() {
	f.pending.Wait()
}

// StartScan switches to scan mode and opens a scan session.
func (f *Form) StartScan() (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(); err != nil {
		return State{}, err
	}

	f.mode = ModeScan
	f.stopScanLocked()
	f.session = scanner.NewSession()
	return f.stateLocked(), nil
}

// StopScan ends the scan session and stays in scan mode.
func (f *Form) StopScan() (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(); err != nil {
		return State{}, err
	}
	f.stopScanLocked()
	return f.stateLocked(), nil
}

func (f *Form) stopScanLocked() {
	if f.session != nil {
		f.session.Stop()
		f.session = nil
	}
}

// Detect feeds one decoded barcode. Codes that are not ISBN-13 are ignored
// and scanning continues. The first accepted code stops the scanner, switches
// to manual mode, fills the ISBN and runs Lookup.
func (f *Form) Detect(ctx context.Context, code string) (State, bool, error) {
	f.mu.Lock()
	if err := f.begin(); err != nil {
		f.mu.Unlock()
		return State{}, false, err
	}
	if f.session == nil || !f.session.Active() {
		f.mu.Unlock()
		return State{}, false, ErrNotScanning
	}

	accepted, ok := f.session.Feed(strings.TrimSpace(code))
	if !ok {
		state := f.stateLocked()
		f.mu.Unlock()
		return state, false, nil
	}

	f.session = nil
	f.mode = ModeManual
	f.fields.ISBN = accepted
	f.mu.Unlock()

	state, err := f.Lookup(ctx)
	return state, true, err
}

// UploadCover stores an image in the bucket and points CoverURL at it.
// On failure the previous CoverURL is kept and a message is set.
func (f *Form) UploadCover(ctx context.Context, filename, contentType string, r io.Reader) (State, error) {
	f.mu.Lock()
	if err := f.begin(); err != nil {
		f.mu.Unlock()
		return State{}, err
	}
	if f.deps.Bucket == nil {
		f.message = newMessage(MessageUploadFailed)
		state := f.stateLocked()
		f.mu.Unlock()
		return state, nil
	}
	f.busy++
	f.message = nil
	now := f.deps.Now()
	f.mu.Unlock()

	opCtx, cancel := f.scope(ctx)
	defer cancel()

	var publicURL string
	name, err := ObjectName(filename, now)
	if err == nil {
		publicURL, err = f.deps.Bucket.Upload(opCtx, name, contentType, r)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy--
	if f.closed {
		return State{}, ErrFormClosed
	}
	if err != nil {
		if opCtx.Err() != nil {
			return f.stateLocked(), opCtx.Err()
		}
		log.Printf("[addbook] cover upload failed: %v", err)
		f.message = newMessage(MessageUploadFailed)
		return f.stateLocked(), nil
	}

	f.fields.CoverURL = publicURL
	return f.stateLocked(), nil
}

// ObjectName builds a collision-resistant bucket key for an uploaded cover,
// keeping the original extension.
func ObjectName(filename string, now time.Time) (string, error) {
	suffix, err := gonanoid.New(6)
	if err != nil {
		return "", fmt.Errorf("generate object name: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("covers/%d_%s%s", now.UnixMilli(), suffix, ext), nil
}

// Submit inserts the book. An empty title makes Submit a no-op that reports
// false. On success the form resets and closes; on failure the fields are
// kept and a message is set.
func (f *Form) Submit(ctx context.Context) (State, bool, error) {
	f.mu.Lock()
	if err := f.begin(); err != nil {
		f.mu.Unlock()
		return State{}, false, err
	}
	if f.fields.Title == "" {
		state := f.stateLocked()
		f.mu.Unlock()
		return state, false, nil
	}
	book := entities.NewBook{
		ISBN:     f.fields.ISBN,
		Title:    f.fields.Title,
		CoverURL: f.fields.CoverURL,
		Tags:     entities.SplitTags(f.fields.Tags),
	}
	f.busy++
	f.message = nil
	f.mu.Unlock()

	opCtx, cancel := f.scope(ctx)
	defer cancel()
	err := f.deps.Books.AddBook(opCtx, book)

	f.mu.Lock()
	f.busy--
	if f.closed {
		f.mu.Unlock()
		return State{}, false, ErrFormClosed
	}
	if err != nil {
		f.message = newMessage(MessageSaveFailed)
		state := f.stateLocked()
		f.mu.Unlock()
		return state, false, nil
	}

	f.fields = Fields{}
	f.mode = ModeManual
	f.saved = true
	f.mu.Unlock()

	f.Close()
	return f.State(), true, nil
}

// Close cancels in-flight work and marks the form closed. Safe to call twice.
func (f *Form) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.stopScanLocked()
	onClose := f.onClose
	f.mu.Unlock()

	f.cancel()
	if onClose != nil {
		onClose(f.id)
	}
}
