package addbook

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry tracks the open forms of all clients by id.
type Registry struct {
	deps Deps

	mu    sync.Mutex
	forms map[string]*Form
}

func NewRegistry(deps Deps) *Registry {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Registry{deps: deps, forms: make(map[string]*Form)}
}

// Open creates a new form. It is removed from the registry when it closes.
func (r *Registry) Open() *Form {
	form := NewForm(uuid.NewString(), r.deps)
	form.onClose = r.remove

	r.mu.Lock()
	r.forms[form.id] = form
	r.mu.Unlock()
	return form
}

// Get returns an open form.
func (r *Registry) Get(id string) (*Form, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	form, ok := r.forms[id]
	return form, ok
}

// Close closes the form with the given id. It reports whether it was open.
func (r *Registry) Close(id string) bool {
	form, ok := r.Get(id)
	if !ok {
		return false
	}
	form.Close()
	return true
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	delete(r.forms, id)
	r.mu.Unlock()
}

// Len returns the number of open forms.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.forms)
}

// Sweep closes forms that have been idle for longer than idle and returns
// how many were closed.
func (r *Registry) Sweep(idle time.Duration) int {
	cutoff := r.deps.Now().Add(-idle)

	r.mu.Lock()
	var stale []*Form
	for _, form := range r.forms {
		if form.LastActive().Before(cutoff) {
			stale = append(stale, form)
		}
	}
	r.mu.Unlock()

	for _, form := range stale {
		form.Close()
	}
	if len(stale) > 0 {
		log.Printf("[addbook] closed %d idle forms", len(stale))
	}
	return len(stale)
}

// CloseAll closes every open form.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	forms := make([]*Form, 0, len(r.forms))
	for _, form := range r.forms {
		forms = append(forms, form)
	}
	r.mu.Unlock()

	for _, form := range forms {
		form.Close()
	}
}
