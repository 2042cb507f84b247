package activity

import (
	"sync"
	"time"
)

// Toaster holds at most one visible toast. A new toast while one is showing
// replaces it and restarts the clock; there is no backlog.
type Toaster struct {
	duration time.Duration
	onChange func(text string, visible bool)

	mu    sync.Mutex
	text  string
	shown bool
	gen   int
}

// NewToaster creates a toaster with the given hold time. onChange is invoked
// on every visibility change and may be nil.
func NewToaster(duration time.Duration, onChange func(text string, visible bool)) *Toaster {
	if onChange == nil {
		onChange = func(string, bool) {}
	}
	return &Toaster{duration: duration, onChange: onChange}
}

func (t *Toaster) ShowToast(text string) {
	t.mu.Lock()
	t.text = text
	t.shown = true
	t.gen++
	gen := t.gen
	t.mu.Unlock()
	t.onChange(text, true)

	time.AfterFunc(t.duration, func() {
		t.mu.Lock()
		// a replacement toast restarted the clock; leave it alone
		if t.gen != gen {
			t.mu.Unlock()
			return
		}
		t.shown = false
		text := t.text
		t.mu.Unlock()
		t.onChange(text, false)
	})
}

// Current returns the visible toast text, if any.
func (t *Toaster) Current() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.text, t.shown
}
