package credstore

import (
	"sync"
	"time"

	session "github.com/plazaops/session-go"
)

// Watcher polls a credential store at a bounded interval and invokes a
// callback when a token appears where none was before. It bridges the
// case where another process or an out-of-band login flow filled the
// slot without this instance observing it through its own call path.
//
// Polling is the portable fallback; a store with change notification
// can skip the Watcher and invoke the callback directly.
type Watcher struct {
	store    session.CredentialStore
	interval time.Duration
	onAppear func(token string)

	mu      sync.Mutex
	stop    chan struct{}
	stopped bool
	last    bool // token was present at the previous tick
}

// NewWatcher creates a watcher over store. interval <= 0 falls back to
// session.DefaultPollInterval. onAppear is called each time the slot
// transitions from empty to present, and once from Start when the slot
// is already filled.
func NewWatcher(store session.CredentialStore, interval time.Duration, onAppear func(token string)) *Watcher {
	if interval <= 0 {
		interval = session.DefaultPollInterval
	}
	return &Watcher{
		store:    store,
		interval: interval,
		onAppear: onAppear,
		stop:     make(chan struct{}),
	}
}

// Start begins polling. A token already in the slot counts as an
// appearance: a durable store survives restarts, and nothing else would
// observe it. It is a no-op if the watcher was stopped.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	token := w.store.Get()
	w.last = token != ""
	w.mu.Unlock()

	if token != "" && w.onAppear != nil {
		w.onAppear(token)
	}

	go w.loop()
}

func (w *Watcher) loop() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.tick()
		}
	}
}

func (w *Watcher) tick() {
	token := w.store.Get()
	present := token != ""

	w.mu.Lock()
	appeared := present && !w.last
	w.last = present
	w.mu.Unlock()

	if appeared && w.onAppear != nil {
		w.onAppear(token)
	}
}

// Stop halts polling. Safe to call more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.stopped = true
	close(w.stop)
}
