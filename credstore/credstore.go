// Package credstore provides CredentialStore implementations: a
// process-local store for tests and single-shot tools, and a durable
// file-backed store that survives restarts.
//
// The credential is a single named slot holding the bearer token as an
// opaque string; absence means unauthenticated. Operations are total:
// a store never fails, it only holds or does not hold a token.
package credstore

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	session "github.com/plazaops/session-go"
)

// Memory is a mutex-guarded in-process credential slot.
type Memory struct {
	mu    sync.RWMutex
	token string
}

var _ session.CredentialStore = (*Memory)(nil)

// NewMemory creates an empty in-process credential store.
func NewMemory() *Memory { return &Memory{} }

// Get returns the stored token, or "" if none is present.
func (m *Memory) Get() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// Set stores the token, replacing any previous value.
func (m *Memory) Set(token string) {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
}

// Clear removes the token.
func (m *Memory) Clear() {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()
}

// File is a durable credential slot backed by a single file. Writes go
// through a temp file and rename so a crash never leaves a torn token.
// The file is created with mode 0600.
type File struct {
	mu   sync.Mutex
	path string
}

var _ session.CredentialStore = (*File)(nil)

// NewFile creates a file-backed credential store at path. The parent
// directory must exist.
func NewFile(path string) *File {
	return &File{path: path}
}

// Get returns the stored token, or "" if the slot file is absent or
// unreadable.
func (f *File) Get() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// Set stores the token durably, replacing any previous value.
func (f *File) Set(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(token), 0o600); err != nil {
		return
	}
	_ = os.Rename(tmp, f.path)
}

// Clear removes the slot file.
func (f *File) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	_ = os.Remove(f.path)
}

// Path returns the slot file location.
func (f *File) Path() string { return filepath.Clean(f.path) }
