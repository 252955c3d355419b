package credstore

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestMemory_SetGetClear(t *testing.T) {
	s := NewMemory()

	if got := s.Get(); got != "" {
		t.Errorf("expected empty store, got %q", got)
	}

	s.Set("tok-1")
	if got := s.Get(); got != "tok-1" {
		t.Errorf("expected tok-1, got %q", got)
	}

	s.Set("tok-2")
	if got := s.Get(); got != "tok-2" {
		t.Errorf("expected tok-2 after overwrite, got %q", got)
	}

	s.Clear()
	if got := s.Get(); got != "" {
		t.Errorf("expected empty after clear, got %q", got)
	}
}

func TestFile_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credential")

	first := NewFile(path)
	first.Set("durable-token")

	second := NewFile(path)
	if got := second.Get(); got != "durable-token" {
		t.Errorf("expected durable-token from fresh instance, got %q", got)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat slot file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("expected 0600 slot file, got %o", perm)
	}
}

func TestFile_ClearRemovesSlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credential")
	s := NewFile(path)

	s.Set("tok")
	s.Clear()

	if got := s.Get(); got != "" {
		t.Errorf("expected empty after clear, got %q", got)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected slot file removed, stat err = %v", err)
	}
}

func TestFile_AbsentSlotIsEmpty(t *testing.T) {
	s := NewFile(filepath.Join(t.TempDir(), "never-written"))
	if got := s.Get(); got != "" {
		t.Errorf("expected empty for absent slot, got %q", got)
	}
}

func TestWatcher_FiresOnAppearance(t *testing.T) {
	store := NewMemory()

	var mu sync.Mutex
	var seen []string
	w := NewWatcher(store, 5*time.Millisecond, func(token string) {
		mu.Lock()
		seen = append(seen, token)
		mu.Unlock()
	})
	w.Start()
	defer w.Stop()

	// Empty -> present must fire exactly once.
	time.Sleep(20 * time.Millisecond)
	store.Set("appeared")
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	got := len(seen)
	mu.Unlock()
	if got != 1 {
		t.Fatalf("expected exactly one appearance callback, got %d", got)
	}

	// Present -> present must not fire again.
	store.Set("replaced")
	time.Sleep(30 * time.Millisecond)

	mu.Lock()
	got = len(seen)
	mu.Unlock()
	if got != 1 {
		t.Errorf("expected no callback on token replacement, got %d", got)
	}
}

func TestWatcher_FiresForTokenPresentAtStart(t *testing.T) {
	store := NewMemory()
	store.Set("restored")

	fired := make(chan string, 4)
	w := NewWatcher(store, 5*time.Millisecond, func(token string) {
		fired <- token
	})
	w.Start()
	defer w.Stop()

	waitForToken(t, fired, "restored")

	// The startup appearance must not fire a second time on later ticks.
	time.Sleep(30 * time.Millisecond)
	select {
	case got := <-fired:
		t.Fatalf("expected no further callback, got %q", got)
	default:
	}
}

func TestWatcher_RearmsAfterClear(t *testing.T) {
	store := NewMemory()

	fired := make(chan string, 4)
	w := NewWatcher(store, 5*time.Millisecond, func(token string) {
		fired <- token
	})
	w.Start()
	defer w.Stop()

	store.Set("first")
	waitForToken(t, fired, "first")

	store.Clear()
	time.Sleep(20 * time.Millisecond)

	store.Set("second")
	waitForToken(t, fired, "second")
}

func waitForToken(t *testing.T, ch chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("expected callback with %q, got %q", want, got)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for callback with %q", want)
	}
}

func TestExpiry_JWTWithExp(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tok := signedToken(t, jwt.MapClaims{"sub": "u1", "exp": exp.Unix()})

	got, ok := Expiry(tok)
	if !ok {
		t.Fatal("expected expiry to be found")
	}
	if !got.Equal(exp) {
		t.Errorf("expected expiry %v, got %v", exp, got)
	}
}

func TestExpiry_OpaqueToken(t *testing.T) {
	if _, ok := Expiry("not-a-jwt"); ok {
		t.Error("expected no expiry for opaque token")
	}
	if _, ok := Expiry(""); ok {
		t.Error("expected no expiry for empty token")
	}
}

func TestExpired_RespectsClock(t *testing.T) {
	exp := time.Now().Add(time.Minute)
	tok := signedToken(t, jwt.MapClaims{"exp": exp.Unix()})

	if Expired(tok, time.Now()) {
		t.Error("token should not be expired yet")
	}
	if !Expired(tok, exp.Add(time.Second)) {
		t.Error("token should be expired after exp")
	}
	if Expired("opaque", time.Now().Add(1000*time.Hour)) {
		t.Error("opaque tokens never expire locally")
	}
}

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign test token: %v", err)
	}
	return tok
}
