package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestManager(t *testing.T, handler http.Handler) (*Manager, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	store := NewStore(filepath.Join(t.TempDir(), "tokens.json"))
	mgr := NewManager(srv.URL, store, srv.Client(), zerolog.Nop())
	return mgr, srv
}

func authHandler(t *testing.T, refreshCalls *int32) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token/", func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds["username"] != "alice" || creds["password"] != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access": "acc-1", "refresh": "ref-1"})
	})
	mux.HandleFunc("/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(refreshCalls, 1)
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["refresh"] != "ref-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access": "acc-2"})
	})
	mux.HandleFunc("/current-user/", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(User{ID: 7, Username: "alice", Email: "alice@example.com"})
	})
	return mux
}

func TestLoginSuccess(t *testing.T) {
	var refreshCalls int32
	mgr, _ := newTestManager(t, authHandler(t, &refreshCalls))

	sess, err := mgr.Login(context.Background(), "alice", "s3cret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sess.AccessToken != "acc-1" || sess.RefreshToken != "ref-1" {
		t.Errorf("session tokens = %q/%q", sess.AccessToken, sess.RefreshToken)
	}
	if sess.User == nil || sess.User.Username != "alice" {
		t.Errorf("session user = %+v", sess.User)
	}
	if !mgr.Authenticated() {
		t.Error("manager not authenticated after login")
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	var refreshCalls int32
	mgr, _ := newTestManager(t, authHandler(t, &refreshCalls))

	_, err := mgr.Login(context.Background(), "alice", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
	if mgr.Authenticated() {
		t.Error("manager authenticated after rejected login")
	}
}

func TestLoginUnreachable(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "tokens.json"))
	mgr := NewManager("http://127.0.0.1:1", store, nil, zerolog.Nop())

	_, err := mgr.Login(context.Background(), "alice", "s3cret")
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("err = %v, want ErrUnreachable", err)
	}
}

func TestRefreshReplacesOnlyAccessToken(t *testing.T) {
	var refreshCalls int32
	mgr, _ := newTestManager(t, authHandler(t, &refreshCalls))
	if _, err := mgr.Login(context.Background(), "alice", "s3cret"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	token, err := mgr.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if token != "acc-2" {
		t.Errorf("refreshed token = %q, want acc-2", token)
	}
	if mgr.Store().AccessToken() != "acc-2" {
		t.Errorf("stored access token = %q", mgr.Store().AccessToken())
	}
	if mgr.Store().RefreshToken() != "ref-1" {
		t.Errorf("refresh token = %q, must be retained", mgr.Store().RefreshToken())
	}
}

func TestRefreshRejectedLogsOutOnce(t *testing.T) {
	var refreshCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshCalls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	mgr, _ := newTestManager(t, mux)
	if err := mgr.Store().SetTokens("stale", "revoked"); err != nil {
		t.Fatal(err)
	}

	// Two pending requests both hit a 401 and ask for fresh access at the
	// same time. The refresh must go out once, both callers must see
	// SessionExpired, and the session is logged out once, not twice.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	var barrier sync.WaitGroup
	barrier.Add(1)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			barrier.Wait()
			_, errs[i] = mgr.EnsureFreshAccess(context.Background())
		}(i)
	}
	barrier.Done()
	wg.Wait()

	for i, err := range errs {
		if !errors.Is(err, ErrSessionExpired) {
			t.Errorf("caller %d: err = %v, want ErrSessionExpired", i, err)
		}
	}
	if n := atomic.LoadInt32(&refreshCalls); n != 1 {
		t.Errorf("refresh endpoint hit %d times, want 1", n)
	}
	if mgr.Authenticated() {
		t.Error("still authenticated after rejected refresh")
	}
}

func TestConcurrentRefreshIsCoalesced(t *testing.T) {
	var refreshCalls int32
	entered := make(chan struct{})
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&refreshCalls, 1) == 1 {
			close(entered)
		}
		<-release
		_ = json.NewEncoder(w).Encode(map[string]string{"access": "acc-new"})
	})
	mgr, _ := newTestManager(t, mux)
	if err := mgr.Store().SetTokens("stale", "ref-ok"); err != nil {
		t.Fatal(err)
	}

	const callers = 5
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)

	// First caller goes out and parks inside the refresh handler.
	wg.Add(1)
	go func() {
		defer wg.Done()
		tokens[0], errs[0] = mgr.Refresh(context.Background())
	}()
	<-entered

	// The rest arrive while that refresh is in flight; they must join it
	// rather than issue their own.
	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = mgr.Refresh(context.Background())
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if tokens[i] != "acc-new" {
			t.Errorf("caller %d got token %q", i, tokens[i])
		}
	}
	if n := atomic.LoadInt32(&refreshCalls); n != 1 {
		t.Errorf("refresh endpoint hit %d times, want 1 coalesced call", n)
	}
}

func TestRefreshWithoutSession(t *testing.T) {
	var refreshCalls int32
	mgr, _ := newTestManager(t, authHandler(t, &refreshCalls))

	_, err := mgr.Refresh(context.Background())
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}
	if atomic.LoadInt32(&refreshCalls) != 0 {
		t.Error("refresh endpoint should not be called without a refresh token")
	}
}

func TestLogoutSafeFromAnyState(t *testing.T) {
	var refreshCalls int32
	mgr, _ := newTestManager(t, authHandler(t, &refreshCalls))

	mgr.Logout() // anonymous: must not panic or error

	if _, err := mgr.Login(context.Background(), "alice", "s3cret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	mgr.Logout()
	if mgr.Authenticated() {
		t.Error("authenticated after logout")
	}
	mgr.Logout() // repeated logout is fine
}
