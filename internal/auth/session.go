package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrInvalidCredentials means the token endpoint rejected the
	// username/password pair. The caller stays on the login screen.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrSessionExpired means the refresh token itself was rejected. The
	// session has been logged out; the user must re-authenticate.
	ErrSessionExpired = errors.New("session expired")

	// ErrUnreachable means the authentication endpoint could not be
	// reached at the transport level.
	ErrUnreachable = errors.New("authentication service unreachable")
)

// Session is a read-only snapshot of the authenticated state.
type Session struct {
	AccessToken  string
	RefreshToken string
	User         *User
}

// Manager orchestrates login, logout, and token refresh against the token
// endpoints. Concurrent refresh attempts are coalesced into a single
// in-flight call whose result every waiter shares.
type Manager struct {
	baseURL string
	store   *Store
	http    *http.Client
	log     zerolog.Logger

	refreshGroup singleflight.Group
}

// NewManager builds a Manager for the API at baseURL (no trailing slash).
// httpClient may be nil, in which case a 15-second-timeout client is used.
func NewManager(baseURL string, store *Store, httpClient *http.Client, log zerolog.Logger) *Manager {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Manager{
		baseURL: baseURL,
		store:   store,
		http:    httpClient,
		log:     log,
	}
}

// Store exposes the session store for read access.
func (m *Manager) Store() *Store { return m.store }

// Authenticated reports whether a session is active.
func (m *Manager) Authenticated() bool { return m.store.Authenticated() }

// Login exchanges credentials for a token pair, caches the user profile, and
// persists the session.
func (m *Manager) Login(ctx context.Context, username, password string) (*Session, error) {
	var tokens struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	err := m.postJSON(ctx, "/token/", map[string]string{
		"username": username,
		"password": password,
	}, &tokens)
	if err != nil {
		if errors.Is(err, errUnauthorized) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := m.store.SetTokens(tokens.Access, tokens.Refresh); err != nil {
		return nil, fmt.Errorf("persist tokens: %w", err)
	}

	user, err := m.CurrentUser(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("login succeeded but profile fetch failed")
		return nil, err
	}
	m.store.SetUser(user)

	m.log.Info().Str("username", user.Username).Msg("logged in")
	return &Session{
		AccessToken:  tokens.Access,
		RefreshToken: tokens.Refresh,
		User:         user,
	}, nil
}

// Logout clears all session data. It always succeeds from the caller's
// perspective and is safe in any state.
func (m *Manager) Logout() {
	if err := m.store.Clear(); err != nil {
		m.log.Warn().Err(err).Msg("failed to remove token storage")
	}
	m.log.Info().Msg("logged out")
}

// Refresh obtains a new access token using the stored refresh token. On
// success only the access token is replaced. If the refresh token is
// rejected the session is logged out exactly once and ErrSessionExpired is
// returned. Simultaneous callers share one in-flight refresh.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	token, err, _ := m.refreshGroup.Do("refresh", func() (interface{}, error) {
		return m.doRefresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

// EnsureFreshAccess is the retry contract for data access: called once per
// request after a 401, it refreshes and returns the token to retry with.
// A second 401 after the retry is terminal for that request.
func (m *Manager) EnsureFreshAccess(ctx context.Context) (string, error) {
	return m.Refresh(ctx)
}

func (m *Manager) doRefresh(ctx context.Context) (string, error) {
	refresh := m.store.RefreshToken()
	if refresh == "" {
		return "", ErrSessionExpired
	}

	var resp struct {
		Access string `json:"access"`
	}
	err := m.postJSON(ctx, "/token/refresh/", map[string]string{"refresh": refresh}, &resp)
	if err != nil {
		if errors.Is(err, errUnauthorized) {
			m.Logout()
			return "", ErrSessionExpired
		}
		return "", err
	}

	if err := m.store.SetAccessToken(resp.Access); err != nil {
		return "", fmt.Errorf("persist access token: %w", err)
	}
	m.log.Debug().Msg("access token refreshed")
	return resp.Access, nil
}

// CurrentUser fetches the authenticated user's profile.
func (m *Manager) CurrentUser(ctx context.Context) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/current-user/", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+m.store.AccessToken())

	resp, err := m.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("current-user: status %d", resp.StatusCode)
	}
	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

// errUnauthorized is internal: callers translate it into the operation's
// own auth error.
var errUnauthorized = errors.New("unauthorized")

func (m *Manager) postJSON(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errUnauthorized
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
