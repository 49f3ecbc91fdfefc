package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/kz-league/cs2kz-api/internal/id"
)

// SessionManager issues, validates, refreshes, and clears DB-backed,
// sliding-expiry cookie sessions. Unlike the teacher's JWT-based
// SessionManager, the cookie itself is opaque (a raw ULID); the database row
// is the sole source of truth for validity, which is what lets a session be
// revoked by setting a single row's expires_at instead of waiting out a
// token's lifetime.
type SessionManager struct {
	store      *Store
	cookieName string
	playerName string
	maxAge     time.Duration
	secure     bool
}

// NewSessionManager builds a SessionManager. secure controls whether issued
// cookies carry the Secure attribute; it should be true in production and
// may be false for local HTTP development.
func NewSessionManager(store *Store, cookieName, playerCookieName string, maxAge time.Duration, secure bool) *SessionManager {
	return &SessionManager{
		store:      store,
		cookieName: cookieName,
		playerName: playerCookieName,
		maxAge:     maxAge,
		secure:     secure,
	}
}

// Issue creates a new session for user and sets both the opaque session
// cookie and the informational, non-HttpOnly "kz-player" cookie the spec
// describes for client-side display of the logged-in player.
func (sm *SessionManager) Issue(ctx context.Context, w http.ResponseWriter, user User) error {
	sessionID := id.NewSessionID()
	expiresAt, err := sm.store.CreateSession(ctx, sessionID, user.ID, sm.maxAge)
	if err != nil {
		return err
	}

	sm.setCookie(w, sessionID.String(), expiresAt)
	http.SetCookie(w, &http.Cookie{
		Name:     sm.playerName,
		Value:    user.ID.String(),
		Path:     "/",
		Expires:  expiresAt,
		Secure:   sm.secure,
		SameSite: http.SameSiteStrictMode,
		HttpOnly: false,
	})
	return nil
}

// Authenticate validates the session cookie on r, sliding its expiry
// forward, and returns the authenticated user.
func (sm *SessionManager) Authenticate(ctx context.Context, w http.ResponseWriter, r *http.Request) (User, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if err != nil {
		return User{}, ErrNotFound
	}

	sessionID, err := id.ParseSessionID(cookie.Value)
	if err != nil {
		return User{}, ErrNotFound
	}

	session, user, err := sm.store.GetSession(ctx, sessionID)
	if err != nil {
		return User{}, err
	}

	expiresAt, err := sm.store.RefreshSession(ctx, session.ID, sm.maxAge)
	if err == nil {
		sm.setCookie(w, sessionID.String(), expiresAt)
	}

	return user, nil
}

// Clear expires the session row and both cookies, implementing logout.
func (sm *SessionManager) Clear(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	cookie, err := r.Cookie(sm.cookieName)
	if err == nil {
		if sessionID, err := id.ParseSessionID(cookie.Value); err == nil {
			_ = sm.store.DeleteSession(ctx, sessionID)
		}
	}

	sm.setCookie(w, "", time.Unix(0, 0))
	http.SetCookie(w, &http.Cookie{
		Name:     sm.playerName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		Secure:   sm.secure,
		SameSite: http.SameSiteStrictMode,
	})
	return nil
}

func (sm *SessionManager) setCookie(w http.ResponseWriter, value string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sm.cookieName,
		Value:    value,
		Path:     "/",
		Expires:  expiresAt,
		Secure:   sm.secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}
