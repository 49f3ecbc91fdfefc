package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kz-league/cs2kz-api/internal/id"
	"github.com/kz-league/cs2kz-api/internal/perm"
	"github.com/kz-league/cs2kz-api/internal/platform"
)

// ErrNotFound is returned by Store methods when no matching row exists.
var ErrNotFound = errors.New("auth: not found")

// Store is the Postgres-backed persistence layer for users and sessions.
type Store struct {
	db platform.DBTX
}

// NewStore wraps a database handle (pool or transaction) in a Store.
func NewStore(db platform.DBTX) *Store {
	return &Store{db: db}
}

// UpsertUser inserts a new user or refreshes the name of an existing one,
// per the "name updates on each login" invariant. Permissions and budget are
// left untouched on conflict.
func (s *Store) UpsertUser(ctx context.Context, steamID id.SteamID, name string) (User, error) {
	const q = `
		INSERT INTO users (steam_id, name, permissions, server_budget, created_at)
		VALUES ($1, $2, 0, 0, now())
		ON CONFLICT (steam_id) DO UPDATE SET name = EXCLUDED.name
		RETURNING steam_id, name, permissions, server_budget, created_at, email`

	return s.scanUser(s.db.QueryRow(ctx, q, steamID.Uint64(), name))
}

// GetUser fetches a user by SteamID.
func (s *Store) GetUser(ctx context.Context, steamID id.SteamID) (User, error) {
	const q = `SELECT steam_id, name, permissions, server_budget, created_at, email
		FROM users WHERE steam_id = $1`
	return s.scanUser(s.db.QueryRow(ctx, q, steamID.Uint64()))
}

func (s *Store) scanUser(row pgx.Row) (User, error) {
	var (
		u           User
		rawSteamID  uint64
		permissions uint64
	)
	err := row.Scan(&rawSteamID, &u.Name, &permissions, &u.ServerBudget, &u.CreatedAt, &u.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("scanning user: %w", err)
	}
	u.ID = id.SteamID(rawSteamID)
	u.Permissions = perm.Permissions(permissions)
	return u, nil
}

// sessionRow mirrors the sessions table.
type sessionRow struct {
	ID        id.SessionID
	UserID    id.SteamID
	ExpiresAt time.Time
}

// CreateSession inserts a new session row with the given sliding-expiry window.
func (s *Store) CreateSession(ctx context.Context, sessionID id.SessionID, userID id.SteamID, maxAge time.Duration) (time.Time, error) {
	expiresAt := time.Now().Add(maxAge)
	const q = `INSERT INTO sessions (id, user_id, expires_at) VALUES ($1, $2, $3)`
	if _, err := s.db.Exec(ctx, q, sessionID.String(), userID.Uint64(), expiresAt); err != nil {
		return time.Time{}, fmt.Errorf("creating session: %w", err)
	}
	return expiresAt, nil
}

// GetSession loads a session and the user it belongs to, provided it has not
// expired. Expiry is the sole validity signal — there is no separate
// revocation flag.
func (s *Store) GetSession(ctx context.Context, sessionID id.SessionID) (sessionRow, User, error) {
	const q = `
		SELECT s.id, s.user_id, s.expires_at,
		       u.name, u.permissions, u.server_budget, u.created_at, u.email
		FROM sessions s
		JOIN users u ON u.steam_id = s.user_id
		WHERE s.id = $1 AND s.expires_at > now()`

	var (
		row         sessionRow
		rawSteamID  uint64
		u           User
		permissions uint64
	)
	err := s.db.QueryRow(ctx, q, sessionID.String()).Scan(
		&row.ID, &rawSteamID, &row.ExpiresAt,
		&u.Name, &permissions, &u.ServerBudget, &u.CreatedAt, &u.Email,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return sessionRow{}, User{}, ErrNotFound
	}
	if err != nil {
		return sessionRow{}, User{}, fmt.Errorf("scanning session: %w", err)
	}

	u.ID = id.SteamID(rawSteamID)
	u.Permissions = perm.Permissions(permissions)
	row.UserID = u.ID
	return row, u, nil
}

// RefreshSession slides the expiry window forward from now, implementing the
// sliding-expiry invariant.
func (s *Store) RefreshSession(ctx context.Context, sessionID id.SessionID, maxAge time.Duration) (time.Time, error) {
	expiresAt := time.Now().Add(maxAge)
	const q = `UPDATE sessions SET expires_at = $2 WHERE id = $1 AND expires_at > now()`
	tag, err := s.db.Exec(ctx, q, sessionID.String(), expiresAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("refreshing session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return time.Time{}, ErrNotFound
	}
	return expiresAt, nil
}

// DeleteSession expires a session by setting its expires_at to now,
// implementing logout. The row itself is kept.
func (s *Store) DeleteSession(ctx context.Context, sessionID id.SessionID) error {
	const q = `UPDATE sessions SET expires_at = now() WHERE id = $1 AND expires_at > now()`
	_, err := s.db.Exec(ctx, q, sessionID.String())
	return err
}
