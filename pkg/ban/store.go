package ban

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kz-league/cs2kz-api/internal/id"
	"github.com/kz-league/cs2kz-api/internal/platform"
)

var (
	ErrNotFound           = errors.New("ban: not found")
	ErrPlayerAlreadyBanned = errors.New("ban: player already has an active ban")
	ErrExpiresInThePast    = errors.New("ban: expires_at is in the past")
	ErrAlreadyExpired      = errors.New("ban: already expired")
	ErrAlreadyReverted     = errors.New("ban: already reverted")
)

type Store struct {
	db platform.DBTX
}

func NewStore(db platform.DBTX) *Store {
	return &Store{db: db}
}

// CreateParams is an inbound ban request, before the active-ban-uniqueness
// check and row insertion.
type CreateParams struct {
	PlayerID  id.SteamID
	Reason    string
	CreatedBy CreatedBy
	ExpiresAt *time.Time
}

// Create enforces the invariant "∀ Ban B on player P: while B is active,
// creating another ban on P fails with PlayerAlreadyBanned" and "a ban
// expiring in the past is rejected outright" before inserting.
func (s *Store) Create(ctx context.Context, now time.Time, p CreateParams) (Ban, error) {
	if p.ExpiresAt != nil && !p.ExpiresAt.After(now) {
		return Ban{}, ErrExpiresInThePast
	}

	var hasActive bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bans
			WHERE player_id = $1
			  AND unban_reverted_at IS NULL
			  AND (expires_at IS NULL OR expires_at > $2)
		)
	`, p.PlayerID, now).Scan(&hasActive)
	if err != nil {
		return Ban{}, fmt.Errorf("checking existing bans: %w", err)
	}
	if hasActive {
		return Ban{}, ErrPlayerAlreadyBanned
	}

	b := Ban{
		PlayerID:  p.PlayerID,
		Reason:    p.Reason,
		CreatedBy: p.CreatedBy,
		ServerID:  p.CreatedBy.ServerID,
		ExpiresAt: p.ExpiresAt,
	}
	err = s.db.QueryRow(ctx, `
		INSERT INTO bans (player_id, reason, created_by_kind, server_id, plugin_version_id, admin_id, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, p.PlayerID, p.Reason, p.CreatedBy.Kind, p.CreatedBy.ServerID, p.CreatedBy.PluginVersion, p.CreatedBy.AdminID, p.ExpiresAt).
		Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return Ban{}, fmt.Errorf("inserting ban: %w", err)
	}
	return b, nil
}

// Revert marks a ban reverted. It is rejected if the ban is already
// expired (ErrAlreadyExpired) or already reverted (ErrAlreadyReverted).
func (s *Store) Revert(ctx context.Context, now time.Time, banID id.BanID, revertedBy id.SteamID, reason string) error {
	b, err := s.get(ctx, banID)
	if err != nil {
		return err
	}
	if b.Unban != nil {
		return ErrAlreadyReverted
	}
	if b.ExpiresAt != nil && !b.ExpiresAt.After(now) {
		return ErrAlreadyExpired
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE bans SET unban_reason = $1, unban_reverted_by = $2, unban_reverted_at = $3
		WHERE id = $4
	`, reason, revertedBy, now, banID)
	if err != nil {
		return fmt.Errorf("reverting ban: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) get(ctx context.Context, banID id.BanID) (Ban, error) {
	var b Ban
	var unbanReason *string
	var unbanRevertedBy *id.SteamID
	var unbanRevertedAt *time.Time
	err := s.db.QueryRow(ctx, `
		SELECT id, player_id, reason, expires_at, created_at, unban_reason, unban_reverted_by, unban_reverted_at
		FROM bans WHERE id = $1
	`, banID).Scan(&b.ID, &b.PlayerID, &b.Reason, &b.ExpiresAt, &b.CreatedAt, &unbanReason, &unbanRevertedBy, &unbanRevertedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Ban{}, ErrNotFound
	}
	if err != nil {
		return Ban{}, fmt.Errorf("loading ban: %w", err)
	}
	if unbanReason != nil {
		b.Unban = &Unban{Reason: *unbanReason, RevertedBy: *unbanRevertedBy, RevertedAt: *unbanRevertedAt}
	}
	return b, nil
}

// IsActiveForPlayer is the fast-path check the server-protocol handshake
// uses to decide a player's is_banned flag.
func (s *Store) IsActiveForPlayer(ctx context.Context, now time.Time, playerID id.SteamID) (bool, error) {
	var active bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bans
			WHERE player_id = $1
			  AND unban_reverted_at IS NULL
			  AND (expires_at IS NULL OR expires_at > $2)
		)
	`, playerID, now).Scan(&active)
	if err != nil {
		return false, fmt.Errorf("checking active ban: %w", err)
	}
	return active, nil
}
