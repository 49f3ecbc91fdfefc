package points

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kz-league/cs2kz-api/internal/id"
	"github.com/kz-league/cs2kz-api/internal/platform"
	"github.com/kz-league/cs2kz-api/pkg/record"
)

var ErrNotFound = errors.New("points: no cached distribution")

// Store persists the cached DistributionParameters per (filter,
// leaderboard), read on every points calculation and recomputed only when
// new records materially change the leaderboard (§3).
type Store struct {
	db platform.DBTX
}

func NewStore(db platform.DBTX) *Store {
	return &Store{db: db}
}

// Get loads the cached fit for a leaderboard, or ErrNotFound if none has
// been computed yet.
func (s *Store) Get(ctx context.Context, filterID id.FilterID, leaderboard record.Leaderboard) (DistributionParameters, error) {
	var d DistributionParameters
	err := s.db.QueryRow(ctx, `
		SELECT a, b, loc, scale, top_scale
		FROM distribution_parameters
		WHERE filter_id = $1 AND leaderboard = $2
	`, filterID, leaderboard).Scan(&d.A, &d.B, &d.Loc, &d.Scale, &d.TopScale)
	if errors.Is(err, pgx.ErrNoRows) {
		return DistributionParameters{}, ErrNotFound
	}
	if err != nil {
		return DistributionParameters{}, fmt.Errorf("loading distribution parameters: %w", err)
	}
	return d, nil
}

// Upsert stores a freshly computed fit, replacing any previous one for the
// same (filter, leaderboard).
func (s *Store) Upsert(ctx context.Context, filterID id.FilterID, leaderboard record.Leaderboard, d DistributionParameters) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO distribution_parameters (filter_id, leaderboard, a, b, loc, scale, top_scale, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (filter_id, leaderboard) DO UPDATE SET
			a = EXCLUDED.a, b = EXCLUDED.b, loc = EXCLUDED.loc,
			scale = EXCLUDED.scale, top_scale = EXCLUDED.top_scale, computed_at = EXCLUDED.computed_at
	`, filterID, leaderboard, d.A, d.B, d.Loc, d.Scale, d.TopScale)
	if err != nil {
		return fmt.Errorf("upserting distribution parameters: %w", err)
	}
	return nil
}
