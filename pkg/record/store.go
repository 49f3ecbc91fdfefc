package record

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/kz-league/cs2kz-api/internal/id"
	"github.com/kz-league/cs2kz-api/internal/platform"
)

var ErrNotFound = errors.New("record: not found")

type Store struct {
	db platform.DBTX
}

func NewStore(db platform.DBTX) *Store {
	return &Store{db: db}
}

// styleSetKey canonicalizes a style-checksum combination into a stable
// grouping key for PB lookups, independent of submission order.
func styleSetKey(styleChecksums []uint32) string {
	sorted := append([]uint32(nil), styleChecksums...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	parts := make([]string, len(sorted))
	for i, c := range sorted {
		parts[i] = strconv.FormatUint(uint64(c), 10)
	}
	return strings.Join(parts, ",")
}

// Insert persists r and reports whether it is a new personal best on its
// leaderboard. time and teleports are validated by the caller before this
// point (§4.3 steps 1-4); this method assumes they're already well-formed.
func (s *Store) Insert(ctx context.Context, r Record) (id.RecordID, bool, error) {
	if r.Time <= 0 {
		return 0, false, fmt.Errorf("record: time must be positive, got %f", r.Time)
	}
	if r.Teleports < 0 {
		return 0, false, fmt.Errorf("record: teleports must be non-negative, got %d", r.Teleports)
	}

	leaderboard := LeaderboardOf(r.Teleports)
	key := styleSetKey(r.StyleChecksums)

	var previousBest *float64
	err := s.db.QueryRow(ctx, `
		SELECT MIN(time) FROM records
		WHERE filter_id = $1 AND player_id = $2 AND leaderboard = $3 AND style_set = $4
	`, r.FilterID, r.PlayerID, leaderboard, key).Scan(&previousBest)
	if err != nil {
		return 0, false, fmt.Errorf("loading previous best: %w", err)
	}
	isPB := previousBest == nil || r.Time < *previousBest

	var recordID id.RecordID
	err = s.db.QueryRow(ctx, `
		INSERT INTO records (filter_id, player_id, server_id, session_id, plugin_version_id, leaderboard, style_set, teleports, time, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		RETURNING id
	`, r.FilterID, r.PlayerID, r.ServerID, r.SessionID.String(), r.PluginVersionID, leaderboard, key, r.Teleports, r.Time).
		Scan(&recordID)
	if err != nil {
		return 0, false, fmt.Errorf("inserting record: %w", err)
	}

	return recordID, isPB, nil
}

// Rank returns the 1-based rank of time among PBs on (filterID,
// leaderboard), and the leaderboard's total size, both computed over the
// distinct best time per player.
func (s *Store) Rank(ctx context.Context, filterID id.FilterID, leaderboard Leaderboard, time float64) (rank, size int32, err error) {
	err = s.db.QueryRow(ctx, `
		WITH pbs AS (
			SELECT player_id, MIN(time) AS best
			FROM records
			WHERE filter_id = $1 AND leaderboard = $2
			GROUP BY player_id
		)
		SELECT
			(SELECT COUNT(*) FROM pbs WHERE best < $3) + 1,
			(SELECT COUNT(*) FROM pbs)
	`, filterID, leaderboard, time).Scan(&rank, &size)
	if err != nil {
		return 0, 0, fmt.Errorf("computing rank: %w", err)
	}
	return rank, size, nil
}

// Times returns every distinct PB time on (filterID, leaderboard), sorted
// ascending, for feeding the NIG distribution fit.
func (s *Store) Times(ctx context.Context, filterID id.FilterID, leaderboard Leaderboard) ([]float64, error) {
	rows, err := s.db.Query(ctx, `
		SELECT MIN(time)
		FROM records
		WHERE filter_id = $1 AND leaderboard = $2
		GROUP BY player_id
		ORDER BY MIN(time) ASC
	`, filterID, leaderboard)
	if err != nil {
		return nil, fmt.Errorf("loading times: %w", err)
	}
	defer rows.Close()

	var times []float64
	for rows.Next() {
		var t float64
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		times = append(times, t)
	}
	return times, rows.Err()
}

// List returns a page of records ordered by id, plus the total row count
// for pagination.
func (s *Store) List(ctx context.Context, offset, limit int) ([]Record, int, error) {
	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM records`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting records: %w", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, filter_id, player_id, server_id, session_id, plugin_version_id, teleports, time, created_at
		FROM records ORDER BY id ASC OFFSET $1 LIMIT $2
	`, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("listing records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.FilterID, &r.PlayerID, &r.ServerID, &r.SessionID, &r.PluginVersionID, &r.Teleports, &r.Time, &r.CreatedAt); err != nil {
			return nil, 0, err
		}
		records = append(records, r)
	}
	return records, total, rows.Err()
}

// Get loads a single record by id.
func (s *Store) Get(ctx context.Context, recordID id.RecordID) (Record, error) {
	var r Record
	err := s.db.QueryRow(ctx, `
		SELECT id, filter_id, player_id, server_id, session_id, plugin_version_id, teleports, time, created_at
		FROM records WHERE id = $1
	`, recordID).Scan(&r.ID, &r.FilterID, &r.PlayerID, &r.ServerID, &r.SessionID, &r.PluginVersionID, &r.Teleports, &r.Time, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("loading record: %w", err)
	}
	return r, nil
}
