package kzmap

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kz-league/cs2kz-api/internal/id"
	"github.com/kz-league/cs2kz-api/internal/platform"
)

// ErrNotFound is returned when a lookup finds no matching row.
var ErrNotFound = errors.New("kzmap: not found")

// Store persists maps, courses, and filters.
type Store struct {
	db platform.DBTX
}

func NewStore(db platform.DBTX) *Store {
	return &Store{db: db}
}

// CreateMapParams describes a map submission with its initial courses and
// filters, created atomically as the Map↔Course↔Filter graph §9 requires.
type CreateMapParams struct {
	WorkshopID  uint32
	Name        string
	Description string
	Game        Game
	Checksum    uint32
	CreatedBy   id.SteamID
	Courses     []CourseParams
}

type CourseParams struct {
	LocalID     int32
	Name        string
	Description string
	Mappers     []id.SteamID
	Filters     []FilterParams
}

type FilterParams struct {
	Mode    Mode
	NubTier Tier
	ProTier Tier
	Ranked  bool
	Notes   string
}

// Create inserts a new map, its courses, and their filters inside a single
// transaction, since the invariant that a Course's LocalID is stable and
// its Filters exist from the moment the map exists spans all three tables.
func (s *Store) Create(ctx context.Context, tx pgx.Tx, p CreateMapParams) (Map, error) {
	var m Map
	err := tx.QueryRow(ctx, `
		INSERT INTO maps (workshop_id, name, description, game, state, checksum, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, workshop_id, name, description, game, state, checksum, created_by, created_at
	`, p.WorkshopID, p.Name, p.Description, p.Game, Graveyard, p.Checksum, p.CreatedBy).Scan(
		&m.ID, &m.WorkshopID, &m.Name, &m.Description, &m.Game, &m.State, &m.Checksum, &m.CreatedBy, &m.CreatedAt,
	)
	if err != nil {
		return Map{}, fmt.Errorf("inserting map: %w", err)
	}

	for _, cp := range p.Courses {
		course, err := s.createCourse(ctx, tx, m.ID, cp)
		if err != nil {
			return Map{}, err
		}
		m.Courses = append(m.Courses, course)
	}

	return m, nil
}

func (s *Store) createCourse(ctx context.Context, tx pgx.Tx, mapID id.MapID, p CourseParams) (Course, error) {
	var c Course
	err := tx.QueryRow(ctx, `
		INSERT INTO courses (map_id, local_id, name, description)
		VALUES ($1, $2, $3, $4)
		RETURNING id, local_id, name, description
	`, mapID, p.LocalID, p.Name, p.Description).Scan(&c.ID, &c.LocalID, &c.Name, &c.Description)
	if err != nil {
		return Course{}, fmt.Errorf("inserting course: %w", err)
	}

	c.Mappers = make(map[id.SteamID]string, len(p.Mappers))
	for _, mapperID := range p.Mappers {
		if _, err := tx.Exec(ctx, `INSERT INTO course_mappers (course_id, steam_id) VALUES ($1, $2)`, c.ID, mapperID); err != nil {
			return Course{}, fmt.Errorf("inserting course mapper: %w", err)
		}
		c.Mappers[mapperID] = ""
	}

	for _, fp := range p.Filters {
		var f Filter
		err := tx.QueryRow(ctx, `
			INSERT INTO filters (course_id, mode, nub_tier, pro_tier, ranked, notes)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, mode, nub_tier, pro_tier, ranked, notes
		`, c.ID, fp.Mode, fp.NubTier, fp.ProTier, fp.Ranked, fp.Notes).Scan(
			&f.ID, &f.Mode, &f.NubTier, &f.ProTier, &f.Ranked, &f.Notes,
		)
		if err != nil {
			return Course{}, fmt.Errorf("inserting filter: %w", err)
		}
		c.Filters = append(c.Filters, f)
	}

	return c, nil
}

// Get loads a map by ID, without its courses; the returned Map's Courses
// is left empty.
func (s *Store) Get(ctx context.Context, mapID id.MapID) (Map, error) {
	var m Map
	err := s.db.QueryRow(ctx, `
		SELECT id, workshop_id, name, description, game, state, checksum, created_by, created_at
		FROM maps WHERE id = $1
	`, mapID).Scan(&m.ID, &m.WorkshopID, &m.Name, &m.Description, &m.Game, &m.State, &m.Checksum, &m.CreatedBy, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Map{}, ErrNotFound
	}
	if err != nil {
		return Map{}, fmt.Errorf("loading map: %w", err)
	}
	return m, nil
}

// GetByName resolves the subset of map state a server-protocol connection
// needs after a map change: id, name, and checksum.
func (s *Store) GetByName(ctx context.Context, name string) (*MapInfoRow, error) {
	var row MapInfoRow
	err := s.db.QueryRow(ctx, `SELECT id, name, checksum FROM maps WHERE name = $1`, name).
		Scan(&row.ID, &row.Name, &row.Checksum)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolving map by name: %w", err)
	}
	return &row, nil
}

// MapInfoRow is the narrow projection serverproto.Deps needs; it avoids
// pkg/serverproto importing this package's full Map type.
type MapInfoRow struct {
	ID       int32
	Name     string
	Checksum uint32
}

// SetState persists a validated state transition. Callers must call
// Transition first; SetState does not re-check permissions.
func (s *Store) SetState(ctx context.Context, mapID id.MapID, newState State) error {
	tag, err := s.db.Exec(ctx, `UPDATE maps SET state = $1 WHERE id = $2`, newState, mapID)
	if err != nil {
		return fmt.Errorf("updating map state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateDetails edits a map's mutable metadata. Callers must check the
// freeze invariant (State.Frozen) before calling this; UpdateDetails itself
// performs no permission or state checks.
func (s *Store) UpdateDetails(ctx context.Context, mapID id.MapID, name, description string) error {
	tag, err := s.db.Exec(ctx, `UPDATE maps SET name = $2, description = $3 WHERE id = $1`, mapID, name, description)
	if err != nil {
		return fmt.Errorf("updating map details: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// IsMapper reports whether steamID is one of the map's assigned mappers,
// used as the dynamic check behind mapper-initiated transitions.
func (s *Store) IsMapper(ctx context.Context, mapID id.MapID, steamID id.SteamID) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM course_mappers cm
			JOIN courses c ON c.id = cm.course_id
			WHERE c.map_id = $1 AND cm.steam_id = $2
		)
	`, mapID, steamID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking mapper: %w", err)
	}
	return exists, nil
}

// List returns a page of maps (without courses) ordered by id, plus the
// total row count for pagination.
func (s *Store) List(ctx context.Context, offset, limit int) ([]Map, int, error) {
	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM maps`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting maps: %w", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, workshop_id, name, description, game, state, checksum, created_by, created_at
		FROM maps ORDER BY id ASC OFFSET $1 LIMIT $2
	`, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("listing maps: %w", err)
	}
	defer rows.Close()

	var maps []Map
	for rows.Next() {
		var m Map
		if err := rows.Scan(&m.ID, &m.WorkshopID, &m.Name, &m.Description, &m.Game, &m.State, &m.Checksum, &m.CreatedBy, &m.CreatedAt); err != nil {
			return nil, 0, err
		}
		maps = append(maps, m)
	}
	return maps, total, rows.Err()
}

// ResolvedFilter is what SubmitRecord needs from a resolved filter: its id
// plus the NUB/PRO tiers the points formulas scale against (§4.3).
type ResolvedFilter struct {
	ID      id.FilterID
	NubTier Tier
	ProTier Tier
}

// ResolveFilter implements §4.3 step 3: resolve a course's local_id (scoped
// to the map currently loaded on a server) plus a mode into a concrete
// filter, tiers included.
func (s *Store) ResolveFilter(ctx context.Context, mapID id.MapID, courseLocalID int32, mode Mode) (ResolvedFilter, error) {
	var rf ResolvedFilter
	err := s.db.QueryRow(ctx, `
		SELECT f.id, f.nub_tier, f.pro_tier FROM filters f
		JOIN courses c ON c.id = f.course_id
		WHERE c.map_id = $1 AND c.local_id = $2 AND f.mode = $3
	`, mapID, courseLocalID, mode).Scan(&rf.ID, &rf.NubTier, &rf.ProTier)
	if errors.Is(err, pgx.ErrNoRows) {
		return ResolvedFilter{}, ErrNotFound
	}
	if err != nil {
		return ResolvedFilter{}, fmt.Errorf("resolving filter: %w", err)
	}
	return rf, nil
}
