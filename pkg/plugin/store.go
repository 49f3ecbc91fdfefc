package plugin

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/jackc/pgx/v5"

	"github.com/kz-league/cs2kz-api/internal/id"
	"github.com/kz-league/cs2kz-api/internal/platform"
	"github.com/kz-league/cs2kz-api/pkg/kzmap"
)

var (
	ErrNotFound           = errors.New("plugin: not found")
	ErrAlreadyExists      = errors.New("plugin: version already exists")
	ErrOlderThanLatest    = errors.New("plugin: version is older than the latest for this game")
)

type Store struct {
	db platform.DBTX
}

func NewStore(db platform.DBTX) *Store {
	return &Store{db: db}
}

// CreateParams is a submitted plugin build, keyed per-OS checksums for
// every mode and style it supports.
type CreateParams struct {
	Game            kzmap.Game
	SemverRaw       string
	GitRevision     string
	BinaryChecksums ChecksumPerOS
	ModeChecksums   map[kzmap.Mode]ChecksumPerOS
	StyleChecksums  map[kzmap.Style]ChecksumPerOS
}

// Create enforces the strict-monotone-semver invariant: a newly submitted
// version must compare greater than the latest existing version for the
// same game. Duplicates (equal semver) are rejected with ErrAlreadyExists;
// anything not strictly greater than latest is ErrOlderThanLatest.
func (s *Store) Create(ctx context.Context, p CreateParams) (Version, error) {
	newVersion, err := semver.NewVersion(p.SemverRaw)
	if err != nil {
		return Version{}, fmt.Errorf("parsing semver: %w", err)
	}

	latest, err := s.latest(ctx, p.Game)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Version{}, err
	}
	if latest.Semver != nil {
		switch newVersion.Compare(latest.Semver) {
		case 0:
			return Version{}, ErrAlreadyExists
		case -1:
			return Version{}, ErrOlderThanLatest
		}
	}

	var v Version
	v.Game = p.Game
	v.SemverRaw = p.SemverRaw
	v.Semver = newVersion
	v.GitRevision = p.GitRevision

	err = s.db.QueryRow(ctx, `
		INSERT INTO plugin_versions (game, semver, git_revision)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, p.Game, p.SemverRaw, p.GitRevision).Scan(&v.ID, &v.CreatedAt)
	if err != nil {
		return Version{}, fmt.Errorf("inserting plugin version: %w", err)
	}

	v.BinaryChecksums = p.BinaryChecksums
	for os, checksum := range p.BinaryChecksums {
		if _, err := s.db.Exec(ctx, `
			INSERT INTO plugin_binary_checksums (version_id, os, checksum)
			VALUES ($1, $2, $3)
		`, v.ID, os, checksum); err != nil {
			return Version{}, fmt.Errorf("inserting binary checksum: %w", err)
		}
	}

	v.ModeChecksums = p.ModeChecksums
	for mode, perOS := range p.ModeChecksums {
		for os, checksum := range perOS {
			if _, err := s.db.Exec(ctx, `
				INSERT INTO plugin_mode_checksums (version_id, mode, os, checksum)
				VALUES ($1, $2, $3, $4)
			`, v.ID, mode, os, checksum); err != nil {
				return Version{}, fmt.Errorf("inserting mode checksum: %w", err)
			}
		}
	}

	v.StyleChecksums = p.StyleChecksums
	for style, perOS := range p.StyleChecksums {
		for os, checksum := range perOS {
			if _, err := s.db.Exec(ctx, `
				INSERT INTO plugin_style_checksums (version_id, style, os, checksum)
				VALUES ($1, $2, $3, $4)
			`, v.ID, style, os, checksum); err != nil {
				return Version{}, fmt.Errorf("inserting style checksum: %w", err)
			}
		}
	}

	return v, nil
}

func (s *Store) latest(ctx context.Context, game kzmap.Game) (Version, error) {
	var v Version
	err := s.db.QueryRow(ctx, `
		SELECT id, game, semver, git_revision, created_at
		FROM plugin_versions
		WHERE game = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, game).Scan(&v.ID, &v.Game, &v.SemverRaw, &v.GitRevision, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Version{}, ErrNotFound
	}
	if err != nil {
		return Version{}, fmt.Errorf("loading latest plugin version: %w", err)
	}
	v.Semver, err = semver.NewVersion(v.SemverRaw)
	if err != nil {
		return Version{}, fmt.Errorf("parsing stored semver: %w", err)
	}
	return v, nil
}

// ResolvedChecksum is what a Hello handshake's plugin_checksum resolves to.
type ResolvedChecksum struct {
	VersionID id.PluginVersionID
	Game      kzmap.Game
	OS        OS
}

// ResolveChecksum maps a Hello handshake's plugin_checksum — the build's own
// binary fingerprint, distinct from the per-mode/per-style checksums used
// later to validate SubmitRecord — to the version, game, and OS it belongs
// to. An unmatched checksum is fatal to a handshake per §4.2.
func (s *Store) ResolveChecksum(ctx context.Context, checksum uint32) (ResolvedChecksum, error) {
	var r ResolvedChecksum
	err := s.db.QueryRow(ctx, `
		SELECT pv.id, pv.game, bc.os
		FROM plugin_binary_checksums bc
		JOIN plugin_versions pv ON pv.id = bc.version_id
		WHERE bc.checksum = $1
	`, checksum).Scan(&r.VersionID, &r.Game, &r.OS)
	if errors.Is(err, pgx.ErrNoRows) {
		return ResolvedChecksum{}, ErrNotFound
	}
	if err != nil {
		return ResolvedChecksum{}, fmt.Errorf("resolving plugin checksum: %w", err)
	}
	return r, nil
}

// ChecksumsForVersion returns the known mode/style checksum sets for a
// version on one OS, used both for HelloAck and for SubmitRecord
// validation.
func (s *Store) ChecksumsForVersion(ctx context.Context, versionID id.PluginVersionID, os OS) (modeChecksums, styleChecksums map[string]uint32, err error) {
	modeChecksums = make(map[string]uint32)
	rows, err := s.db.Query(ctx, `SELECT mode, checksum FROM plugin_mode_checksums WHERE version_id = $1 AND os = $2`, versionID, os)
	if err != nil {
		return nil, nil, fmt.Errorf("loading mode checksums: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var mode string
		var checksum uint32
		if err := rows.Scan(&mode, &checksum); err != nil {
			return nil, nil, err
		}
		modeChecksums[mode] = checksum
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	styleChecksums = make(map[string]uint32)
	styleRows, err := s.db.Query(ctx, `SELECT style, checksum FROM plugin_style_checksums WHERE version_id = $1 AND os = $2`, versionID, os)
	if err != nil {
		return nil, nil, fmt.Errorf("loading style checksums: %w", err)
	}
	defer styleRows.Close()
	for styleRows.Next() {
		var style string
		var checksum uint32
		if err := styleRows.Scan(&style, &checksum); err != nil {
			return nil, nil, err
		}
		styleChecksums[style] = checksum
	}
	if err := styleRows.Err(); err != nil {
		return nil, nil, err
	}

	return modeChecksums, styleChecksums, nil
}
