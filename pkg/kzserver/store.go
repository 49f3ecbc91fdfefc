package kzserver

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/kz-league/cs2kz-api/internal/id"
	"github.com/kz-league/cs2kz-api/internal/platform"
)

var (
	ErrNotFound             = errors.New("kzserver: not found")
	ErrNameAlreadyInUse     = errors.New("kzserver: name already in use")
	ErrHostPortAlreadyInUse = errors.New("kzserver: host and port already in use")
	ErrInvalidAccessKey     = errors.New("kzserver: invalid access key")
)

type Store struct {
	db platform.DBTX
}

func NewStore(db platform.DBTX) *Store {
	return &Store{db: db}
}

// CreateParams is an inbound server registration, per spec §6 example 2.
type CreateParams struct {
	Name    string
	Host    string
	Port    uint16
	OwnerID id.SteamID
}

// Create registers a server and mints a fresh access key. The plaintext key
// is returned exactly once; only its bcrypt hash is persisted.
func (s *Store) Create(ctx context.Context, p CreateParams) (Server, string, error) {
	var nameTaken, hostPortTaken bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM servers WHERE name = $1)`, p.Name).Scan(&nameTaken)
	if err != nil {
		return Server{}, "", fmt.Errorf("checking name: %w", err)
	}
	if nameTaken {
		return Server{}, "", ErrNameAlreadyInUse
	}
	err = s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM servers WHERE host = $1 AND port = $2)`, p.Host, p.Port).Scan(&hostPortTaken)
	if err != nil {
		return Server{}, "", fmt.Errorf("checking host/port: %w", err)
	}
	if hostPortTaken {
		return Server{}, "", ErrHostPortAlreadyInUse
	}

	plaintext, hash, err := generateAccessKey()
	if err != nil {
		return Server{}, "", fmt.Errorf("generating access key: %w", err)
	}

	srv := Server{Name: p.Name, Host: p.Host, Port: p.Port, OwnerID: p.OwnerID, AccessKey: hash}
	err = s.db.QueryRow(ctx, `
		INSERT INTO servers (name, host, port, owner_id, access_key_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, p.Name, p.Host, p.Port, p.OwnerID, hash).Scan(&srv.ID, &srv.CreatedAt)
	if err != nil {
		return Server{}, "", fmt.Errorf("inserting server: %w", err)
	}
	return srv, plaintext, nil
}

func (s *Store) Get(ctx context.Context, serverID id.ServerID) (Server, error) {
	var srv Server
	err := s.db.QueryRow(ctx, `
		SELECT id, name, host, port, owner_id, access_key_hash, created_at
		FROM servers WHERE id = $1
	`, serverID).Scan(&srv.ID, &srv.Name, &srv.Host, &srv.Port, &srv.OwnerID, &srv.AccessKey, &srv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Server{}, ErrNotFound
	}
	if err != nil {
		return Server{}, fmt.Errorf("querying server: %w", err)
	}
	return srv, nil
}

// UpdateMetadata edits a server's registered name/host/port.
func (s *Store) UpdateMetadata(ctx context.Context, serverID id.ServerID, name, host string, port uint16) error {
	tag, err := s.db.Exec(ctx, `UPDATE servers SET name = $2, host = $3, port = $4 WHERE id = $1`, serverID, name, host, port)
	if err != nil {
		return fmt.Errorf("updating server: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RotateAccessKey replaces a server's access key and returns the new
// plaintext value.
func (s *Store) RotateAccessKey(ctx context.Context, serverID id.ServerID) (string, error) {
	plaintext, hash, err := generateAccessKey()
	if err != nil {
		return "", fmt.Errorf("generating access key: %w", err)
	}
	tag, err := s.db.Exec(ctx, `UPDATE servers SET access_key_hash = $2 WHERE id = $1`, serverID, hash)
	if err != nil {
		return "", fmt.Errorf("rotating access key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return "", ErrNotFound
	}
	return plaintext, nil
}

// RevokeAccessKey clears a server's access key, refusing further handshakes
// until it is rotated again.
func (s *Store) RevokeAccessKey(ctx context.Context, serverID id.ServerID) error {
	tag, err := s.db.Exec(ctx, `UPDATE servers SET access_key_hash = NULL WHERE id = $1`, serverID)
	if err != nil {
		return fmt.Errorf("revoking access key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Authenticate resolves a plaintext access key to its owning server,
// consulting every registered server since the key is not indexable once
// hashed with a per-row bcrypt salt.
func (s *Store) Authenticate(ctx context.Context, accessKey string) (id.ServerID, error) {
	rows, err := s.db.Query(ctx, `SELECT id, access_key_hash FROM servers WHERE access_key_hash IS NOT NULL`)
	if err != nil {
		return 0, fmt.Errorf("querying servers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var serverID id.ServerID
		var hash string
		if err := rows.Scan(&serverID, &hash); err != nil {
			return 0, fmt.Errorf("scanning server: %w", err)
		}
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(accessKey)) == nil {
			return serverID, nil
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	return 0, ErrInvalidAccessKey
}

// List returns a page of registered servers ordered by id, plus the total
// row count for pagination.
func (s *Store) List(ctx context.Context, offset, limit int) ([]Server, int, error) {
	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM servers`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting servers: %w", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, name, host, port, owner_id, access_key_hash, created_at
		FROM servers ORDER BY id ASC OFFSET $1 LIMIT $2
	`, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("listing servers: %w", err)
	}
	defer rows.Close()

	var servers []Server
	for rows.Next() {
		var srv Server
		if err := rows.Scan(&srv.ID, &srv.Name, &srv.Host, &srv.Port, &srv.OwnerID, &srv.AccessKey, &srv.CreatedAt); err != nil {
			return nil, 0, err
		}
		servers = append(servers, srv)
	}
	return servers, total, rows.Err()
}

func generateAccessKey() (plaintext, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	plaintext = base64.RawURLEncoding.EncodeToString(buf)
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", "", err
	}
	return plaintext, string(hashed), nil
}
