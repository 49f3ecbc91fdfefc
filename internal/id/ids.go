package id

import (
	"database/sql/driver"
	"fmt"

	"github.com/oklog/ulid/v2"
)

// MapID identifies a map.
type MapID int32

// CourseID identifies a course on a map.
type CourseID int32

// FilterID identifies a (course, mode, style-agnostic) leaderboard filter.
type FilterID int32

// ServerID identifies a registered game server.
type ServerID int32

// RecordID identifies a submitted run.
type RecordID int64

// BanID identifies a ban.
type BanID int64

// PluginVersionID identifies a released cs2kz-metamod version.
type PluginVersionID int32

// SessionID identifies an HTTP or server-protocol session. It is a ULID so
// that sessions sort chronologically without a separate created_at index.
type SessionID ulid.ULID

// NewSessionID generates a new, time-ordered SessionID.
func NewSessionID() SessionID {
	return SessionID(ulid.Make())
}

// String renders the canonical Crockford base32 ULID form.
func (s SessionID) String() string {
	return ulid.ULID(s).String()
}

// ParseSessionID parses a ULID-formatted session id.
func ParseSessionID(s string) (SessionID, error) {
	u, err := ulid.ParseStrict(s)
	if err != nil {
		return SessionID{}, err
	}
	return SessionID(u), nil
}

// MarshalText implements encoding.TextMarshaler.
func (s SessionID) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *SessionID) UnmarshalText(text []byte) error {
	parsed, err := ParseSessionID(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Value implements driver.Valuer so a SessionID binds to a TEXT column.
func (s SessionID) Value() (driver.Value, error) {
	return s.String(), nil
}

// Scan implements sql.Scanner so a SessionID loads from a TEXT column.
func (s *SessionID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s = SessionID{}
		return nil
	case string:
		return s.UnmarshalText([]byte(v))
	case []byte:
		return s.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into SessionID", src)
	}
}
