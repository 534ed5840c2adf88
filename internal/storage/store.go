package storage

import (
	"context"
	"errors"
	"time"

	"apisurface/internal/surface"
)

// ErrNotFound is returned when no surface is recorded for a library version.
var ErrNotFound = errors.New("surface not recorded")

// Version describes one recorded surface.
type Version struct {
	Library        string
	Version        string
	NullableEnable bool
	Entries        int
	RecordedAt     time.Time
}

// HistoryStore persists surfaces per library version.
type HistoryStore interface {
	// SaveSurface records s as library@version, replacing any earlier record.
	SaveSurface(ctx context.Context, library, version string, s *surface.Surface) error

	// LoadSurface returns the surface recorded as library@version.
	LoadSurface(ctx context.Context, library, version string) (*surface.Surface, error)

	// ListVersions returns the recorded versions of library, oldest first.
	ListVersions(ctx context.Context, library string) ([]Version, error)

	// DeleteSurface drops library@version.
	DeleteSurface(ctx context.Context, library, version string) error

	Close() error
}
