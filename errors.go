package voxfuse

import (
	"errors"
	"fmt"

	"github.com/hupe1980/voxfuse/frame"
	"github.com/hupe1980/voxfuse/internal/hashindex"
)

var (
	// ErrClosed is returned when using a closed Volume.
	ErrClosed = errors.New("voxfuse: volume is closed")
	// ErrInvalidConfig is wrapped by every *ConfigError.
	ErrInvalidConfig = errors.New("voxfuse: invalid config")
	// ErrCorruptSnapshot is returned when a snapshot fails validation.
	ErrCorruptSnapshot = errors.New("voxfuse: corrupt snapshot")
	// ErrSnapshotMismatch is returned when a snapshot was taken from a volume
	// with a different geometry.
	ErrSnapshotMismatch = errors.New("voxfuse: snapshot does not match volume")
	// ErrNotFound is returned for coordinates that are not in the table.
	ErrNotFound = errors.New("voxfuse: block not found")
	// ErrInvalidFrame is returned for frames with inconsistent images or intrinsics.
	ErrInvalidFrame = frame.ErrInvalidFrame
)

// ConfigError describes an invalid configuration field.
//
// errors.Is(err, ErrInvalidConfig) holds for every ConfigError.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("voxfuse: invalid config: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, hashindex.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}
