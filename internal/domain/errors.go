package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidURL is returned for source URLs that do not match the platform
// pattern. It is rejected before any subprocess is spawned.
var ErrInvalidURL = errors.New("invalid source URL: expected a soundcloud.com track or playlist")

// ErrArtifactNotFound is returned when the extractor reported success but no
// output file could be resolved by any fallback tier.
var ErrArtifactNotFound = errors.New("extraction succeeded but no output file was found")

// LaunchError indicates the external binary could not be started at all
type LaunchError struct {
	Binary string
	Err    error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %s: %v", e.Binary, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// ProcessError indicates the external binary exited with a nonzero status.
// It is not retried; the external tool owns transient-failure handling.
type ProcessError struct {
	Binary   string
	ExitCode int
	Detail   string
}

func (e *ProcessError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s exited with code %d: %s", e.Binary, e.ExitCode, e.Detail)
	}
	return fmt.Sprintf("%s exited with code %d", e.Binary, e.ExitCode)
}

// ArchiveError indicates the playlist archive could not be produced
type ArchiveError struct {
	Path string
	Err  error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("failed to build archive %s: %v", e.Path, e.Err)
}

func (e *ArchiveError) Unwrap() error { return e.Err }
