package artifact

import "errors"

var (
	// ErrRecordsMissing is returned when records.json does not exist.
	ErrRecordsMissing = errors.New("enriched records not found, run the fetch stage first")

	// ErrRunDirLocked is returned when another process holds the run directory.
	ErrRunDirLocked = errors.New("run directory is locked by another process")

	// ErrNoRunDir is returned when no run directory is given and none can be
	// found.
	ErrNoRunDir = errors.New("no run directory found")

	// ErrMalformedArtifact is returned when an artifact cannot be decoded.
	ErrMalformedArtifact = errors.New("malformed artifact")
)
