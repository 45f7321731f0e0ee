package sbd

import "errors"

// Sentinel errors shared by every stage of the evaluation pipeline. Callers
// wrap them with context and test with errors.Is.
var (
	// ErrNotFound indicates a raw-result, ground-truth or video file is absent.
	// The sweep skips the affected video and continues.
	ErrNotFound = errors.New("sbd: not found")

	// ErrMalformedRecord indicates a raw-result file exists but cannot be parsed.
	ErrMalformedRecord = errors.New("sbd: malformed raw-result record")

	// ErrInvalidConfiguration indicates a configuration value is out of range
	// or unknown (window size, threshold mode, raw-result encoding).
	ErrInvalidConfiguration = errors.New("sbd: invalid configuration")

	// ErrBadGroundTruth indicates a ground-truth annotation cannot be used
	// with its video, e.g. a boundary index beyond the last frame.
	ErrBadGroundTruth = errors.New("sbd: bad ground truth")

	// ErrBadBoundaries indicates predicted boundaries that violate
	// curr = prev + 1 or cannot be turned into a valid shot list.
	ErrBadBoundaries = errors.New("sbd: bad boundaries")
)
