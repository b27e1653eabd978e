// Package xerrors names the error kinds used across the storage engine
// (spec §7). These are kinds, not a type hierarchy: each kind is one shared
// sentinel declared here with errors.New, and every package that needs one
// wraps it with fmt.Errorf("...: %w", ...) at the point of failure,
// following the teacher's libs/database/errors.go convention.
package xerrors

import "errors"

var (
	// ErrNotFound marks a requested key/metadata value that is absent.
	// Callers degrade to a zero value or (nil, nil) wherever possible —
	// this is never meant to surface as a caller-visible error.
	ErrNotFound = errors.New("tradedb: not found")

	// ErrBusy marks transient contention on the blob store. Retried
	// internally with bounded backoff; never surfaced past internal/store.
	ErrBusy = errors.New("tradedb: store busy")

	// ErrCorrupt marks a decompression/decode failure: unknown frame,
	// wrong dictionary, or a sanity-check mismatch against the expected
	// sample size. Treated as unit-absent on read.
	ErrCorrupt = errors.New("tradedb: corrupt unit")

	// ErrFatal marks a blob store that cannot be opened, or a write batch
	// that fails terminally. Callers must not retry without re-opening.
	ErrFatal = errors.New("tradedb: fatal store error")

	// ErrInvalidConfig marks an unknown account currency, missing
	// metadata, or a request the store cannot cover.
	ErrInvalidConfig = errors.New("tradedb: invalid config")

	// ErrReadOnly marks a mutating call against a store opened read-only.
	ErrReadOnly = errors.New("tradedb: store is read-only")
)
