// Package ferr defines the sentinel error taxonomy shared across flintdb's
// storage layers.
//
// Callers classify errors with [errors.Is] against the sentinels below;
// implementations wrap a sentinel with context via fmt.Errorf("...: %w", ...)
// so the failing path, block id, or column name travels with the error.
package ferr

import "errors"

var (
	// Config indicates an invalid option combination was supplied to a
	// constructor (non-positive sizes, pool max <= 0, overflowing totals).
	Config = errors.New("flintdb: config error")

	// Format indicates a schema-sidecar mismatch, an unknown column type
	// name, or a primary key that is missing or misplaced.
	Format = errors.New("flintdb: format error")

	// IO indicates an underlying file or channel error.
	IO = errors.New("flintdb: io error")

	// Corruption indicates a header/block invariant violation: a
	// header-declared block size that disagrees with options, a truncated
	// block, an unknown wire tag, or a leaf key underflow.
	Corruption = errors.New("flintdb: corruption")

	// Overflow indicates an encoded row, string, decimal, or bytes value
	// exceeded its declared column width under EXACT mode.
	Overflow = errors.New("flintdb: overflow")

	// NotFound indicates a read or find of an absent row id or key. Callers
	// typically see this as a (nil, false) result rather than an error, but
	// it is exported for callers that want to classify it explicitly.
	NotFound = errors.New("flintdb: not found")

	// Unsupported indicates an operation not implemented on this path, such
	// as secondary-index deletes on the hash-primary table, or BLOB/OBJECT
	// column types.
	Unsupported = errors.New("flintdb: unsupported")

	// Busy indicates contention on an advisory lock (writer already active).
	Busy = errors.New("flintdb: busy")
)
