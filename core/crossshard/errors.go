package crossshard

import "errors"

// Error taxonomy for the coordinator. Handlers wrap these sentinels with
// fmt.Errorf("...: %w", ...) so callers can classify failures with errors.Is.
var (
	// ErrNotFound reports an unknown transaction or shard ID.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput reports a malformed request, a shard-pair mismatch, or
	// a self-targeted transaction.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidState reports an operation attempted from a status that does
	// not permit it.
	ErrInvalidState = errors.New("invalid state")
	// ErrSerialization reports a malformed wire message.
	ErrSerialization = errors.New("serialization error")
)
