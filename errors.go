package tplmerge

import (
	"errors"
	"fmt"
)

// Sentinel errors for common merge failure conditions.
var (
	ErrNotFound    = errors.New("tplmerge: not found")
	ErrConfig      = errors.New("tplmerge: configuration incomplete")
	ErrBusy        = errors.New("tplmerge: a batch is already running")
	ErrUnsupported = errors.New("tplmerge: unsupported operation")
	ErrEncrypted   = errors.New("tplmerge: document is encrypted")
	ErrCorrupted   = errors.New("tplmerge: document is corrupted")
)

// MergeError represents an error that occurred during a specific merge operation.
// It wraps an underlying error and includes the operation name for context.
type MergeError struct {
	Op  string // operation name, e.g. "Render", "Fill"
	Err error  // underlying error
}

func (e *MergeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tplmerge.%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("tplmerge.%s: unknown error", e.Op)
}

func (e *MergeError) Unwrap() error {
	return e.Err
}

// NewMergeError creates a new MergeError wrapping err with operation context.
func NewMergeError(op string, err error) *MergeError {
	return &MergeError{Op: op, Err: err}
}

// ConfigError reports a required setting that is missing before a batch starts.
// It matches ErrConfig with errors.Is.
type ConfigError struct {
	Field string // e.g. "output directory"
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("tplmerge: %s not selected", e.Field)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}
