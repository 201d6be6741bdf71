package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientBuffer = errors.New("insufficient buffer")
	ErrCorruptPartition   = errors.New("corrupt partition")
	ErrEmptyTerm          = errors.New("empty term")
	ErrKeyOutOfRange      = errors.New("key outside partition range")
	ErrArenaExhausted     = errors.New("arena exhausted")
	ErrShardUnavailable   = errors.New("shard unavailable")
	ErrInvalidInput       = errors.New("invalid input")
)

// IndexError attaches context to one of the sentinel errors above so callers
// can still match on the sentinel with errors.Is.
type IndexError struct {
	Err     error
	Message string
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *IndexError) Unwrap() error {
	return e.Err
}

func New(sentinel error, message string) *IndexError {
	return &IndexError{
		Err:     sentinel,
		Message: message,
	}
}

func Newf(sentinel error, format string, args ...any) *IndexError {
	return &IndexError{
		Err:     sentinel,
		Message: fmt.Sprintf(format, args...),
	}
}

// IsFatal reports whether err leaves the process unable to continue. Only
// arena exhaustion qualifies; missing or corrupt files are recoverable.
func IsFatal(err error) bool {
	return errors.Is(err, ErrArenaExhausted)
}

// IsCorrupt reports whether err stems from undecodable partition data.
func IsCorrupt(err error) bool {
	return errors.Is(err, ErrCorruptPartition)
}
