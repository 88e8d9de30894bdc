package memmap

// Error represents a memory-mapping error.
// OS-level failures keep the underlying error reachable through Unwrap,
// so callers can inspect the original syscall error.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return "memmap: " + e.Op + ": " + e.Err.Error()
	}
	return "memmap: " + e.Op
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Invalid-argument errors. These are detected before any OS call is made,
// so a caller can always tell a bad request apart from an I/O failure.
var (
	ErrInvalidLength = &Error{Op: "invalid length"}
	ErrInvalidRange  = &Error{Op: "invalid range"}
	ErrEmptyFile     = &Error{Op: "empty file"}
	ErrBadProtection = &Error{Op: "unknown protection"}
)

// ErrNotMapped is returned by operations on a closed mapping.
var ErrNotMapped = &Error{Op: "not mapped"}
