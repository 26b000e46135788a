package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure by the recovery it calls for.
type ErrorKind uint8

const (
	// FileAccess is a per-file read or decode failure; the file is skipped.
	FileAccess ErrorKind = iota + 1
	// EmbeddingBackend is a failed embedder call. Fatal while the index is
	// built, reported and skipped when it happens for a single query.
	EmbeddingBackend
	// Generation is a failed call to the text-generation service.
	Generation
	// Configuration is a setup problem that prevents the session from starting.
	Configuration
)

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrFileAccess       = errors.New("file access error")
	ErrEmbeddingBackend = errors.New("embedding backend error")
	ErrGeneration       = errors.New("generation service error")
	ErrConfiguration    = errors.New("configuration error")
)

func (k ErrorKind) String() string {
	switch k {
	case FileAccess:
		return "file access"
	case EmbeddingBackend:
		return "embedding backend"
	case Generation:
		return "generation"
	case Configuration:
		return "configuration"
	default:
		return fmt.Sprintf("ErrorKind(%d)", uint8(k))
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case FileAccess:
		return ErrFileAccess
	case EmbeddingBackend:
		return ErrEmbeddingBackend
	case Generation:
		return ErrGeneration
	case Configuration:
		return ErrConfiguration
	default:
		return nil
	}
}

// Error is the error type returned across the indexing and query paths.
type Error struct {
	Kind ErrorKind
	Op   string // Operation that failed, e.g. "read file"
	Path string // Optional file or directory involved
	Err  error
}

// NewError wraps err with a kind and the failing operation.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// NewPathError is NewError for failures tied to a path.
func NewPathError(kind ErrorKind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return 0, false
}
