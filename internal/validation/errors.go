package validation

import "fmt"

// ErrMissingKey means a path that must name an object has no key part.
type ErrMissingKey struct {
	error
	Path string
}

func NewErrMissingKey(label, path string) *ErrMissingKey {
	return &ErrMissingKey{error: fmt.Errorf("%s path %q is missing the object key", label, path), Path: path}
}
