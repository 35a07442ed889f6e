package tabular

import "fmt"

// ErrDecode means the payload could not be parsed as the declared format.
type ErrDecode struct {
	error
	Format Format
}

func NewErrDecode(format Format, cause error) *ErrDecode {
	return &ErrDecode{error: fmt.Errorf("decoding %s: %w", format, cause), Format: format}
}

type ErrUnsupported struct {
	error
	Format string
}

func NewErrUnsupported(format string) *ErrUnsupported {
	return &ErrUnsupported{
		error:  fmt.Errorf("unsupported file type %q, choose 'csv', 'json', or 'parquet'", format),
		Format: format,
	}
}
