package config

import (
	"fmt"
	"strings"
)

type ErrMissingCredentials struct {
	error
	Missing []string
}

func NewErrMissingCredentials(missing []string) *ErrMissingCredentials {
	return &ErrMissingCredentials{
		error:   fmt.Errorf("please set AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY and AWS_SESSION_TOKEN environment variables (missing: %s)", strings.Join(missing, ", ")),
		Missing: missing,
	}
}
