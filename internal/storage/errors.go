package storage

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/minio/minio-go/v7"
)

type ErrNotFound struct {
	error
	Location Location
}

func NewErrNotFound(loc Location, cause error) *ErrNotFound {
	return &ErrNotFound{error: fmt.Errorf("%s not found: %w", loc, cause), Location: loc}
}

// ErrConnection means the backend could not be reached; the object may exist.
type ErrConnection struct {
	error
	Location Location
}

func NewErrConnection(loc Location, cause error) *ErrConnection {
	return &ErrConnection{error: fmt.Errorf("%s unreachable: %w", loc, cause), Location: loc}
}

type ErrBackend struct {
	error
	Location Location
}

func NewErrBackend(loc Location, cause error) *ErrBackend {
	return &ErrBackend{error: fmt.Errorf("%s: %w", loc, cause), Location: loc}
}

func IsNotFound(err error) bool {
	var e *ErrNotFound
	return errors.As(err, &e)
}

func IsConnection(err error) bool {
	var e *ErrConnection
	return errors.As(err, &e)
}

func classifyAWS(loc Location, err error) error {
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) && reqErr.StatusCode() == http.StatusNotFound {
		return NewErrNotFound(loc, err)
	}
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, s3.ErrCodeNoSuchBucket, "NotFound":
			return NewErrNotFound(loc, err)
		case request.ErrCodeRequestError, request.ErrCodeResponseTimeout, request.CanceledErrorCode:
			return NewErrConnection(loc, err)
		}
	}
	return NewErrBackend(loc, err)
}

func classifyMinio(loc Location, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode == http.StatusNotFound {
		return NewErrNotFound(loc, err)
	}
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return NewErrNotFound(loc, err)
	}
	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return NewErrConnection(loc, err)
	}
	return NewErrBackend(loc, err)
}
