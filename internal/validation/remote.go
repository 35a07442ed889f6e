package validation

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"emr_etl/internal/github"
)

type FileChecker interface {
	FileExists(ctx context.Context, org, repo, path string) (bool, error)
}

var _ FileChecker = (*github.Client)(nil)

type RemoteFileValidator struct {
	files FileChecker
}

func NewRemoteFileValidator(files FileChecker) *RemoteFileValidator {
	return &RemoteFileValidator{files: files}
}

// CheckFile reports whether path exists in org/repo. When the host answers
// with anything but 200 or 404 the result is indeterminate and the
// *github.ErrUnexpectedStatus is returned alongside it.
func (v *RemoteFileValidator) CheckFile(ctx context.Context, org, repo, path string) (Result, error) {
	target := org + "/" + repo + "/" + path
	exists, err := v.files.FileExists(ctx, org, repo, path)
	if err != nil {
		var connErr *github.ErrConnection
		if errors.As(err, &connErr) {
			zap.S().Errorw("repository host unreachable", "target", target, "error", err)
			return fail(CheckRemoteFile, target, ReasonUnreachable, err.Error()), err
		}
		zap.S().Errorw("could not determine whether file exists", "target", target, "error", err)
		return fail(CheckRemoteFile, target, ReasonIndeterminate, err.Error()), err
	}
	if !exists {
		zap.S().Warnw("file does not exist", "target", target)
		return fail(CheckRemoteFile, target, ReasonNotFound, "does not exist"), nil
	}
	zap.S().Infow("file exists", "target", target)
	return pass(CheckRemoteFile, target, "exists"), nil
}
