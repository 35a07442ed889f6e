package validation

import (
	"context"

	"go.uber.org/zap"

	"emr_etl/internal/storage"
)

type PathValidator struct {
	objects storage.ObjectStore
}

func NewPathValidator(objects storage.ObjectStore) *PathValidator {
	return &PathValidator{objects: objects}
}

// CheckPath verifies that the object addressed by path exists. A path without
// a key fails with missing-key before any backend call.
func (v *PathValidator) CheckPath(ctx context.Context, label, path string) Result {
	loc := storage.ParseLocation(path)
	if loc.Bucket == "" || loc.Key == "" {
		err := NewErrMissingKey(label, path)
		zap.S().Warnw(err.Error(), "check", CheckPath)
		return fail(CheckPath, path, ReasonMissingKey, err.Error())
	}
	zap.S().Debugw("checking path", "label", label, "bucket", loc.Bucket, "key", loc.Key)
	return fromBackend(CheckPath, label, loc.String(), v.objects.HeadObject(ctx, loc.Bucket, loc.Key))
}

// CheckBucket verifies that bucket exists. A storage address is accepted and
// reduced to its bucket.
func (v *PathValidator) CheckBucket(ctx context.Context, label, bucket string) Result {
	loc := storage.ParseLocation(bucket)
	if loc.Bucket == "" {
		return fail(CheckBucket, bucket, ReasonMissingBucket, label+" bucket name is empty")
	}
	return fromBackend(CheckBucket, label, loc.Bucket, v.objects.HeadBucket(ctx, loc.Bucket))
}

// CheckPaths runs CheckPath for every side that is set. An empty path means
// the side was not requested; both set sides are always checked so the report
// names every problem.
func (v *PathValidator) CheckPaths(ctx context.Context, source, destination string) []Result {
	var results []Result
	if source != "" {
		results = append(results, v.CheckPath(ctx, "Source", source))
	}
	if destination != "" {
		results = append(results, v.CheckPath(ctx, "Destination", destination))
	}
	return results
}

func (v *PathValidator) CheckBuckets(ctx context.Context, source, destination string) []Result {
	var results []Result
	if source != "" {
		results = append(results, v.CheckBucket(ctx, "Source", source))
	}
	if destination != "" {
		results = append(results, v.CheckBucket(ctx, "Destination", destination))
	}
	return results
}

func fromBackend(check, label, target string, err error) Result {
	if err == nil {
		return pass(check, target, label+" found")
	}

	var reason Reason
	switch {
	case storage.IsNotFound(err):
		reason = ReasonNotFound
		zap.S().Warnw(label+" not found", "target", target, "error", err)
	case storage.IsConnection(err):
		reason = ReasonUnreachable
		zap.S().Errorw(label+" could not be checked, storage unreachable", "target", target, "error", err)
	default:
		reason = ReasonBackendError
		zap.S().Errorw(label+" could not be checked", "target", target, "error", err)
	}
	return fail(check, target, reason, err.Error())
}
