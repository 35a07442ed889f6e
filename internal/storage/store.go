package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws/session"

	"emr_etl/internal/config"
)

var schemes = []string{"s3://", "s3a://", "storage://"}

// Location addresses an object (or a bucket when Key is empty).
type Location struct {
	Bucket string
	Key    string
}

// ParseLocation splits "s3://bucket/key" (or a bare bucket name) into its
// bucket and key.
func ParseLocation(path string) Location {
	for _, s := range schemes {
		if strings.HasPrefix(path, s) {
			path = strings.TrimPrefix(path, s)
			break
		}
	}
	bucket, key, _ := strings.Cut(path, "/")
	return Location{Bucket: bucket, Key: key}
}

func (l Location) String() string {
	if l.Key == "" {
		return "s3://" + l.Bucket
	}
	return "s3://" + l.Bucket + "/" + l.Key
}

// ObjectStore is the object storage capability every component talks to.
type ObjectStore interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64) error
	HeadObject(ctx context.Context, bucket, key string) error
	HeadBucket(ctx context.Context, bucket string) error
	ListObjects(ctx context.Context, bucket, prefix string) ([]string, error)
}

const (
	BackendS3    = "s3"
	BackendMinio = "minio"
)

// Open returns the backend selected by settings.
func Open(settings *config.Settings, sess *session.Session, creds config.Credentials, region string) (ObjectStore, error) {
	switch settings.StorageBackend {
	case BackendS3, "":
		return NewS3Store(sess), nil
	case BackendMinio:
		return NewMinioStore(
			WithEndpoint(settings.MinioEndpoint),
			WithCredentials(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken),
			WithRegion(region),
			WithSSL(settings.MinioUseSSL),
		)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", settings.StorageBackend)
	}
}

// UploadFile puts the local file at path under bucket/key.
func UploadFile(ctx context.Context, store ObjectStore, path, bucket, key string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	return store.PutObject(ctx, bucket, key, f, info.Size())
}
