package storage

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"go.uber.org/zap"
)

type s3API interface {
	HeadObjectWithContext(aws.Context, *s3.HeadObjectInput, ...request.Option) (*s3.HeadObjectOutput, error)
	HeadBucketWithContext(aws.Context, *s3.HeadBucketInput, ...request.Option) (*s3.HeadBucketOutput, error)
	ListObjectsV2PagesWithContext(aws.Context, *s3.ListObjectsV2Input, func(*s3.ListObjectsV2Output, bool) bool, ...request.Option) error
}

type downloaderAPI interface {
	DownloadWithContext(aws.Context, io.WriterAt, *s3.GetObjectInput, ...func(*s3manager.Downloader)) (int64, error)
}

type uploaderAPI interface {
	UploadWithContext(aws.Context, *s3manager.UploadInput, ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error)
}

var (
	_ s3API         = (*s3.S3)(nil)
	_ downloaderAPI = (*s3manager.Downloader)(nil)
	_ uploaderAPI   = (*s3manager.Uploader)(nil)
	_ ObjectStore   = (*S3Store)(nil)
)

type S3Store struct {
	s3Client   s3API
	downloader downloaderAPI
	uploader   uploaderAPI
}

func NewS3Store(sess *session.Session) *S3Store {
	return &S3Store{
		s3Client:   s3.New(sess),
		downloader: s3manager.NewDownloader(sess),
		uploader:   s3manager.NewUploader(sess),
	}
}

func newS3StoreWithClients(client s3API, downloader downloaderAPI, uploader uploaderAPI) *S3Store {
	return &S3Store{s3Client: client, downloader: downloader, uploader: uploader}
}

func (s *S3Store) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	loc := Location{Bucket: bucket, Key: key}
	buffer := &aws.WriteAtBuffer{}
	n, err := s.downloader.DownloadWithContext(ctx, buffer, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classifyAWS(loc, err)
	}
	zap.S().Debugw("downloaded object", "location", loc.String(), "bytes", n)
	return buffer.Bytes(), nil
}

func (s *S3Store) PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64) error {
	loc := Location{Bucket: bucket, Key: key}
	result, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	if err != nil {
		return classifyAWS(loc, err)
	}
	zap.S().Debugw("uploaded object", "location", result.Location, "bytes", size)
	return nil
}

func (s *S3Store) HeadObject(ctx context.Context, bucket, key string) error {
	_, err := s.s3Client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return classifyAWS(Location{Bucket: bucket, Key: key}, err)
	}
	return nil
}

func (s *S3Store) HeadBucket(ctx context.Context, bucket string) error {
	_, err := s.s3Client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return classifyAWS(Location{Bucket: bucket}, err)
	}
	return nil
}

func (s *S3Store) ListObjects(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	err := s.s3Client.ListObjectsV2PagesWithContext(ctx,
		&s3.ListObjectsV2Input{Bucket: aws.String(bucket), Prefix: aws.String(prefix)},
		func(page *s3.ListObjectsV2Output, lastPage bool) bool {
			for _, obj := range page.Contents {
				keys = append(keys, aws.StringValue(obj.Key))
			}
			return !lastPage
		})
	if err != nil {
		return nil, classifyAWS(Location{Bucket: bucket, Key: prefix}, err)
	}
	return keys, nil
}
