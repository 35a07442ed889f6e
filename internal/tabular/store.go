package tabular

import (
	"bytes"
	"context"
	"path"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"emr_etl/internal/storage"
)

// Store reads and writes tables through an object store.
type Store struct {
	objects     storage.ObjectStore
	workerCount int
}

func NewStore(objects storage.ObjectStore) *Store {
	return &Store{objects: objects, workerCount: runtime.NumCPU() * 2}
}

// Read fetches bucket/key and decodes it as format.
func (s *Store) Read(ctx context.Context, bucket, key string, format Format) (*Table, error) {
	if _, err := ParseFormat(string(format)); err != nil {
		return nil, err
	}
	payload, err := s.objects.GetObject(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	return Decode(format, payload)
}

// Write encodes t as format and puts it at bucket/key.
func (s *Store) Write(ctx context.Context, bucket, key string, t *Table, format Format) error {
	payload, err := Encode(format, t)
	if err != nil {
		return err
	}
	return s.objects.PutObject(ctx, bucket, key, bytes.NewReader(payload), int64(len(payload)))
}

// StandardizedKey is where Standardize puts the records for name under prefix.
func StandardizedKey(prefix, name string) string {
	name = strings.TrimSuffix(name, path.Ext(name)) + ".json"
	if prefix == "" {
		return name
	}
	return strings.TrimSuffix(prefix, "/") + "/" + name
}

// Standardize uploads t as JSON records to <prefix>/<name>.json.
func (s *Store) Standardize(ctx context.Context, t *Table, bucket, prefix, name string) (storage.Location, error) {
	loc := storage.Location{Bucket: bucket, Key: StandardizedKey(prefix, name)}
	if err := s.Write(ctx, loc.Bucket, loc.Key, t, JSON); err != nil {
		return storage.Location{}, err
	}
	zap.S().Infow("table standardized and uploaded", "location", loc.String())
	return loc, nil
}

// Stats summarizes a StandardizeAll run.
type Stats struct {
	TotalExecutionTime  string `json:"total_execution_time"`
	TotalFilesFound     int    `json:"total_files_found"`
	FilesProcessed      int    `json:"files_processed"`
	FilesFailed         int    `json:"files_failed"`
	FilesSkipped        int    `json:"files_skipped"`
	TotalRowsProcessed  int64  `json:"total_rows_processed"`
	TotalBytesProcessed int64  `json:"total_bytes_processed"`
}

// StandardizeAll converts every csv, json and parquet object under srcPrefix
// into JSON records under dstPrefix, keeping each object's path relative to
// srcPrefix. Objects with other extensions are skipped. A failed object is
// counted and logged; it does not stop the batch. Objects that would be
// written to the same destination key are all counted as failed and none of
// them is written.
func (s *Store) StandardizeAll(ctx context.Context, srcBucket, srcPrefix, dstBucket, dstPrefix string) (*Stats, error) {
	start := time.Now()
	keys, err := s.objects.ListObjects(ctx, srcBucket, srcPrefix)
	if err != nil {
		return nil, err
	}

	stats := &Stats{TotalFilesFound: len(keys)}
	semaphore := make(chan struct{}, s.workerCount)
	var wg sync.WaitGroup
	var mu sync.Mutex

	formats := make(map[string]Format, len(keys))
	claims := make(map[string][]string, len(keys))
	for _, key := range keys {
		format, err := FormatOf(key)
		if err != nil {
			zap.S().Debugw("skipping object with unsupported extension", "key", key)
			stats.FilesSkipped++
			continue
		}
		formats[key] = format
		dst := StandardizedKey(dstPrefix, relativeName(key, srcPrefix))
		claims[dst] = append(claims[dst], key)
	}
	for dst, srcs := range claims {
		if len(srcs) > 1 {
			zap.S().Errorw("objects collide on destination key", "destination", dst, "keys", srcs)
			stats.FilesFailed += len(srcs)
			for _, k := range srcs {
				delete(formats, k)
			}
		}
	}

	for _, key := range keys {
		format, ok := formats[key]
		if !ok {
			continue
		}

		wg.Add(1)
		go func(k string, f Format) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			rows, n, err := s.standardizeObject(ctx, srcBucket, srcPrefix, k, f, dstBucket, dstPrefix)

			mu.Lock()
			defer mu.Unlock()
			stats.TotalBytesProcessed += n
			if err != nil {
				zap.S().Errorw("failed to standardize object", "key", k, "error", err)
				stats.FilesFailed++
				return
			}
			stats.FilesProcessed++
			stats.TotalRowsProcessed += int64(rows)
		}(key, format)
	}
	wg.Wait()

	stats.TotalExecutionTime = time.Since(start).String()
	zap.S().Infow("standardization completed",
		"processed", stats.FilesProcessed, "failed", stats.FilesFailed, "skipped", stats.FilesSkipped)
	return stats, nil
}

func (s *Store) standardizeObject(ctx context.Context, srcBucket, srcPrefix, key string, format Format, dstBucket, dstPrefix string) (int, int64, error) {
	payload, err := s.objects.GetObject(ctx, srcBucket, key)
	if err != nil {
		return 0, 0, err
	}
	t, err := Decode(format, payload)
	if err != nil {
		return 0, int64(len(payload)), err
	}
	if _, err := s.Standardize(ctx, t, dstBucket, dstPrefix, relativeName(key, srcPrefix)); err != nil {
		return 0, int64(len(payload)), err
	}
	return len(t.Rows), int64(len(payload)), nil
}

// relativeName is key below prefix, or its base name when key is not below
// prefix.
func relativeName(key, prefix string) string {
	if prefix != "" && strings.HasPrefix(key, prefix) {
		if rel := strings.TrimPrefix(strings.TrimPrefix(key, prefix), "/"); rel != "" {
			return rel
		}
	}
	return path.Base(key)
}
