package testutil

import (
	"context"
	"io"
	"sync"

	"github.com/stretchr/testify/mock"
)

// MockObjectStore records PutObject bodies in Puts so tests can assert on
// what was uploaded without matching readers.
type MockObjectStore struct {
	mock.Mock

	mu   sync.Mutex
	Puts map[string][]byte
}

func (m *MockObjectStore) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	args := m.Called(ctx, bucket, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockObjectStore) PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64) error {
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	if m.Puts == nil {
		m.Puts = make(map[string][]byte)
	}
	m.Puts[bucket+"/"+key] = b
	m.mu.Unlock()

	args := m.Called(ctx, bucket, key, body, size)
	return args.Error(0)
}

func (m *MockObjectStore) HeadObject(ctx context.Context, bucket, key string) error {
	args := m.Called(ctx, bucket, key)
	return args.Error(0)
}

func (m *MockObjectStore) HeadBucket(ctx context.Context, bucket string) error {
	args := m.Called(ctx, bucket)
	return args.Error(0)
}

func (m *MockObjectStore) ListObjects(ctx context.Context, bucket, prefix string) ([]string, error) {
	args := m.Called(ctx, bucket, prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// Put returns the body uploaded to bucket/key.
func (m *MockObjectStore) Put(bucket, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.Puts[bucket+"/"+key]
	return b, ok
}
