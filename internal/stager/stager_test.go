package stager

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"emr_etl/internal/github"
	"emr_etl/internal/testutil"
)

type fakeResolver struct {
	err error
}

func (f fakeResolver) Repository(_ context.Context, fullName string) (*github.Repository, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &github.Repository{FullName: fullName, SSHURL: "git@github.com:" + fullName + ".git"}, nil
}

// fakeCloner materializes files relative to the clone directory.
type fakeCloner struct {
	files  []string
	err    error
	gotURL string
}

func (f *fakeCloner) Clone(_ context.Context, url, dir string) error {
	f.gotURL = url
	for _, name := range f.files {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(p, []byte("# "+name), 0o644); err != nil {
			return err
		}
	}
	return f.err
}

func treeFiles(names ...string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, filepath.Join(TransformationsDir, n))
	}
	return out
}

func TestStage_UploadsMatchingScripts(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "clone")
	objects := new(testutil.MockObjectStore)
	objects.On("PutObject", ctx, "scripts-bucket", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	cloner := &fakeCloner{files: append(treeFiles("clean_v2.py", "aggregate.py", "unused.py"), "README.md")}
	s := New(fakeResolver{}, cloner, objects)

	staged, err := s.Stage(ctx, Request{
		Repository: "acme/transforms",
		StagingDir: dir,
		Bucket:     "scripts-bucket",
		Steps:      []string{"clean", "aggregate"},
	})

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"scripts/transformation/clean_v2.py",
		"scripts/transformation/aggregate.py",
	}, staged.Keys)
	assert.Equal(t, map[string]string{
		"clean":     "s3://scripts-bucket/scripts/transformation/clean_v2.py",
		"aggregate": "s3://scripts-bucket/scripts/transformation/aggregate.py",
	}, staged.Scripts)
	objects.AssertNumberOfCalls(t, "PutObject", 2)
	body, ok := objects.Put("scripts-bucket", "scripts/transformation/clean_v2.py")
	require.True(t, ok)
	assert.Equal(t, "# "+filepath.Join(TransformationsDir, "clean_v2.py"), string(body))
	assert.Equal(t, "git@github.com:acme/transforms.git", cloner.gotURL)
	assert.NoDirExists(t, dir)
}

func TestStage_UnknownStepUploadsNothing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "clone")
	objects := new(testutil.MockObjectStore)
	s := New(fakeResolver{}, &fakeCloner{files: treeFiles("clean.py")}, objects)

	_, err := s.Stage(context.Background(), Request{
		Repository: "acme/transforms",
		StagingDir: dir,
		Bucket:     "b",
		Steps:      []string{"clean", "enrich"},
	})

	var unknown *ErrUnknownStep
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, []string{"enrich"}, unknown.Steps)
	objects.AssertNotCalled(t, "PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.NoDirExists(t, dir)
}

func TestStage_CloneFailureCleansUp(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "clone")
	s := New(fakeResolver{}, &fakeCloner{files: treeFiles("clean.py"), err: errors.New("permission denied (publickey)")}, new(testutil.MockObjectStore))

	_, err := s.Stage(context.Background(), Request{Repository: "acme/transforms", StagingDir: dir, Steps: []string{"clean"}})

	var cloneErr *ErrClone
	require.True(t, errors.As(err, &cloneErr))
	assert.Equal(t, "acme/transforms", cloneErr.Repository)
	assert.NoDirExists(t, dir)
}

func TestStage_UnresolvableRepository(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "clone")
	cloner := &fakeCloner{}
	s := New(fakeResolver{err: errors.New("404 Not Found")}, cloner, new(testutil.MockObjectStore))

	_, err := s.Stage(context.Background(), Request{Repository: "acme/private", StagingDir: dir, Steps: []string{"clean"}})

	var cloneErr *ErrClone
	assert.True(t, errors.As(err, &cloneErr))
	assert.Empty(t, cloner.gotURL)
}

func TestStage_ExistingStagingDirIsLeftAlone(t *testing.T) {
	dir := t.TempDir()
	keep := filepath.Join(dir, "keep.txt")
	require.NoError(t, os.WriteFile(keep, []byte("x"), 0o644))
	s := New(fakeResolver{}, &fakeCloner{}, new(testutil.MockObjectStore))

	_, err := s.Stage(context.Background(), Request{Repository: "acme/transforms", StagingDir: dir, Steps: []string{"clean"}})

	var cloneErr *ErrClone
	assert.True(t, errors.As(err, &cloneErr))
	assert.FileExists(t, keep)
}

func TestStage_UploadFailureCleansUp(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "clone")
	objects := new(testutil.MockObjectStore)
	objects.On("PutObject", ctx, "b", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("access denied"))
	s := New(fakeResolver{}, &fakeCloner{files: treeFiles("clean.py")}, objects)

	_, err := s.Stage(ctx, Request{Repository: "acme/transforms", StagingDir: dir, Bucket: "b", Steps: []string{"clean"}})

	assert.Error(t, err)
	assert.NoDirExists(t, dir)
}

func TestStage_ExactNameWinsAmongCandidates(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "clone")
	objects := new(testutil.MockObjectStore)
	objects.On("PutObject", ctx, "b", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	s := New(fakeResolver{}, &fakeCloner{files: treeFiles("clean.py", "clean_helpers.py")}, objects)

	staged, err := s.Stage(ctx, Request{Repository: "acme/transforms", StagingDir: dir, Bucket: "b", Steps: []string{"clean"}})

	require.NoError(t, err)
	assert.Len(t, staged.Keys, 2)
	assert.Equal(t, "s3://b/scripts/transformation/clean.py", staged.Scripts["clean"])
}

func TestStage_AmbiguousStepUploadsNothing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "clone")
	objects := new(testutil.MockObjectStore)
	s := New(fakeResolver{}, &fakeCloner{files: treeFiles("clean_v1.py", "clean_v2.py")}, objects)

	_, err := s.Stage(context.Background(), Request{Repository: "acme/transforms", StagingDir: dir, Bucket: "b", Steps: []string{"clean"}})

	var ambiguous *ErrAmbiguousStep
	require.True(t, errors.As(err, &ambiguous))
	assert.Equal(t, "clean", ambiguous.Step)
	assert.Equal(t, []string{"clean_v1.py", "clean_v2.py"}, ambiguous.Files)
	objects.AssertNotCalled(t, "PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.NoDirExists(t, dir)
}
