package stager

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"emr_etl/internal/storage"
)

const (
	// TransformationsDir is walked inside the cloned tree.
	TransformationsDir = "data-source/transformations"
	// ScriptPrefix is the object key prefix staged scripts are uploaded to.
	ScriptPrefix = "scripts/transformation/"
)

type Request struct {
	// Repository is "org/repo".
	Repository string
	StagingDir string
	Bucket     string
	Steps      []string
}

type Stager struct {
	resolver RepoResolver
	cloner   Cloner
	objects  storage.ObjectStore
}

func New(resolver RepoResolver, cloner Cloner, objects storage.ObjectStore) *Stager {
	return &Stager{resolver: resolver, cloner: cloner, objects: objects}
}

// Staged is the outcome of a successful Stage.
type Staged struct {
	// Keys are every uploaded object key, in path order.
	Keys []string
	// Scripts maps each requested step to the location of the script its
	// job runs.
	Scripts map[string]string
}

// Stage clones the repository into req.StagingDir, uploads every script whose
// file name starts with a requested step name and removes the clone on every
// exit path. Every step must resolve to exactly one script of its own;
// otherwise nothing is uploaded.
func (s *Stager) Stage(ctx context.Context, req Request) (*Staged, error) {
	if _, statErr := os.Stat(req.StagingDir); statErr == nil {
		return nil, NewErrClone(req.Repository, fmt.Errorf("staging directory %s already exists", req.StagingDir))
	} else if !errors.Is(statErr, fs.ErrNotExist) {
		return nil, NewErrClone(req.Repository, statErr)
	}

	repo, err := s.resolver.Repository(ctx, req.Repository)
	if err != nil {
		return nil, NewErrClone(req.Repository, err)
	}

	defer func() {
		if rmErr := os.RemoveAll(req.StagingDir); rmErr != nil {
			zap.S().Warnw("failed to remove staging directory", "dir", req.StagingDir, "error", rmErr)
			return
		}
		zap.S().Debugw("removed staging directory", "dir", req.StagingDir)
	}()

	zap.S().Infow("cloning transformation repository", "repository", repo.FullName, "dir", req.StagingDir)
	if err := s.cloner.Clone(ctx, repo.SSHURL, req.StagingDir); err != nil {
		return nil, NewErrClone(req.Repository, err)
	}

	sel, err := selectScripts(filepath.Join(req.StagingDir, TransformationsDir), req.Steps)
	if err != nil {
		return nil, err
	}

	staged := &Staged{Scripts: make(map[string]string, len(req.Steps))}
	for _, path := range sel.files {
		key := ScriptPrefix + filepath.Base(path)
		if err := storage.UploadFile(ctx, s.objects, path, req.Bucket, key); err != nil {
			return nil, fmt.Errorf("uploading %s: %w", path, err)
		}
		zap.S().Infow("uploaded transformation script", "location", storage.Location{Bucket: req.Bucket, Key: key}.String())
		staged.Keys = append(staged.Keys, key)
	}
	for step, path := range sel.scripts {
		staged.Scripts[step] = storage.Location{Bucket: req.Bucket, Key: ScriptPrefix + filepath.Base(path)}.String()
	}
	return staged, nil
}

type selection struct {
	// files is every matching file in lexical path order.
	files []string
	// scripts is the file each step runs.
	scripts map[string]string
}

// selectScripts returns the files under root whose name starts with one of
// steps and picks the script of every step. A step with several candidates
// runs the one named exactly after it.
func selectScripts(root string, steps []string) (*selection, error) {
	candidates := make(map[string][]string, len(steps))
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		hit := false
		for _, step := range steps {
			if strings.HasPrefix(d.Name(), step) {
				candidates[step] = append(candidates[step], path)
				hit = true
			}
		}
		if hit {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	var unknown []string
	for _, step := range steps {
		if len(candidates[step]) == 0 {
			unknown = append(unknown, step)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, NewErrUnknownStep(unknown)
	}

	sel := &selection{files: files, scripts: make(map[string]string, len(steps))}
	for _, step := range steps {
		script, err := pickScript(step, candidates[step])
		if err != nil {
			return nil, err
		}
		sel.scripts[step] = script
	}
	return sel, nil
}

func pickScript(step string, candidates []string) (string, error) {
	if len(candidates) == 1 {
		return candidates[0], nil
	}
	var exact []string
	for _, c := range candidates {
		name := filepath.Base(c)
		if strings.TrimSuffix(name, filepath.Ext(name)) == step {
			exact = append(exact, c)
		}
	}
	if len(exact) == 1 {
		return exact[0], nil
	}
	names := make([]string, 0, len(candidates))
	for _, c := range candidates {
		names = append(names, filepath.Base(c))
	}
	return "", NewErrAmbiguousStep(step, names)
}
