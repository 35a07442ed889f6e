package stager

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"emr_etl/internal/github"
)

type Cloner interface {
	Clone(ctx context.Context, url, dir string) error
}

// GitCloner shells out to the git binary so the user's SSH agent and
// known_hosts apply to the clone.
type GitCloner struct {
	Binary string
}

func (g GitCloner) Clone(ctx context.Context, url, dir string) error {
	bin := g.Binary
	if bin == "" {
		bin = "git"
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "clone", "--depth", "1", "--quiet", url, dir)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

type RepoResolver interface {
	Repository(ctx context.Context, fullName string) (*github.Repository, error)
}

var _ RepoResolver = (*github.Client)(nil)
