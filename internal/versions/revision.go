package versions

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/metorial/runhistory/internal/models"
)

const DefaultLookupTimeout = 5 * time.Second

// RevisionSource resolves the repository state a run was recorded against.
// Implementations return models.Unknown instead of failing.
type RevisionSource interface {
	Commit(ctx context.Context) string
	Branch(ctx context.Context) string
}

// GitRevision asks git for the short commit hash and branch name of Dir.
type GitRevision struct {
	Binary  string
	Dir     string
	Timeout time.Duration
}

func NewGitRevision(binary, dir string) *GitRevision {
	return &GitRevision{
		Binary:  binary,
		Dir:     dir,
		Timeout: DefaultLookupTimeout,
	}
}

func (g *GitRevision) Commit(ctx context.Context) string {
	return g.lookup(ctx, "rev-parse", "--short", "HEAD")
}

func (g *GitRevision) Branch(ctx context.Context) string {
	return g.lookup(ctx, "rev-parse", "--abbrev-ref", "HEAD")
}

func (g *GitRevision) lookup(ctx context.Context, args ...string) string {
	ctx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, g.Binary, args...)
	cmd.Dir = g.Dir

	out, err := cmd.Output()
	if err != nil {
		return models.Unknown
	}

	value := strings.TrimSpace(string(out))
	if value == "" {
		return models.Unknown
	}
	return value
}
