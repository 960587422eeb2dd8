package assembly

import (
	"context"
	"log/slog"

	"github.com/franzpoize/bl/internal/gitproc"
)

// gitRunner binds gitproc.Run to a fixed git executable, working
// directory and logger so state-machine methods can call git(ctx, args...)
// without repeating that context on every call.
type gitRunner struct {
	gitExec string
	dir     string
	log     *slog.Logger
}

func (g *gitRunner) git(ctx context.Context, args ...string) (string, error) {
	return gitproc.Run(ctx, g.log, nil, g.dir, g.gitExec, args...)
}

func (g *gitRunner) gitEnv(ctx context.Context, envs []string, args ...string) (string, error) {
	return gitproc.Run(ctx, g.log, envs, g.dir, g.gitExec, args...)
}
