package service

import (
	"context"

	"github.com/GoPolymarket/hookgate/internal/pkg/logger"
)

// BestEffort is the result of a side effect whose failure must never reach
// the client: audit writes and integration notices.
type BestEffort struct {
	Task string
	Err  error
}

func (b BestEffort) OK() bool { return b.Err == nil }

// Log records a failed task locally. Successful tasks are silent.
func (b BestEffort) Log(ctx context.Context, args ...any) {
	if b.Err == nil {
		return
	}
	args = append(args, "task", b.Task)
	logger.FromContext(ctx).WarnContext(ctx, "best-effort task failed", append(args, "error", b.Err.Error())...)
}
