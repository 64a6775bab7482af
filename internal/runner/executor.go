package runner

import (
	"context"

	"github.com/bartekus/vibe/internal/sandbox"
)

// Executor runs one command. *sandbox.Sandbox is the production implementation.
type Executor interface {
	Run(ctx context.Context, req sandbox.Request) sandbox.Result
}

var _ Executor = (*sandbox.Sandbox)(nil)
