package runtime

import (
	"context"

	"github.com/mensylisir/xmrun/runner"
)

// Runtime runs commands. *Context and *MockContext implement it.
type Runtime interface {
	Run(ctx context.Context, command string, opts ...runner.Option) (*runner.Result, error)
	Sudo(ctx context.Context, command string, sudo SudoOptions, opts ...runner.Option) (*runner.Result, error)
}

var (
	_ Runtime = (*Context)(nil)
	_ Runtime = (*MockContext)(nil)
)
