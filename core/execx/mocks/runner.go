package mocks

import (
	"context"

	"ap-tools/core/execx"

	"github.com/stretchr/testify/mock"
)

// Runner is a mock implementation of execx.Runner
type Runner struct {
	mock.Mock
}

func (m *Runner) Run(ctx context.Context, cmd execx.Cmd) (execx.Result, error) {
	args := m.Called(ctx, cmd)
	return args.Get(0).(execx.Result), args.Error(1)
}
