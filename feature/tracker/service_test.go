package tracker

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"ap-tools/core/config"
	"ap-tools/core/execx"
	"ap-tools/core/execx/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T, cfg config.TrackerConfig) (*Service, *mocks.Runner) {
	t.Helper()
	runner := &mocks.Runner{}
	svc := NewService(cfg, runner, zap.NewNop())
	svc.SetOutput(io.Discard)
	return svc, runner
}

func cmdLine(cmd execx.Cmd) string {
	return cmd.Name + " " + strings.Join(cmd.Args, " ")
}

func probeOK(runner *mocks.Runner) {
	runner.On("Run", mock.Anything, mock.MatchedBy(func(cmd execx.Cmd) bool {
		return cmdLine(cmd) == "docker compose version"
	})).Return(execx.Result{}, nil)
}

func probeFails(runner *mocks.Runner) {
	runner.On("Run", mock.Anything, mock.MatchedBy(func(cmd execx.Cmd) bool {
		return cmdLine(cmd) == "docker compose version"
	})).Return(execx.Result{}, errors.New("unknown command"))
}

func expectCompose(runner *mocks.Runner, line string) {
	runner.On("Run", mock.Anything, mock.MatchedBy(func(cmd execx.Cmd) bool {
		return cmdLine(cmd) == line
	})).Return(execx.Result{}, nil).Once()
}

func TestService(t *testing.T) {
	cfg := config.TrackerConfig{ComposeFile: "tracker/docker-compose.yml"}

	t.Run("Up Uses The Compose Plugin", func(t *testing.T) {
		svc, runner := newTestService(t, cfg)
		probeOK(runner)
		expectCompose(runner, "docker compose -f tracker/docker-compose.yml up -d")

		require.NoError(t, svc.Up(context.Background()))
		runner.AssertExpectations(t)
	})

	t.Run("Falls Back To Standalone Compose", func(t *testing.T) {
		svc, runner := newTestService(t, cfg)
		probeFails(runner)
		runner.On("Run", mock.Anything, mock.MatchedBy(func(cmd execx.Cmd) bool {
			return cmdLine(cmd) == "docker-compose version"
		})).Return(execx.Result{}, nil)
		expectCompose(runner, "docker-compose -f tracker/docker-compose.yml down")

		require.NoError(t, svc.Down(context.Background()))
		runner.AssertExpectations(t)
	})

	t.Run("Errors When No Compose Exists", func(t *testing.T) {
		svc, runner := newTestService(t, cfg)
		probeFails(runner)
		runner.On("Run", mock.Anything, mock.MatchedBy(func(cmd execx.Cmd) bool {
			return cmdLine(cmd) == "docker-compose version"
		})).Return(execx.Result{}, errors.New("not found"))

		err := svc.Status(context.Background())
		assert.EqualError(t, err, "docker compose is not available, install the compose plugin or docker-compose")
	})

	t.Run("Forwards The Project Name", func(t *testing.T) {
		svc, runner := newTestService(t, config.TrackerConfig{
			ComposeFile: "dc.yml",
			Project:     "cheese",
		})
		probeOK(runner)
		expectCompose(runner, "docker compose -f dc.yml -p cheese ps")

		require.NoError(t, svc.Status(context.Background()))
		runner.AssertExpectations(t)
	})

	t.Run("Logs Pass Follow And Tail", func(t *testing.T) {
		svc, runner := newTestService(t, cfg)
		probeOK(runner)
		expectCompose(runner, "docker compose -f tracker/docker-compose.yml logs --follow --tail 200")

		err := svc.Logs(context.Background(), LogsOptions{Follow: true, Tail: 200})
		require.NoError(t, err)
		runner.AssertExpectations(t)
	})

	t.Run("Logs Omit Unset Flags", func(t *testing.T) {
		svc, runner := newTestService(t, cfg)
		probeOK(runner)
		expectCompose(runner, "docker compose -f tracker/docker-compose.yml logs")

		require.NoError(t, svc.Logs(context.Background(), LogsOptions{}))
		runner.AssertExpectations(t)
	})

	t.Run("Wraps Compose Failures", func(t *testing.T) {
		svc, runner := newTestService(t, cfg)
		probeOK(runner)
		runner.On("Run", mock.Anything, mock.MatchedBy(func(cmd execx.Cmd) bool {
			return strings.Contains(cmdLine(cmd), "up -d")
		})).Return(execx.Result{StdErr: "no such file: dc.yml"}, errors.New("exit 1"))

		err := svc.Up(context.Background())
		assert.ErrorContains(t, err, "docker up -d failed")
	})
}
