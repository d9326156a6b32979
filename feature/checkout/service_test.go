package checkout

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
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

func newTestService(t *testing.T) (*Service, *mocks.Runner, string) {
	t.Helper()
	repo := t.TempDir()
	runner := &mocks.Runner{}
	svc := NewService(config.ArchipelagoConfig{Repo: repo, Python: "python3"}, runner, zap.NewNop())
	svc.SetOutput(io.Discard)
	return svc, runner, repo
}

// makeVenv fakes an initialized venv inside the checkout.
func makeVenv(t *testing.T, repo string) {
	t.Helper()
	bin := filepath.Join(repo, ".venv", "bin")
	require.NoError(t, os.MkdirAll(bin, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bin, "python"), []byte("#!/bin/true\n"), 0o755))
}

func gitCmd(args string) any {
	return mock.MatchedBy(func(cmd execx.Cmd) bool {
		return cmd.Name == "git" && strings.Join(cmd.Args, " ") == args
	})
}

func scriptCmd(script string) any {
	return mock.MatchedBy(func(cmd execx.Cmd) bool {
		return strings.HasSuffix(cmd.Name, ".venv/bin/python") &&
			len(cmd.Args) > 0 && filepath.Base(cmd.Args[0]) == script
	})
}

func hasEnv(cmd execx.Cmd, kv string) bool {
	for _, e := range cmd.Env {
		if e == kv {
			return true
		}
	}
	return false
}

func TestUpdate(t *testing.T) {
	t.Run("Refuses Dirty Checkout", func(t *testing.T) {
		svc, runner, repo := newTestService(t)
		runner.On("Run", mock.Anything, gitCmd("status --porcelain")).
			Return(execx.Result{StdOut: " M worlds/alttp.py\n"}, nil).Once()

		err := svc.Update(context.Background())
		assert.EqualError(t, err, "git status not clean: "+repo)
		runner.AssertNumberOfCalls(t, "Run", 1)
	})

	t.Run("Fast Forwards And Reinitializes", func(t *testing.T) {
		svc, runner, repo := newTestService(t)
		makeVenv(t, repo)
		runner.On("Run", mock.Anything, gitCmd("status --porcelain")).Return(execx.Result{}, nil).Once()
		runner.On("Run", mock.Anything, gitCmd("fetch --prune")).Return(execx.Result{}, nil).Once()
		runner.On("Run", mock.Anything, gitCmd("status")).Return(execx.Result{}, nil).Once()
		runner.On("Run", mock.Anything, gitCmd("merge --ff @{upstream}")).Return(execx.Result{}, nil).Once()
		runner.On("Run", mock.Anything, scriptCmd("ModuleUpdate.py")).Return(execx.Result{}, nil).Once()
		runner.On("Run", mock.Anything, scriptCmd("NetUtils.py")).Return(execx.Result{}, nil).Once()

		require.NoError(t, svc.Update(context.Background()))
		runner.AssertExpectations(t)
	})

	t.Run("Retries Transient Fetch Failures", func(t *testing.T) {
		svc, runner, repo := newTestService(t)
		makeVenv(t, repo)
		runner.On("Run", mock.Anything, gitCmd("status --porcelain")).Return(execx.Result{}, nil).Once()
		runner.On("Run", mock.Anything, gitCmd("fetch --prune")).
			Return(execx.Result{StdErr: "fatal: unable to access remote"}, errors.New("exit 128")).Once()
		runner.On("Run", mock.Anything, gitCmd("fetch --prune")).Return(execx.Result{}, nil).Once()
		runner.On("Run", mock.Anything, gitCmd("status")).Return(execx.Result{}, nil).Once()
		runner.On("Run", mock.Anything, gitCmd("merge --ff @{upstream}")).Return(execx.Result{}, nil).Once()
		runner.On("Run", mock.Anything, scriptCmd("ModuleUpdate.py")).Return(execx.Result{}, nil).Once()
		runner.On("Run", mock.Anything, scriptCmd("NetUtils.py")).Return(execx.Result{}, nil).Once()

		require.NoError(t, svc.Update(context.Background()))
		runner.AssertExpectations(t)
	})

	t.Run("Disables Git Credential Prompts", func(t *testing.T) {
		svc, runner, repo := newTestService(t)
		runner.On("Run", mock.Anything, mock.MatchedBy(func(cmd execx.Cmd) bool {
			return cmd.Name == "git" && cmd.Dir == repo && hasEnv(cmd, "GIT_TERMINAL_PROMPT=0")
		})).Return(execx.Result{StdOut: "dirty"}, nil).Once()

		err := svc.Update(context.Background())
		require.Error(t, err)
		runner.AssertExpectations(t)
	})
}

func TestInit(t *testing.T) {
	t.Run("Creates Missing Venv", func(t *testing.T) {
		svc, runner, repo := newTestService(t)
		runner.On("Run", mock.Anything, mock.MatchedBy(func(cmd execx.Cmd) bool {
			return cmd.Name == "python3" &&
				strings.Join(cmd.Args, " ") == "-m venv --clear "+filepath.Join(repo, ".venv")
		})).Return(execx.Result{}, nil).Once()
		runner.On("Run", mock.Anything, scriptCmd("ModuleUpdate.py")).Return(execx.Result{}, nil).Once()
		runner.On("Run", mock.Anything, scriptCmd("NetUtils.py")).Return(execx.Result{}, nil).Once()

		require.NoError(t, svc.Init(context.Background()))
		runner.AssertExpectations(t)
	})

	t.Run("Skips Existing Venv", func(t *testing.T) {
		svc, runner, repo := newTestService(t)
		makeVenv(t, repo)
		runner.On("Run", mock.Anything, scriptCmd("ModuleUpdate.py")).Return(execx.Result{}, nil).Once()
		runner.On("Run", mock.Anything, scriptCmd("NetUtils.py")).Return(execx.Result{}, nil).Once()

		require.NoError(t, svc.Init(context.Background()))
		runner.AssertNumberOfCalls(t, "Run", 2)
	})

	t.Run("Lets ModuleUpdate Install Requirements", func(t *testing.T) {
		svc, runner, repo := newTestService(t)
		makeVenv(t, repo)
		runner.On("Run", mock.Anything, mock.MatchedBy(func(cmd execx.Cmd) bool {
			return len(cmd.Args) > 0 && cmd.Args[0] == filepath.Join(repo, "ModuleUpdate.py") &&
				cmd.Dir == repo &&
				cmd.Stdin != nil &&
				hasEnv(cmd, "PYTHONWARNINGS=ignore") &&
				!hasEnv(cmd, "SKIP_REQUIREMENTS_UPDATE=1")
		})).Return(execx.Result{}, nil).Once()
		runner.On("Run", mock.Anything, mock.MatchedBy(func(cmd execx.Cmd) bool {
			return len(cmd.Args) > 0 && cmd.Args[0] == filepath.Join(repo, "NetUtils.py") &&
				hasEnv(cmd, "SKIP_REQUIREMENTS_UPDATE=1")
		})).Return(execx.Result{}, nil).Once()

		require.NoError(t, svc.Init(context.Background()))
		runner.AssertExpectations(t)
	})

	t.Run("Stops When Venv Creation Fails", func(t *testing.T) {
		svc, runner, _ := newTestService(t)
		runner.On("Run", mock.Anything, mock.Anything).
			Return(execx.Result{}, errors.New("python3 not found")).Once()

		err := svc.Init(context.Background())
		assert.ErrorContains(t, err, "failed to create venv")
		runner.AssertNumberOfCalls(t, "Run", 1)
	})
}
