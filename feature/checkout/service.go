package checkout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ap-tools/core/config"
	"ap-tools/core/execx"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Service wraps the Archipelago checkout: keeping it current, initializing
// its venv and running its scripts with sane automation ergonomics.
type Service struct {
	arch   config.ArchipelagoConfig
	runner execx.Runner
	logger *zap.Logger
	out    io.Writer
}

// NewService wires the checkout service together.
func NewService(arch config.ArchipelagoConfig, runner execx.Runner, logger *zap.Logger) *Service {
	return &Service{arch: arch, runner: runner, logger: logger, out: os.Stdout}
}

// SetOutput redirects the subprocess output, for tests.
func (s *Service) SetOutput(w io.Writer) {
	s.out = w
}

// Update fast-forwards the checkout to its upstream and re-initializes it.
// Refuses to touch a checkout with local modifications.
func (s *Service) Update(ctx context.Context) error {
	if !execx.Available("git") {
		return errors.New("git command is not available, you have to install it first")
	}

	status, err := s.git(ctx, false, "status", "--porcelain")
	if err != nil {
		return err
	}
	if len(status.StdOut) > 0 {
		return fmt.Errorf("git status not clean: %s", s.arch.Repo)
	}

	// Fetch touches the network, so transient failures get a few retries.
	err = backoff.Retry(func() error {
		_, err := s.git(ctx, false, "fetch", "--prune")
		return err
	}, backoff.WithContext(newBackoff(), ctx))
	if err != nil {
		return err
	}

	if _, err := s.git(ctx, true, "status"); err != nil {
		return err
	}
	if _, err := s.git(ctx, true, "merge", "--ff", "@{upstream}"); err != nil {
		return err
	}

	return s.Init(ctx)
}

// Init creates the checkout's venv when missing, lets ModuleUpdate.py run
// pip install, and warms up NetUtils.py. Every other script invocation from
// this tool sets SKIP_REQUIREMENTS_UPDATE=1, so a fresh checkout must go
// through Init before anything else works.
func (s *Service) Init(ctx context.Context) error {
	if _, err := os.Stat(s.arch.VenvPython()); err != nil {
		fmt.Fprintln(s.out, "creating venv: "+s.arch.VenvDir())
		cmd := execx.Cmd{
			Name:   s.arch.Python,
			Args:   []string{"-m", "venv", "--clear", s.arch.VenvDir()},
			Dir:    s.arch.Repo,
			Stdout: s.out,
			Stderr: s.out,
		}
		if _, err := s.runner.Run(ctx, cmd); err != nil {
			return fmt.Errorf("failed to create venv: %w", err)
		}
	}

	// The installer asks (twice for me) to confirm whether to actually do
	// its job. Hitting Enter is the 'yes' option.
	yeahYeahYeah := strings.NewReader(strings.Repeat("\n", 100))
	if err := s.apCmd(ctx, "ModuleUpdate.py", apOptions{stdin: yeahYeahYeah, autoInstall: true}); err != nil {
		return err
	}

	// NetUtils does expensive one-time work on first import. Get it over with.
	return s.apCmd(ctx, "NetUtils.py", apOptions{})
}

// git runs a git command in the checkout. With stream set, output goes to
// the terminal as it happens; it is captured either way.
func (s *Service) git(ctx context.Context, stream bool, args ...string) (execx.Result, error) {
	cmd := execx.Cmd{
		Name: "git",
		Args: args,
		Dir:  s.arch.Repo,
		Env:  []string{"GIT_TERMINAL_PROMPT=0"},
	}
	if stream {
		cmd.Stdout = s.out
		cmd.Stderr = s.out
	}
	result, err := s.runner.Run(ctx, cmd)
	if err != nil {
		return result, fmt.Errorf("git %s failed: %s", strings.Join(args, " "), execx.ErrorMessage(result, err))
	}
	return result, nil
}

type apOptions struct {
	args  []string
	stdin io.Reader
	// autoInstall lets the script pull its own requirements. Everything
	// except ModuleUpdate.py runs with SKIP_REQUIREMENTS_UPDATE=1.
	autoInstall bool
}

// apCmd runs one of the Archipelago repo's scripts with the venv
// interpreter, cwd pinned to the checkout. Give absolute paths as args if
// you want them to work.
func (s *Service) apCmd(ctx context.Context, script string, opts apOptions) error {
	env := []string{
		// pkg_resources deprecation warnings are not our problem.
		"PYTHONWARNINGS=ignore",
	}
	if !opts.autoInstall {
		env = append(env, "SKIP_REQUIREMENTS_UPDATE=1")
	}

	s.logger.Debug("Running Archipelago script", zap.String("script", script))
	cmd := execx.Cmd{
		Name:   s.arch.VenvPython(),
		Args:   append([]string{filepath.Join(s.arch.Repo, script)}, opts.args...),
		Dir:    s.arch.Repo,
		Env:    env,
		Stdin:  opts.stdin,
		Stdout: s.out,
		Stderr: s.out,
	}
	if _, err := s.runner.Run(ctx, cmd); err != nil {
		return fmt.Errorf("%s failed: %w", script, err)
	}
	return nil
}

func newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.Multiplier = 2
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 15 * time.Second
	b.Reset()
	return b
}
