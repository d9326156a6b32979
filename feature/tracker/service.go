package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"ap-tools/core/config"
	"ap-tools/core/execx"

	"go.uber.org/zap"
)

// Service drives the Cheese Tracker's docker compose stack.
type Service struct {
	cfg    config.TrackerConfig
	runner execx.Runner
	logger *zap.Logger
	out    io.Writer
}

func NewService(cfg config.TrackerConfig, runner execx.Runner, logger *zap.Logger) *Service {
	return &Service{cfg: cfg, runner: runner, logger: logger, out: os.Stdout}
}

// SetOutput redirects the compose output, for tests.
func (s *Service) SetOutput(w io.Writer) {
	s.out = w
}

// Up starts the stack detached.
func (s *Service) Up(ctx context.Context) error {
	return s.compose(ctx, "up", "-d")
}

// Down stops the stack and removes its containers.
func (s *Service) Down(ctx context.Context) error {
	return s.compose(ctx, "down")
}

// Status prints the state of the stack's containers.
func (s *Service) Status(ctx context.Context) error {
	return s.compose(ctx, "ps")
}

// LogsOptions control the logs invocation. Tail of 0 means everything.
type LogsOptions struct {
	Follow bool
	Tail   int
}

// Logs streams the stack's logs to the terminal.
func (s *Service) Logs(ctx context.Context, opts LogsOptions) error {
	args := []string{"logs"}
	if opts.Follow {
		args = append(args, "--follow")
	}
	if opts.Tail > 0 {
		args = append(args, "--tail", strconv.Itoa(opts.Tail))
	}
	return s.compose(ctx, args...)
}

func (s *Service) compose(ctx context.Context, args ...string) error {
	name, base, err := s.composeBase(ctx)
	if err != nil {
		return err
	}

	full := append(base, "-f", s.cfg.ComposeFile)
	if s.cfg.Project != "" {
		full = append(full, "-p", s.cfg.Project)
	}
	full = append(full, args...)

	s.logger.Debug("Running compose", zap.String("name", name), zap.Strings("args", full))
	cmd := execx.Cmd{Name: name, Args: full, Stdout: s.out, Stderr: s.out}
	if _, err := s.runner.Run(ctx, cmd); err != nil {
		return fmt.Errorf("%s %s failed: %w", name, strings.Join(args, " "), err)
	}
	return nil
}

// composeBase picks the compose flavor. The docker plugin wins when its
// probe succeeds, the standalone docker-compose is the fallback.
func (s *Service) composeBase(ctx context.Context) (string, []string, error) {
	probe := execx.Cmd{Name: "docker", Args: []string{"compose", "version"}}
	if _, err := s.runner.Run(ctx, probe); err == nil {
		return "docker", []string{"compose"}, nil
	}
	probe = execx.Cmd{Name: "docker-compose", Args: []string{"version"}}
	if _, err := s.runner.Run(ctx, probe); err == nil {
		return "docker-compose", nil, nil
	}
	return "", nil, errors.New("docker compose is not available, install the compose plugin or docker-compose")
}
