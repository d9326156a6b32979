package execx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// Cmd describes one external command invocation.
type Cmd struct {
	// Name is the program to run, resolved via PATH when not absolute.
	Name string
	// Args are the program arguments, without the program name itself.
	Args []string
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env holds extra KEY=value entries appended to the parent environment.
	Env []string
	// Stdin is fed to the process when set.
	Stdin io.Reader
	// Stdout receives the live output when set. Output is captured in the
	// Result either way.
	Stdout io.Writer
	// Stderr receives the live error output when set.
	Stderr io.Writer
}

func (c Cmd) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Result carries what a finished command produced.
type Result struct {
	ExitCode int
	StdOut   string
	StdErr   string
}

// Runner runs external commands. There is one real implementation; tests use
// the mock from the mocks subpackage.
type Runner interface {
	Run(ctx context.Context, cmd Cmd) (Result, error)
}

// Available reports whether a program can be found via PATH.
func Available(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// ErrorMessage formats a failed command's result for error output.
func ErrorMessage(result Result, err error) string {
	return fmt.Sprintf("%s\n\nstderr:\n%s\n\nstdout:\n%s",
		err.Error(), strings.TrimSpace(result.StdErr), strings.TrimSpace(result.StdOut))
}

type runner struct {
	logger *zap.Logger
}

// NewRunner creates the real Runner backed by os/exec.
func NewRunner(logger *zap.Logger) Runner {
	return &runner{logger: logger}
}

func (r *runner) Run(ctx context.Context, cmd Cmd) (Result, error) {
	r.logger.Debug("Running command",
		zap.String("cmd", cmd.String()),
		zap.String("dir", cmd.Dir),
	)

	var stdOutBuffer bytes.Buffer
	var stdErrBuffer bytes.Buffer
	stdout := io.Writer(&stdOutBuffer)
	stderr := io.Writer(&stdErrBuffer)
	if cmd.Stdout != nil {
		stdout = io.MultiWriter(cmd.Stdout, &stdOutBuffer)
	}
	if cmd.Stderr != nil {
		stderr = io.MultiWriter(cmd.Stderr, &stdErrBuffer)
	}

	proc := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	proc.Dir = cmd.Dir
	proc.Stdin = cmd.Stdin
	proc.Stdout = stdout
	proc.Stderr = stderr
	proc.Env = append(os.Environ(), cmd.Env...)

	err := proc.Run()
	result := Result{
		StdOut: stdOutBuffer.String(),
		StdErr: stdErrBuffer.String(),
	}
	if err != nil {
		//nolint: errorlint
		if exitError, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitError.ExitCode()
		}
		return result, fmt.Errorf("command %q failed: %w", cmd.String(), err)
	}
	return result, nil
}
