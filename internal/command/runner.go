package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/generative-ai-inc/war-machine/pkg/logging"
)

const (
	subsystem = "Command"

	// logWidth bounds how much of a command line is echoed in debug logs.
	logWidth = 120

	// waitDelay is how long Wait keeps waiting for inherited pipes after the
	// process group has been killed.
	waitDelay = 2 * time.Second
)

// ErrInterrupted is returned by Spawn when the context is cancelled while the
// command is running.
var ErrInterrupted = errors.New("command interrupted")

// Environ supplies the KEY=VALUE list handed to child processes.
type Environ interface {
	Environ() []string
}

// Runner executes shell commands.
type Runner interface {
	// Run executes cmd and returns its standard output.
	Run(ctx context.Context, cmd string) (string, error)
	// Spawn executes cmd with its output streamed and waits for it to exit.
	// The command has no terminal and reads nothing from standard input.
	Spawn(ctx context.Context, cmd string) error
}

// Attacher runs commands that own the terminal while they run.
type Attacher interface {
	// Attach executes cmd in the terminal's process group with the runner's
	// standard input and waits for it to exit.
	Attach(ctx context.Context, cmd string) error
}

// Error describes a command that exited unsuccessfully.
type Error struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *Error) Error() string {
	if msg := strings.TrimSpace(e.Stderr); msg != "" {
		return msg
	}
	if e.ExitCode > 0 {
		return fmt.Sprintf("command %q exited with code %d", Truncate(e.Command), e.ExitCode)
	}
	return fmt.Sprintf("command %q failed: %v", Truncate(e.Command), e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ShellRunner is the Runner used outside of tests. Stdin is only connected to
// attached commands.
type ShellRunner struct {
	Env    Environ
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// NewShellRunner returns a runner wired to the process stdio.
func NewShellRunner(env Environ) *ShellRunner {
	return &ShellRunner{
		Env:    env,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// command builds the child process. A detached child gets its own session
// with no controlling terminal, and cancellation kills its process group. An
// attached child stays in the caller's process group and cancellation kills
// the shell only.
func (r *ShellRunner) command(ctx context.Context, cmdLine string, detached bool) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "sh", "-c", cmdLine)
	if detached {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
		cmd.Cancel = func() error {
			// Negative pid targets the whole process group.
			return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
	}
	cmd.WaitDelay = waitDelay
	if r.Env != nil {
		cmd.Env = r.Env.Environ()
	} else {
		cmd.Env = []string{}
	}
	return cmd
}

// Run implements Runner.
func (r *ShellRunner) Run(ctx context.Context, cmdLine string) (string, error) {
	logging.Debug(subsystem, "run: %s", Truncate(cmdLine))

	cmd := r.command(ctx, cmdLine, true)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.String(), newError(cmdLine, stderr.String(), err)
	}
	return stdout.String(), nil
}

// Spawn implements Runner.
func (r *ShellRunner) Spawn(ctx context.Context, cmdLine string) error {
	logging.Debug(subsystem, "spawn: %s", Truncate(cmdLine))

	cmd := r.command(ctx, cmdLine, true)
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	return wait(ctx, cmd, cmdLine)
}

// Attach implements Attacher.
func (r *ShellRunner) Attach(ctx context.Context, cmdLine string) error {
	logging.Debug(subsystem, "attach: %s", Truncate(cmdLine))

	cmd := r.command(ctx, cmdLine, false)
	cmd.Stdin = r.Stdin
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	return wait(ctx, cmd, cmdLine)
}

func wait(ctx context.Context, cmd *exec.Cmd, cmdLine string) error {
	if err := cmd.Start(); err != nil {
		return newError(cmdLine, "", err)
	}
	err := cmd.Wait()
	if ctx.Err() != nil {
		logging.Debug(subsystem, "process %d killed: %v", cmd.Process.Pid, ctx.Err())
		return ErrInterrupted
	}
	if err != nil {
		return newError(cmdLine, "", err)
	}
	return nil
}

func newError(cmdLine, stderr string, err error) *Error {
	e := &Error{Command: cmdLine, Stderr: stderr, Err: err, ExitCode: -1}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		e.ExitCode = exitErr.ExitCode()
	}
	return e
}

// Truncate shortens a command line for display.
func Truncate(cmdLine string) string {
	line := strings.Join(strings.Fields(cmdLine), " ")
	return runewidth.Truncate(line, logWidth, "...")
}
