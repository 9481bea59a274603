package app

import (
	"context"
	"errors"
	"os/signal"
	"regexp"
	"sort"
	"strings"
	"syscall"

	"github.com/generative-ai-inc/war-machine/internal/command"
	"github.com/generative-ai-inc/war-machine/pkg/logging"
)

var safeArg = regexp.MustCompile(`^[A-Za-z0-9_@%+=:,./-]+$`)

// ExitError reports a foreground command that exited with a non-zero code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Run executes the pre-commands in name order, then the named command with
// args appended. Both are attached to the terminal and bound to SIGINT and
// SIGTERM; an interrupt ends the run without error.
func (a *Application) Run(ctx context.Context, name string, args []string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := a.services.Terminal

	preNames := make([]string, 0, len(a.warMachine.PreCommands))
	for n := range a.warMachine.PreCommands {
		preNames = append(preNames, n)
	}
	sort.Strings(preNames)
	for _, n := range preNames {
		logging.Info("Run", "Running pre-command %s", n)
		if err := runner.Attach(ctx, a.warMachine.PreCommands[n]); err != nil {
			return foreground(a.interrupted(err))
		}
	}

	cmdLine := a.warMachine.Commands[name]
	if len(args) > 0 {
		cmdLine += " " + joinArgs(args)
	}

	logging.Banner(logging.BannerGreen, "Starting service")
	logging.Info("Run", "Running: %s", command.Truncate(cmdLine))
	return foreground(a.interrupted(runner.Attach(ctx, cmdLine)))
}

// foreground marks the exit code of a failed attached command.
func foreground(err error) error {
	var cmdErr *command.Error
	if errors.As(err, &cmdErr) && cmdErr.ExitCode > 0 {
		return &ExitError{Code: cmdErr.ExitCode, Err: err}
	}
	return err
}

func (a *Application) interrupted(err error) error {
	if errors.Is(err, command.ErrInterrupted) {
		logging.Info("Run", "👍 Shutting down gracefully...")
		return nil
	}
	return err
}

func joinArgs(args []string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		if safeArg.MatchString(arg) {
			quoted[i] = arg
		} else {
			quoted[i] = "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
		}
	}
	return strings.Join(quoted, " ")
}
