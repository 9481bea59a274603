package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/generative-ai-inc/war-machine/internal/app"
)

type runFlags struct {
	configPath              string
	noServices              bool
	noFeatures              bool
	clean                   bool
	failFast                bool
	blockOnFailedDependency bool
}

func newRunCmd() *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run [command] [-- args...]",
		Short: "Prepare the environment and run a command",
		Long: `Allocates ports, starts the configured services and composes the
environment, then runs the named command from the [commands] table with any
arguments given after --. The pre_commands run first, in name order.

Without a command, wm only prepares the environment.

Examples:
  wm run api
  wm run api -- --reload
  wm run --clean`,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, cmdArgs, err := splitRunArgs(args, cmd.ArgsLenAtDash())
			if err != nil {
				return err
			}
			return runRun(cmd.Context(), flags, name, cmdArgs)
		},
	}

	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "Configuration file to use (default ./war_machine.toml)")
	cmd.Flags().BoolVar(&flags.noServices, "no-services", false, "Do not start the services defined in the configuration file")
	cmd.Flags().BoolVar(&flags.noFeatures, "no-features", false, "Do not apply the configured features")
	cmd.Flags().BoolVar(&flags.clean, "clean", false, "Remove the services' containers and state instead of starting them")
	cmd.Flags().BoolVar(&flags.failFast, "fail-fast", true, "Abort on the first service that fails to start")
	cmd.Flags().BoolVar(&flags.blockOnFailedDependency, "block-on-failed-dependency", false, "Skip services whose dependencies did not come up")
	return cmd
}

// splitRunArgs separates the command name from the arguments after --.
func splitRunArgs(args []string, dash int) (string, []string, error) {
	before, after := args, []string(nil)
	if dash >= 0 {
		before, after = args[:dash], args[dash:]
	}
	switch len(before) {
	case 0:
		if len(after) > 0 {
			return "", nil, errors.New("arguments after -- need a command to pass them to")
		}
		return "", nil, nil
	case 1:
		return before[0], after, nil
	default:
		return "", nil, fmt.Errorf("expected at most one command, got %d", len(before))
	}
}

func runRun(ctx context.Context, flags *runFlags, name string, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	application, err := app.NewApplication(app.NewConfig(flags.configPath, rootDebug))
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	return application.PrepareAndRun(ctx, app.PrepareOptions{
		NoServices:              flags.noServices,
		NoFeatures:              flags.noFeatures,
		Clean:                   flags.clean,
		FailFast:                flags.failFast,
		BlockOnFailedDependency: flags.blockOnFailedDependency,
	}, name, args)
}

// exitCode returns the exit code of a failed foreground command, or 1.
func exitCode(err error) int {
	var exitErr *app.ExitError
	if errors.As(err, &exitErr) && exitErr.Code > 0 {
		return exitErr.Code
	}
	return 1
}
