package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/generative-ai-inc/war-machine/internal/command"
	"github.com/generative-ai-inc/war-machine/internal/config"
	"github.com/generative-ai-inc/war-machine/pkg/logging"
)

// Application is one war-machine invocation.
type Application struct {
	config     *Config
	warMachine *config.Config
	services   *Services
}

// NewApplication loads the configuration and initializes the components.
func NewApplication(cfg *Config) (*Application, error) {
	appLogLevel := logging.LevelInfo
	if cfg.Debug {
		appLogLevel = logging.LevelDebug
	}
	logging.InitForCLI(appLogLevel, os.Stderr)

	if cfg.ProjectDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to determine working directory: %w", err)
		}
		cfg.ProjectDir = wd
	}
	if cfg.ConfigPath == "" {
		path, err := config.DefaultPath()
		if err != nil {
			return nil, err
		}
		cfg.ConfigPath = path
	}

	wm, err := config.Load(cfg.ConfigPath)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to load configuration from %s", cfg.ConfigPath)
		return nil, err
	}
	logging.Debug("Bootstrap", "Loaded configuration for %s from %s", wm.MachineName, cfg.ConfigPath)

	services, err := InitializeServices(cfg, wm)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{config: cfg, warMachine: wm, services: services}, nil
}

// New assembles an application from already built parts.
func New(cfg *Config, wm *config.Config, services *Services) *Application {
	return &Application{config: cfg, warMachine: wm, services: services}
}

// Close releases held resources.
func (a *Application) Close() error {
	return a.services.Close()
}

// PrepareAndRun prepares the environment and runs the named command. An
// empty name only prepares. SIGINT and SIGTERM cancel whatever is running;
// service steps are killed and the invocation ends without error.
func (a *Application) PrepareAndRun(ctx context.Context, opts PrepareOptions, name string, args []string) error {
	if name != "" {
		if err := config.CheckCommand(a.warMachine, name); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := a.Prepare(ctx, opts); err != nil {
		if ctx.Err() != nil {
			return a.interrupted(command.ErrInterrupted)
		}
		return err
	}
	if name == "" {
		return nil
	}
	return a.Run(ctx, name, args)
}
