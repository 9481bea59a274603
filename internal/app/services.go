package app

import (
	"fmt"

	"github.com/generative-ai-inc/war-machine/internal/command"
	"github.com/generative-ai-inc/war-machine/internal/config"
	"github.com/generative-ai-inc/war-machine/internal/docker"
	"github.com/generative-ai-inc/war-machine/internal/env"
	"github.com/generative-ai-inc/war-machine/internal/features"
	"github.com/generative-ai-inc/war-machine/internal/machine"
	"github.com/generative-ai-inc/war-machine/internal/orchestrator"
	"github.com/generative-ai-inc/war-machine/internal/requirements"
	"github.com/generative-ai-inc/war-machine/internal/secrets"
	"github.com/generative-ai-inc/war-machine/internal/services"
)

// Services holds the components of one invocation.
type Services struct {
	Environment  *env.Environment
	Runner       command.Runner
	Terminal     command.Attacher
	Store        *machine.Store
	Allocator    *machine.Allocator
	Composer     *env.Composer
	Scheduler    *orchestrator.Scheduler
	Features     *features.Provider
	Requirements *requirements.Checker
	Secrets      secrets.Store
	// Docker is nil unless the configuration uses the container engine.
	Docker docker.Runtime

	closers []func() error
}

// InitializeServices creates the components for wm.
func InitializeServices(cfg *Config, wm *config.Config) (*Services, error) {
	environment := env.FromOS()
	runner := command.NewShellRunner(environment)

	store, err := secrets.NewStore()
	if err != nil {
		return nil, fmt.Errorf("failed to open secret store: %w", err)
	}

	s := &Services{
		Environment:  environment,
		Runner:       runner,
		Terminal:     runner,
		Store:        machine.NewStore(cfg.ProjectDir),
		Allocator:    machine.NewAllocator(),
		Composer:     &env.Composer{Runner: runner, MachineName: wm.MachineName},
		Requirements: requirements.NewChecker(runner),
		Secrets:      store,
		Features:     &features.Provider{Runner: runner, Environment: environment, Secrets: store},
	}

	if NeedsDocker(wm) {
		client, err := docker.NewClient()
		if err != nil {
			return nil, err
		}
		s.Docker = client
		s.closers = append(s.closers, client.Close)
	}

	s.Scheduler = &orchestrator.Scheduler{
		Starter:     &services.Starter{Runner: runner, Terminal: runner, Docker: s.Docker},
		Composer:    s.Composer,
		Environment: environment,
	}
	return s, nil
}

// NeedsDocker reports whether wm uses the container engine directly.
func NeedsDocker(wm *config.Config) bool {
	if len(wm.Networks) > 0 || len(wm.RegistryCredentials) > 0 {
		return true
	}
	for _, svc := range wm.Services {
		if svc.Source.Container != nil {
			return true
		}
	}
	return false
}

// Close releases held resources.
func (s *Services) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
