package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/generative-ai-inc/war-machine/internal/command"
	"github.com/generative-ai-inc/war-machine/internal/config"
	"github.com/generative-ai-inc/war-machine/internal/docker"
	"github.com/generative-ai-inc/war-machine/internal/template"
	"github.com/generative-ai-inc/war-machine/pkg/logging"
)

const subsystem = "Services"

// Outcome is the result of starting one service.
type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeCleaned
	OutcomeRunning
	OutcomeStarted
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCleaned:
		return "cleaned"
	case OutcomeRunning:
		return "running"
	case OutcomeStarted:
		return "started"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Up reports whether the service is running after the outcome.
func (o Outcome) Up() bool {
	return o == OutcomeRunning || o == OutcomeStarted
}

// FatalError stops the whole run.
type FatalError struct {
	Service string
	Stage   string
	Err     error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Service, e.Stage, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Options carries the run-wide settings a start needs.
type Options struct {
	MachineName string
	Networks    []string
	Ports       map[string]int
	Clean       bool
	FailFast    bool
}

// ContainerName is the name war-machine gives the container of a service.
func ContainerName(machineName, service string) string {
	return machineName + "-" + service
}

// Starter starts services. Docker may be nil when no container service is
// configured. Install commands run on Terminal when it is set, one at a time,
// so that they can prompt.
type Starter struct {
	Runner   command.Runner
	Terminal command.Attacher
	Docker   docker.Runtime

	installMu sync.Mutex
}

// Start runs svc through its lifecycle.
func (s *Starter) Start(ctx context.Context, svc config.Service, opts Options) (Outcome, error) {
	resolver := template.NewResolver(opts.MachineName, svc, opts.Ports)

	switch {
	case svc.Source.Container != nil:
		if s.Docker == nil {
			return OutcomeFailed, &FatalError{Service: svc.Name, Stage: "setup", Err: errors.New("container engine not available")}
		}
		return s.startContainer(ctx, svc, svc.Source.Container, resolver, opts)
	case svc.Source.App != nil:
		return s.startApp(ctx, svc, svc.Source.App, resolver, opts)
	default:
		return OutcomeFailed, &FatalError{Service: svc.Name, Stage: "setup", Err: errors.New("service has no source")}
	}
}

func (s *Starter) startContainer(ctx context.Context, svc config.Service, src *config.ContainerSource, resolver *template.Resolver, opts Options) (Outcome, error) {
	name := ContainerName(opts.MachineName, svc.Name)

	if opts.Clean {
		removed, err := s.Docker.RemoveMatching(ctx, name)
		if err != nil {
			return fail(ctx, svc.Name, "clean", err, opts)
		}
		logging.Info(subsystem, "🧹 Cleaned %s (%d container(s) removed)", svc.Name, removed)
		return OutcomeCleaned, nil
	}

	running, err := s.Docker.IsRunning(ctx, name)
	if err != nil {
		logging.Error(subsystem, err, "Failed to check whether %s is running", svc.Name)
		if opts.FailFast {
			return OutcomeFailed, &FatalError{Service: svc.Name, Stage: "health check", Err: err}
		}
	}
	if running {
		logging.Info(subsystem, "✅ %s is running", svc.Name)
		return OutcomeRunning, nil
	}

	ref := src.Reference()
	if err := s.Docker.Pull(ctx, ref); err != nil {
		logging.Error(subsystem, err, "🛑 Failed to pull %s", ref)
		return OutcomeFailed, &FatalError{Service: svc.Name, Stage: "pull", Err: err}
	}

	if src.StartCommand != "" {
		err = s.Runner.Spawn(ctx, resolver.Resolve(src.StartCommand))
	} else {
		err = s.Docker.Run(ctx, docker.RunOptions{Name: name, Image: ref, Networks: opts.Networks})
	}
	if err != nil {
		return fail(ctx, svc.Name, "start", err, opts)
	}
	logging.Info(subsystem, "🚀 Started %s", svc.Name)
	return OutcomeStarted, nil
}

func (s *Starter) startApp(ctx context.Context, svc config.Service, src *config.AppSource, resolver *template.Resolver, opts Options) (Outcome, error) {
	if opts.Clean {
		if src.CleanCommand != "" {
			if err := s.Runner.Spawn(ctx, resolver.Resolve(src.CleanCommand)); err != nil {
				return fail(ctx, svc.Name, "clean", err, opts)
			}
		}
		logging.Info(subsystem, "🧹 Cleaned %s", svc.Name)
		return OutcomeCleaned, nil
	}

	if _, err := s.Runner.Run(ctx, resolver.Resolve(src.HealthCheckCommand)); err == nil {
		logging.Info(subsystem, "✅ %s is running", svc.Name)
		return OutcomeRunning, nil
	}
	logging.Warn(subsystem, "%s is not running. Starting...", svc.Name)

	if _, err := s.Runner.Run(ctx, resolver.Resolve(src.InstallCheckCommand)); err != nil {
		logging.Warn(subsystem, "%s is not installed. Installing...", svc.Name)
		if err := s.install(ctx, resolver.Resolve(src.InstallCommand)); err != nil {
			if outcome, ferr := fail(ctx, svc.Name, "install", err, opts); ferr != nil {
				return outcome, ferr
			}
		}
	}

	if err := s.Runner.Spawn(ctx, resolver.Resolve(src.StartCommand)); err != nil {
		return fail(ctx, svc.Name, "start", err, opts)
	}
	logging.Info(subsystem, "🚀 Started %s", svc.Name)
	return OutcomeStarted, nil
}

func (s *Starter) install(ctx context.Context, cmdLine string) error {
	if s.Terminal == nil {
		return s.Runner.Spawn(ctx, cmdLine)
	}
	s.installMu.Lock()
	defer s.installMu.Unlock()
	return s.Terminal.Attach(ctx, cmdLine)
}

// fail applies the fail-fast policy to a failed step. Interrupted steps are
// always fatal.
func fail(ctx context.Context, service, stage string, err error, opts Options) (Outcome, error) {
	logging.Error(subsystem, err, "🛑 Failed to %s %s", stage, service)
	if opts.FailFast || errors.Is(err, command.ErrInterrupted) || ctx.Err() != nil {
		return OutcomeFailed, &FatalError{Service: service, Stage: stage, Err: err}
	}
	return OutcomeFailed, nil
}
