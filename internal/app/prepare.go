package app

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/generative-ai-inc/war-machine/internal/env"
	"github.com/generative-ai-inc/war-machine/internal/machine"
	"github.com/generative-ai-inc/war-machine/internal/orchestrator"
	"github.com/generative-ai-inc/war-machine/pkg/logging"
)

const prepareSubsystem = "Prepare"

// Prepare allocates ports, composes the environment and starts the
// services. It returns the rows of the environment table.
func (a *Application) Prepare(ctx context.Context, opts PrepareOptions) ([]env.Row, error) {
	wm := a.warMachine
	s := a.services

	if len(wm.Requirements) > 0 {
		if _, err := s.Requirements.Check(ctx, wm.Requirements); err != nil {
			return nil, err
		}
	}

	state, err := a.allocatePorts(opts.Clean)
	if err != nil {
		return nil, err
	}

	var tuples []env.Tuple
	if s.Secrets != nil {
		stored, err := s.Secrets.All()
		if err != nil {
			return nil, err
		}
		tuples = append(tuples, secretTuples(stored)...)
	}
	env.Apply(s.Environment, tuples)

	if !opts.NoFeatures && len(wm.Features) > 0 {
		featureTuples, err := s.Features.Apply(ctx, wm.Features)
		if err != nil {
			return nil, err
		}
		env.Apply(s.Environment, featureTuples)
		tuples = append(tuples, featureTuples...)
	}

	if !opts.NoServices {
		for _, svc := range wm.Services {
			before, err := s.Composer.ExposedVariables(ctx, state.Ports, svc, env.BeforeStart)
			if err != nil {
				return nil, err
			}
			env.Apply(s.Environment, before)
			tuples = append(tuples, before...)
		}

		report, err := a.startServices(ctx, state, opts)
		if report != nil {
			tuples = append(tuples, report.Tuples...)
		}
		if err != nil {
			return nil, err
		}
	}

	rows := env.Merge(s.Environment, tuples)
	if len(rows) > 0 {
		logging.Banner(logging.BannerBlue, "Environment variables")
		logging.Print(env.RenderTable(rows))
	}
	return rows, nil
}

func (a *Application) allocatePorts(clean bool) (machine.State, error) {
	s := a.services
	if err := s.Store.EnsureDir(); err != nil {
		return machine.State{}, err
	}

	state := s.Store.Load()
	if clean {
		state.Ports = map[string]int{}
	}
	state, err := s.Allocator.Allocate(a.warMachine, state)
	if err != nil {
		return machine.State{}, err
	}
	if err := s.Store.Save(state); err != nil {
		return machine.State{}, err
	}

	if len(state.Ports) > 0 {
		logging.Banner(logging.BannerMagenta, "Port map")
		logging.Print(machine.RenderPortMap(state.Ports))
	}
	return state, nil
}

// startServices logs in to registries, ensures networks and runs the
// scheduler. Registries are logged out again whatever the outcome.
func (a *Application) startServices(ctx context.Context, state machine.State, opts PrepareOptions) (*orchestrator.Report, error) {
	wm := a.warMachine
	s := a.services

	if s.Docker != nil {
		for _, name := range wm.Networks {
			if err := s.Docker.EnsureNetwork(ctx, name); err != nil {
				return nil, err
			}
		}

		var loggedIn []string
		defer func() {
			for _, server := range loggedIn {
				if err := s.Docker.Logout(ctx, server); err != nil {
					logging.Error(prepareSubsystem, err, "Failed to logout from %s", server)
				}
			}
		}()
		for _, rc := range wm.RegistryCredentials {
			username, uerr := a.lookup(rc.Username)
			password, perr := a.lookup(rc.Password)
			if err := errors.Join(uerr, perr); err != nil {
				return nil, fmt.Errorf("credentials for %s: %w", rc.Registry, err)
			}
			if err := s.Docker.Login(ctx, rc.Registry, username, password); err != nil {
				return nil, err
			}
			loggedIn = append(loggedIn, rc.Registry)
		}
	}

	if len(wm.Services) == 0 {
		return nil, nil
	}
	logging.Banner(logging.BannerYellow, "Starting local instances")
	return s.Scheduler.StartAll(ctx, wm, state, orchestrator.Options{
		Clean:                   opts.Clean,
		FailFast:                opts.FailFast,
		BlockOnFailedDependency: opts.BlockOnFailedDependency,
	})
}

// lookup resolves the name of a variable holding a credential.
func (a *Application) lookup(name string) (string, error) {
	if v, ok := a.services.Environment.Get(name); ok {
		return v, nil
	}
	return "", fmt.Errorf("secret %s is not set, please set it with `wm secret add %s` or in your .env file", name, name)
}

func secretTuples(stored map[string]string) []env.Tuple {
	names := make([]string, 0, len(stored))
	for name := range stored {
		names = append(names, name)
	}
	sort.Strings(names)

	tuples := make([]env.Tuple, 0, len(names))
	for _, name := range names {
		tuples = append(tuples, env.Tuple{Key: name, Value: stored[name], Source: env.SourceSecret})
	}
	return tuples
}
