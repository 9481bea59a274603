package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/generative-ai-inc/war-machine/internal/config"
	"github.com/generative-ai-inc/war-machine/internal/env"
	"github.com/generative-ai-inc/war-machine/internal/machine"
	"github.com/generative-ai-inc/war-machine/internal/services"
	"github.com/generative-ai-inc/war-machine/pkg/logging"
)

const subsystem = "Orchestrator"

// ServiceStarter starts one service.
type ServiceStarter interface {
	Start(ctx context.Context, svc config.Service, opts services.Options) (services.Outcome, error)
}

// ValueComposer composes the exposed values of one service.
type ValueComposer interface {
	ExposedVariables(ctx context.Context, ports map[string]int, svc config.Service, phase env.Phase) ([]env.Tuple, error)
}

// Options controls a StartAll run.
type Options struct {
	Clean    bool
	FailFast bool
	// BlockOnFailedDependency skips services whose dependencies failed or
	// were skipped.
	BlockOnFailedDependency bool
}

// Report is the result of a StartAll run.
type Report struct {
	Waves    [][]string
	Outcomes map[string]services.Outcome
	// Tuples holds the post-start values, in configuration order.
	Tuples []env.Tuple
}

// Scheduler runs services wave by wave.
type Scheduler struct {
	Starter     ServiceStarter
	Composer    ValueComposer
	Environment *env.Environment
}

type run struct {
	s      *Scheduler
	cfg    *config.Config
	state  machine.State
	opts   Options
	report *Report

	mu     sync.Mutex
	tuples map[string][]env.Tuple
}

// StartAll starts every service of cfg. The returned report is never nil.
func (s *Scheduler) StartAll(ctx context.Context, cfg *config.Config, state machine.State, opts Options) (*Report, error) {
	r := &run{
		s:      s,
		cfg:    cfg,
		state:  state,
		opts:   opts,
		report: &Report{Outcomes: map[string]services.Outcome{}},
		tuples: map[string][]env.Tuple{},
	}
	err := r.startWaves(ctx)
	for _, svc := range cfg.Services {
		r.report.Tuples = append(r.report.Tuples, r.tuples[svc.Name]...)
	}
	return r.report, err
}

func (r *run) startWaves(ctx context.Context) error {
	pending := make(map[string]config.Service, len(r.cfg.Services))
	for _, svc := range r.cfg.Services {
		pending[svc.Name] = svc
	}

	for level := 0; len(pending) > 0; level++ {
		var wave []config.Service
		for _, svc := range r.cfg.Services {
			if _, ok := pending[svc.Name]; ok && dependenciesHandled(svc, pending) {
				wave = append(wave, svc)
			}
		}
		if len(wave) == 0 {
			return fmt.Errorf("unable to schedule services %s: circular dependency", strings.Join(pendingNames(r.cfg, pending), ", "))
		}

		names := make([]string, len(wave))
		for i, svc := range wave {
			names[i] = svc.Name
		}
		r.report.Waves = append(r.report.Waves, names)
		logging.Debug(subsystem, "Starting dependency level %d: %s", level, strings.Join(names, ", "))

		var g errgroup.Group
		for _, svc := range wave {
			g.Go(func() error {
				return r.startOne(ctx, svc)
			})
		}
		err := g.Wait()

		for _, svc := range wave {
			delete(pending, svc.Name)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *run) startOne(ctx context.Context, svc config.Service) error {
	if r.opts.BlockOnFailedDependency {
		if dep, blocked := r.blockedBy(svc); blocked {
			logging.Warn(subsystem, "Skipping %s because %s is not up", svc.Name, dep)
			r.setOutcome(svc.Name, services.OutcomeSkipped)
			return nil
		}
	}

	outcome, err := r.s.Starter.Start(ctx, svc, services.Options{
		MachineName: r.cfg.MachineName,
		Networks:    r.cfg.Networks,
		Ports:       r.state.Ports,
		Clean:       r.opts.Clean,
		FailFast:    r.opts.FailFast,
	})
	r.setOutcome(svc.Name, outcome)
	if err != nil {
		return err
	}
	if !outcome.Up() || r.s.Composer == nil {
		return nil
	}

	tuples, err := r.s.Composer.ExposedVariables(ctx, r.state.Ports, svc, env.AfterStart)
	if err != nil {
		logging.Error(subsystem, err, "Failed to compose values of %s", svc.Name)
		if r.opts.FailFast {
			return &services.FatalError{Service: svc.Name, Stage: "exposed values", Err: err}
		}
		return nil
	}
	if r.s.Environment != nil {
		env.Apply(r.s.Environment, tuples)
	}
	r.mu.Lock()
	r.tuples[svc.Name] = tuples
	r.mu.Unlock()
	return nil
}

func (r *run) setOutcome(name string, outcome services.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.Outcomes[name] = outcome
}

// blockedBy returns the first dependency of svc that is neither up nor
// cleaned.
func (r *run) blockedBy(svc config.Service) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, dep := range svc.DependsOn {
		outcome, ok := r.report.Outcomes[dep]
		if !ok || outcome == services.OutcomeFailed || outcome == services.OutcomeSkipped {
			return dep, true
		}
	}
	return "", false
}

func dependenciesHandled(svc config.Service, pending map[string]config.Service) bool {
	for _, dep := range svc.DependsOn {
		if _, ok := pending[dep]; ok {
			return false
		}
	}
	return true
}

func pendingNames(cfg *config.Config, pending map[string]config.Service) []string {
	var names []string
	for _, svc := range cfg.Services {
		if _, ok := pending[svc.Name]; ok {
			names = append(names, svc.Name)
		}
	}
	return names
}
