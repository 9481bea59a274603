package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/generative-ai-inc/war-machine/internal/config"
	"github.com/generative-ai-inc/war-machine/internal/env"
	"github.com/generative-ai-inc/war-machine/internal/machine"
	"github.com/generative-ai-inc/war-machine/internal/services"
)

type event struct {
	name  string
	begin bool
}

type fakeStarter struct {
	mu       sync.Mutex
	events   []event
	outcomes map[string]services.Outcome
	errs     map[string]error
	delay    time.Duration
	hook     func(name string)
	opts     []services.Options
}

func (f *fakeStarter) Start(_ context.Context, svc config.Service, opts services.Options) (services.Outcome, error) {
	f.mu.Lock()
	f.events = append(f.events, event{svc.Name, true})
	f.opts = append(f.opts, opts)
	hook := f.hook
	f.mu.Unlock()

	if hook != nil {
		hook(svc.Name)
	}
	time.Sleep(f.delay)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event{svc.Name, false})
	outcome, ok := f.outcomes[svc.Name]
	if !ok {
		outcome = services.OutcomeStarted
	}
	return outcome, f.errs[svc.Name]
}

func (f *fakeStarter) started(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e.begin && e.name == name {
			return true
		}
	}
	return false
}

func (f *fakeStarter) index(name string, begin bool) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.events {
		if e.name == name && e.begin == begin {
			return i
		}
	}
	return -1
}

type fakeComposer struct {
	values map[string][]env.Tuple
	errs   map[string]error
	env    *env.Environment
	seen   map[string][]string
	mu     sync.Mutex
}

func (f *fakeComposer) ExposedVariables(_ context.Context, _ map[string]int, svc config.Service, phase env.Phase) ([]env.Tuple, error) {
	if phase != env.AfterStart {
		return nil, errors.New("unexpected phase")
	}
	if f.env != nil {
		f.mu.Lock()
		if f.seen == nil {
			f.seen = map[string][]string{}
		}
		f.seen[svc.Name] = f.env.Environ()
		f.mu.Unlock()
	}
	return f.values[svc.Name], f.errs[svc.Name]
}

func svc(name string, deps ...string) config.Service {
	return config.Service{Name: name, DependsOn: deps, Source: config.Source{App: &config.AppSource{}}}
}

func cfgOf(services ...config.Service) *config.Config {
	return &config.Config{MachineName: "acme", Networks: []string{"acme"}, Services: services}
}

func TestStartAll_DependencyOrder(t *testing.T) {
	starter := &fakeStarter{delay: 10 * time.Millisecond}
	s := &Scheduler{Starter: starter}

	cfg := cfgOf(svc("api", "db", "cache"), svc("db"), svc("cache"), svc("worker", "api"))
	report, err := s.StartAll(context.Background(), cfg, machine.NewState(), Options{FailFast: true})
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"db", "cache"}, {"api"}, {"worker"}}, report.Waves)
	assert.Less(t, starter.index("db", false), starter.index("api", true))
	assert.Less(t, starter.index("cache", false), starter.index("api", true))
	assert.Less(t, starter.index("api", false), starter.index("worker", true))
	for _, name := range []string{"api", "db", "cache", "worker"} {
		assert.Equal(t, services.OutcomeStarted, report.Outcomes[name])
	}
}

func TestStartAll_WaveRunsConcurrently(t *testing.T) {
	var barrier sync.WaitGroup
	barrier.Add(2)
	released := make(chan struct{})
	go func() {
		barrier.Wait()
		close(released)
	}()

	starter := &fakeStarter{hook: func(string) {
		barrier.Done()
		select {
		case <-released:
		case <-time.After(2 * time.Second):
		}
	}}
	s := &Scheduler{Starter: starter}

	_, err := s.StartAll(context.Background(), cfgOf(svc("a"), svc("b")), machine.NewState(), Options{})
	require.NoError(t, err)

	select {
	case <-released:
	default:
		t.Fatal("services of one wave did not start concurrently")
	}
}

func TestStartAll_PassesRunOptions(t *testing.T) {
	starter := &fakeStarter{}
	state := machine.NewState()
	state.Ports["a"] = 49000

	s := &Scheduler{Starter: starter}
	_, err := s.StartAll(context.Background(), cfgOf(svc("a")), state, Options{Clean: true, FailFast: true})
	require.NoError(t, err)

	require.Len(t, starter.opts, 1)
	assert.Equal(t, services.Options{
		MachineName: "acme",
		Networks:    []string{"acme"},
		Ports:       map[string]int{"a": 49000},
		Clean:       true,
		FailFast:    true,
	}, starter.opts[0])
}

func TestStartAll_FatalErrorHaltsLaterWaves(t *testing.T) {
	fatal := &services.FatalError{Service: "db", Stage: "pull", Err: errors.New("denied")}
	starter := &fakeStarter{
		delay:    5 * time.Millisecond,
		outcomes: map[string]services.Outcome{"db": services.OutcomeFailed},
		errs:     map[string]error{"db": fatal},
	}
	s := &Scheduler{Starter: starter}

	cfg := cfgOf(svc("db"), svc("cache"), svc("api", "db"))
	report, err := s.StartAll(context.Background(), cfg, machine.NewState(), Options{FailFast: true})
	require.ErrorIs(t, err, fatal)

	assert.True(t, starter.started("cache"), "the failing wave is allowed to finish")
	assert.Equal(t, services.OutcomeStarted, report.Outcomes["cache"])
	assert.False(t, starter.started("api"))
	assert.NotContains(t, report.Outcomes, "api")
}

func TestStartAll_ContinuesPastFailedDependencyByDefault(t *testing.T) {
	starter := &fakeStarter{outcomes: map[string]services.Outcome{"db": services.OutcomeFailed}}
	s := &Scheduler{Starter: starter}

	report, err := s.StartAll(context.Background(), cfgOf(svc("db"), svc("api", "db")), machine.NewState(), Options{})
	require.NoError(t, err)
	assert.Equal(t, services.OutcomeFailed, report.Outcomes["db"])
	assert.Equal(t, services.OutcomeStarted, report.Outcomes["api"])
}

func TestStartAll_BlockOnFailedDependency(t *testing.T) {
	starter := &fakeStarter{outcomes: map[string]services.Outcome{"db": services.OutcomeFailed}}
	s := &Scheduler{Starter: starter}

	cfg := cfgOf(svc("db"), svc("api", "db"), svc("worker", "api"), svc("cache"))
	report, err := s.StartAll(context.Background(), cfg, machine.NewState(), Options{BlockOnFailedDependency: true})
	require.NoError(t, err)

	assert.Equal(t, services.OutcomeSkipped, report.Outcomes["api"])
	assert.Equal(t, services.OutcomeSkipped, report.Outcomes["worker"])
	assert.Equal(t, services.OutcomeStarted, report.Outcomes["cache"])
	assert.False(t, starter.started("api"))
}

func TestStartAll_PostStartValuesVisibleToDependents(t *testing.T) {
	environment := env.New([]string{"HOME=/home/dev"})
	composer := &fakeComposer{
		env: environment,
		values: map[string][]env.Tuple{
			"db": {{Key: "DATABASE_URL", Value: "postgres://localhost:49000", Source: env.SourceWarMachine}},
		},
	}
	starter := &fakeStarter{outcomes: map[string]services.Outcome{"db": services.OutcomeRunning}}
	s := &Scheduler{Starter: starter, Composer: composer, Environment: environment}

	report, err := s.StartAll(context.Background(), cfgOf(svc("db"), svc("api", "db")), machine.NewState(), Options{})
	require.NoError(t, err)

	assert.Contains(t, composer.seen["api"], "DATABASE_URL=postgres://localhost:49000")
	assert.Equal(t, composer.values["db"], report.Tuples)
}

func TestStartAll_NoCompositionWhenNotUp(t *testing.T) {
	composer := &fakeComposer{values: map[string][]env.Tuple{"db": {{Key: "X", Value: "1"}}}}
	for _, outcome := range []services.Outcome{services.OutcomeCleaned, services.OutcomeFailed} {
		starter := &fakeStarter{outcomes: map[string]services.Outcome{"db": outcome}}
		s := &Scheduler{Starter: starter, Composer: composer, Environment: env.New(nil)}

		report, err := s.StartAll(context.Background(), cfgOf(svc("db")), machine.NewState(), Options{})
		require.NoError(t, err)
		assert.Empty(t, report.Tuples, outcome.String())
	}
}

func TestStartAll_PostStartCompositionFailure(t *testing.T) {
	boom := errors.New("status failed")
	composer := &fakeComposer{errs: map[string]error{"db": boom}}

	s := &Scheduler{Starter: &fakeStarter{}, Composer: composer}
	_, err := s.StartAll(context.Background(), cfgOf(svc("db"), svc("api", "db")), machine.NewState(), Options{})
	assert.NoError(t, err)

	starter := &fakeStarter{}
	s = &Scheduler{Starter: starter, Composer: composer}
	_, err = s.StartAll(context.Background(), cfgOf(svc("db"), svc("api", "db")), machine.NewState(), Options{FailFast: true})
	var fatal *services.FatalError
	require.ErrorAs(t, err, &fatal)
	assert.ErrorIs(t, err, boom)
	assert.False(t, starter.started("api"))
}

func TestStartAll_CycleGuard(t *testing.T) {
	s := &Scheduler{Starter: &fakeStarter{}}

	cfg := cfgOf(svc("ok"), svc("a", "b"), svc("b", "a"))
	report, err := s.StartAll(context.Background(), cfg, machine.NewState(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to schedule services a, b")
	assert.Equal(t, services.OutcomeStarted, report.Outcomes["ok"])
}
