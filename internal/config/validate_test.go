package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appService(name string, deps ...string) Service {
	return Service{
		Name:      name,
		DependsOn: deps,
		Source: Source{App: &AppSource{
			InstallCommand:      "true",
			InstallCheckCommand: "true",
			StartCommand:        "true",
			HealthCheckCommand:  "true",
		}},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		problems []string
	}{
		{
			name: "valid chain",
			cfg: Config{MachineName: "m", Services: []Service{
				appService("a"), appService("b", "a"), appService("c", "a", "b"),
			}},
		},
		{
			name:     "missing machine name",
			cfg:      Config{},
			problems: []string{"machine_name must be set"},
		},
		{
			name: "duplicate names",
			cfg: Config{MachineName: "m", Services: []Service{
				appService("a"), appService("a"),
			}},
			problems: []string{"service a is defined more than once"},
		},
		{
			name: "unknown dependency",
			cfg: Config{MachineName: "m", Services: []Service{
				appService("a", "ghost"),
			}},
			problems: []string{"dependency ghost not found for service a"},
		},
		{
			name: "self dependency",
			cfg: Config{MachineName: "m", Services: []Service{
				appService("a", "a"),
			}},
			problems: []string{"service a depends on itself"},
		},
		{
			name: "two node cycle",
			cfg: Config{MachineName: "m", Services: []Service{
				appService("a", "b"), appService("b", "a"),
			}},
			problems: []string{"circular dependency detected: a -> b -> a"},
		},
		{
			name: "three node cycle",
			cfg: Config{MachineName: "m", Services: []Service{
				appService("a", "b"), appService("b", "c"), appService("c", "a"),
			}},
			problems: []string{"circular dependency detected: a -> b -> c -> a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.cfg)
			if len(tt.problems) == 0 {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.problems, verr.Problems)
		})
	}
}

func TestValidationError_Message(t *testing.T) {
	single := &ValidationError{Problems: []string{"one"}}
	assert.Equal(t, "invalid configuration: one", single.Error())

	multi := &ValidationError{Problems: []string{"one", "two"}}
	assert.Equal(t, "invalid configuration:\n  - one\n  - two", multi.Error())
}

func TestCheckCommand(t *testing.T) {
	cfg := &Config{Commands: map[string]string{"api": "run api", "worker": "run worker"}}

	assert.NoError(t, CheckCommand(cfg, "api"))

	err := CheckCommand(cfg, "web")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command web not found in the config (available: api, worker)")
}
