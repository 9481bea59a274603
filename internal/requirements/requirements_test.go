package requirements

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/generative-ai-inc/war-machine/internal/config"
)

type versionRunner map[string]string

func (v versionRunner) Run(_ context.Context, cmd string) (string, error) {
	out, ok := v[cmd]
	if !ok {
		return "", errors.New("unknown command")
	}
	return out, nil
}

func (v versionRunner) Spawn(context.Context, string) error { return nil }

func lookIn(found ...string) func(string) (string, error) {
	return func(file string) (string, error) {
		for _, f := range found {
			if f == file {
				return "/usr/bin/" + f, nil
			}
		}
		return "", errors.New("not found")
	}
}

func TestChecker_Check(t *testing.T) {
	c := &Checker{
		Runner:   versionRunner{"docker --version": "Docker version 27.3.1, build ce12230\n", "python --version": "Python 3.12.1"},
		LookPath: lookIn("docker", "python"),
	}

	results, err := c.Check(context.Background(), []config.Requirement{config.RequirementDocker, config.RequirementPython})
	require.NoError(t, err)
	assert.Equal(t, []Result{
		{Requirement: config.RequirementDocker, Path: "/usr/bin/docker", Version: "Docker version 27.3.1, build ce12230"},
		{Requirement: config.RequirementPython, Path: "/usr/bin/python", Version: "Python 3.12.1"},
	}, results)
}

func TestChecker_Missing(t *testing.T) {
	c := &Checker{LookPath: lookIn("brew")}

	results, err := c.Check(context.Background(), []config.Requirement{
		config.RequirementBrew, config.RequirementPoetry, config.RequirementPipx,
	})
	var missing *MissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []config.Requirement{config.RequirementPoetry, config.RequirementPipx}, missing.Missing)
	assert.Contains(t, err.Error(), "poetry, pipx")
	require.Len(t, results, 1)
	assert.Empty(t, results[0].Version)
}
