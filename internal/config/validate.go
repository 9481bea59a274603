package config

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError aggregates every problem found in a configuration.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid configuration: " + e.Problems[0]
	}
	return "invalid configuration:\n  - " + strings.Join(e.Problems, "\n  - ")
}

// Validate checks what the scheduler relies on: a machine name,
// unique service names, dependencies that exist, and an acyclic dependency
// graph.
func Validate(cfg *Config) error {
	var problems []string

	if cfg.MachineName == "" {
		problems = append(problems, "machine_name must be set")
	}

	names := make(map[string]struct{}, len(cfg.Services))
	for _, svc := range cfg.Services {
		if svc.Name == "" {
			problems = append(problems, "every service needs a name")
			continue
		}
		if _, dup := names[svc.Name]; dup {
			problems = append(problems, fmt.Sprintf("service %s is defined more than once", svc.Name))
		}
		names[svc.Name] = struct{}{}
	}

	problems = append(problems, checkDependenciesExist(cfg.Services, names)...)

	if err := checkCircularDependencies(cfg.Services); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// CheckCommand reports whether name is one of the configured commands.
func CheckCommand(cfg *Config, name string) error {
	if _, ok := cfg.Commands[name]; ok {
		return nil
	}
	known := make([]string, 0, len(cfg.Commands))
	for k := range cfg.Commands {
		known = append(known, k)
	}
	sort.Strings(known)
	return &ValidationError{Problems: []string{
		fmt.Sprintf("command %s not found in the config (available: %s)", name, strings.Join(known, ", ")),
	}}
}

func checkDependenciesExist(services []Service, names map[string]struct{}) []string {
	var problems []string
	for _, svc := range services {
		for _, dep := range svc.DependsOn {
			if dep == svc.Name {
				problems = append(problems, fmt.Sprintf("service %s depends on itself", svc.Name))
				continue
			}
			if _, ok := names[dep]; !ok {
				problems = append(problems, fmt.Sprintf("dependency %s not found for service %s", dep, svc.Name))
			}
		}
	}
	return problems
}

// checkCircularDependencies walks the graph depth first and reports the
// first cycle found, including its path.
func checkCircularDependencies(services []Service) error {
	const (
		unvisited = 0
		visiting  = 1
		visited   = 2
	)

	byName := make(map[string]Service, len(services))
	for _, svc := range services {
		byName[svc.Name] = svc
	}

	state := make(map[string]uint8, len(services))
	var stack []string

	var dfs func(string) error
	dfs = func(node string) error {
		switch state[node] {
		case visiting:
			return fmt.Errorf("circular dependency detected: %s", cyclePath(stack, node))
		case visited:
			return nil
		}

		state[node] = visiting
		stack = append(stack, node)

		for _, dep := range byName[node].DependsOn {
			// Existence and self references are reported separately.
			if _, ok := byName[dep]; !ok || dep == node {
				continue
			}
			if err := dfs(dep); err != nil {
				return err
			}
		}

		stack = stack[:len(stack)-1]
		state[node] = visited
		return nil
	}

	for _, svc := range services {
		if state[svc.Name] == unvisited {
			if err := dfs(svc.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

func cyclePath(stack []string, start string) string {
	for i, name := range stack {
		if name == start {
			path := append(append([]string{}, stack[i:]...), start)
			return strings.Join(path, " -> ")
		}
	}
	return start
}
