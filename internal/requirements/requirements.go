// Package requirements verifies that the host tools a configuration lists
// are installed. It never installs anything.
package requirements

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/generative-ai-inc/war-machine/internal/command"
	"github.com/generative-ai-inc/war-machine/internal/config"
	"github.com/generative-ai-inc/war-machine/pkg/logging"
)

const subsystem = "Requirements"

// binaries maps a requirement to the executables that satisfy it, in order
// of preference.
var binaries = map[config.Requirement][]string{
	config.RequirementBrew:   {"brew"},
	config.RequirementDocker: {"docker"},
	config.RequirementPython: {"python3", "python"},
	config.RequirementPipx:   {"pipx"},
	config.RequirementPoetry: {"poetry"},
}

// Result describes one satisfied requirement.
type Result struct {
	Requirement config.Requirement
	Path        string
	Version     string
}

// MissingError lists requirements that could not be found.
type MissingError struct {
	Missing []config.Requirement
}

func (e *MissingError) Error() string {
	names := make([]string, len(e.Missing))
	for i, r := range e.Missing {
		names[i] = string(r)
	}
	return fmt.Sprintf("missing requirements: %s (install them and try again)", strings.Join(names, ", "))
}

// Checker looks requirements up on PATH.
type Checker struct {
	Runner   command.Runner
	LookPath func(file string) (string, error)
}

// NewChecker returns a checker using exec.LookPath.
func NewChecker(runner command.Runner) *Checker {
	return &Checker{Runner: runner, LookPath: exec.LookPath}
}

// Check verifies every requirement and returns a *MissingError naming all
// that are absent.
func (c *Checker) Check(ctx context.Context, reqs []config.Requirement) ([]Result, error) {
	var (
		results []Result
		missing []config.Requirement
	)
	for _, req := range reqs {
		res, ok := c.find(ctx, req)
		if !ok {
			logging.Error(subsystem, nil, "🛑 %s is not installed", req)
			missing = append(missing, req)
			continue
		}
		logging.Info(subsystem, "✅ %s is installed %s", req, res.Version)
		results = append(results, res)
	}
	if len(missing) > 0 {
		return results, &MissingError{Missing: missing}
	}
	return results, nil
}

func (c *Checker) find(ctx context.Context, req config.Requirement) (Result, bool) {
	for _, bin := range binaries[req] {
		path, err := c.LookPath(bin)
		if err != nil {
			continue
		}
		res := Result{Requirement: req, Path: path}
		if c.Runner != nil {
			if out, err := c.Runner.Run(ctx, bin+" --version"); err == nil {
				res.Version = firstLine(out)
			}
		}
		return res, true
	}
	return Result{}, false
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
