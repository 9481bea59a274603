package env

import (
	"context"
	"fmt"
	"strings"

	"github.com/generative-ai-inc/war-machine/internal/command"
	"github.com/generative-ai-inc/war-machine/internal/config"
	"github.com/generative-ai-inc/war-machine/internal/template"
)

// Phase selects which exposed values are composed.
type Phase int

const (
	// BeforeStart selects values available before any service starts.
	BeforeStart Phase = iota
	// AfterStart selects values that need their service running.
	AfterStart
)

func (p Phase) String() string {
	if p == BeforeStart {
		return "before start"
	}
	return "after start"
}

// Composer turns the exposed values of a service into tuples.
type Composer struct {
	Runner      command.Runner
	MachineName string
}

// ExposedVariables composes the values of svc that belong to phase. Literal
// values are resolved against ports and the service placeholders; command
// values run the resolved command and parse its output. A failing command
// aborts composition for the service.
func (c *Composer) ExposedVariables(ctx context.Context, ports map[string]int, svc config.Service, phase Phase) ([]Tuple, error) {
	resolver := template.NewResolver(c.MachineName, svc, ports)
	wantBefore := phase == BeforeStart

	var tuples []Tuple
	for _, ev := range svc.ExposedValues {
		if ev.AvailableBeforeStart != wantBefore {
			continue
		}
		switch {
		case ev.Literal != nil:
			tuples = append(tuples, Tuple{
				Key:    strings.ToUpper(strings.TrimSpace(ev.Literal.Name)),
				Value:  resolver.Resolve(ev.Literal.Value),
				Source: SourceWarMachine,
			})
		case ev.Command != nil:
			cmdLine := resolver.Resolve(ev.Command.Command)
			out, err := c.Runner.Run(ctx, cmdLine)
			if err != nil {
				return nil, fmt.Errorf("exposed values command for %s failed: %w", svc.Name, err)
			}
			tuples = append(tuples, ParseCommandOutput(out, ev.Command.Exclude, ev.Command.Rename)...)
		}
	}
	return tuples, nil
}
