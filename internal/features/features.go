package features

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/generative-ai-inc/war-machine/internal/command"
	"github.com/generative-ai-inc/war-machine/internal/config"
	"github.com/generative-ai-inc/war-machine/internal/env"
	"github.com/generative-ai-inc/war-machine/internal/secrets"
	"github.com/generative-ai-inc/war-machine/pkg/logging"
)

const (
	subsystem = "Features"

	// AccessTokenVar names the Bitwarden machine account token.
	AccessTokenVar = "BWS_ACCESS_TOKEN"
	pythonpathVar  = "PYTHONPATH"
)

var bitwardenLine = regexp.MustCompile(`^([A-Z0-9_]+)="(.+)"`)

// ErrMissingAccessToken is returned when the bitwarden feature is enabled
// without a token in the environment or the secret store.
var ErrMissingAccessToken = fmt.Errorf("secret %s is not set, please set it with `wm secret add %s` or in your environment", AccessTokenVar, AccessTokenVar)

// Provider applies features.
type Provider struct {
	Runner      command.Runner
	Environment *env.Environment
	// Secrets may be nil.
	Secrets secrets.Store
	// BWS is the bws executable. Defaults to "bws".
	BWS string
}

// Apply runs every feature in order and returns the values they contribute.
func (p *Provider) Apply(ctx context.Context, features []config.Feature) ([]env.Tuple, error) {
	var tuples []env.Tuple
	for _, f := range features {
		switch f.Kind {
		case config.FeaturePythonpath:
			t, err := p.pythonpath(f)
			if err != nil {
				// The project can still run; the user sees what to fix.
				logging.Error(subsystem, err, "Error setting PYTHONPATH through feature \"pythonpath\", check that pythonpath_value exists")
				continue
			}
			tuples = append(tuples, t...)
		case config.FeatureBitwarden:
			t, err := p.bitwarden(ctx)
			if err != nil {
				return nil, err
			}
			tuples = append(tuples, t...)
		default:
			return nil, fmt.Errorf("unknown feature %q", f.Kind)
		}
	}
	return tuples, nil
}

func (p *Provider) pythonpath(f config.Feature) ([]env.Tuple, error) {
	abs, err := filepath.Abs(f.PythonpathValue)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, err
	}
	if _, set := p.Environment.Get(pythonpathVar); set {
		return nil, nil
	}
	if err := appendLine(f.EnvFilePath, pythonpathVar+"="+abs); err != nil {
		return nil, err
	}
	logging.Info(subsystem, "Added %s=%s to %s", pythonpathVar, abs, f.EnvFilePath)
	return []env.Tuple{{Key: pythonpathVar, Value: abs, Source: env.SourceFeature}}, nil
}

func appendLine(path, line string) error {
	existing, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	if len(existing) > 0 && !strings.HasSuffix(string(existing), "\n") {
		line = "\n" + line
	}
	_, err = f.WriteString(line + "\n")
	return err
}

func (p *Provider) accessToken() (string, error) {
	if v, ok := p.Environment.Get(AccessTokenVar); ok && v != "" {
		return v, nil
	}
	if p.Secrets != nil {
		v, ok, err := p.Secrets.Get(AccessTokenVar)
		if err != nil {
			return "", err
		}
		if ok && v != "" {
			return v, nil
		}
	}
	return "", ErrMissingAccessToken
}

func (p *Provider) bitwarden(ctx context.Context) ([]env.Tuple, error) {
	token, err := p.accessToken()
	if err != nil {
		return nil, err
	}
	bws := p.BWS
	if bws == "" {
		bws = "bws"
	}

	out, err := p.Runner.Run(ctx, fmt.Sprintf("%s secret list --output env --access-token %s", bws, shellQuote(token)))
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve bitwarden environment variables: %w", err)
	}

	tuples := ParseBitwarden(out)
	logging.Info(subsystem, "Retrieved %d bitwarden environment variables", len(tuples))
	return tuples, nil
}

// ParseBitwarden extracts KEY="VALUE" lines printed by bws.
func ParseBitwarden(out string) []env.Tuple {
	var tuples []env.Tuple
	for _, line := range strings.Split(out, "\n") {
		m := bitwardenLine.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		tuples = append(tuples, env.Tuple{Key: m[1], Value: m[2], Source: env.SourceFeature})
	}
	return tuples
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
