package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the configuration file looked up in the working
// directory when no path is given.
const DefaultConfigFile = "war_machine.toml"

// For mocking in tests
var osGetwd = os.Getwd

// fileConfig mirrors the on-disk layout shared by the TOML and YAML formats.
type fileConfig struct {
	MachineName         string                   `toml:"machine_name" yaml:"machine_name"`
	MachineDescription  string                   `toml:"machine_description" yaml:"machine_description"`
	Networks            []string                 `toml:"networks" yaml:"networks"`
	Requirements        []string                 `toml:"requirements" yaml:"requirements"`
	Commands            map[string]string        `toml:"commands" yaml:"commands"`
	PreCommands         map[string]string        `toml:"pre_commands" yaml:"pre_commands"`
	Services            []fileService            `toml:"services" yaml:"services"`
	Features            []fileFeature            `toml:"features" yaml:"features"`
	RegistryCredentials []fileRegistryCredential `toml:"registry_credentials" yaml:"registry_credentials"`
}

type fileService struct {
	Name          string             `toml:"name" yaml:"name"`
	Source        fileSource         `toml:"source" yaml:"source"`
	DependsOn     []string           `toml:"depends_on" yaml:"depends_on"`
	ExposedValues []fileExposedValue `toml:"exposed_values" yaml:"exposed_values"`
}

type fileSource struct {
	Image               string `toml:"image" yaml:"image"`
	Tag                 string `toml:"tag" yaml:"tag"`
	Registry            string `toml:"registry" yaml:"registry"`
	StartCommand        string `toml:"start_command" yaml:"start_command"`
	StopCommand         string `toml:"stop_command" yaml:"stop_command"`
	InstallCommand      string `toml:"install_command" yaml:"install_command"`
	InstallCheckCommand string `toml:"install_check_command" yaml:"install_check_command"`
	HealthCheckCommand  string `toml:"health_check_command" yaml:"health_check_command"`
	CleanCommand        string `toml:"clean_command" yaml:"clean_command"`
}

type fileExposedValue struct {
	Name                 string            `toml:"name" yaml:"name"`
	Value                string            `toml:"value" yaml:"value"`
	Command              string            `toml:"command" yaml:"command"`
	Description          string            `toml:"description" yaml:"description"`
	AvailableBeforeStart *bool             `toml:"available_before_start" yaml:"available_before_start"`
	Exclude              []string          `toml:"exclude" yaml:"exclude"`
	Rename               map[string]string `toml:"rename" yaml:"rename"`
}

type fileFeature struct {
	Name            string `toml:"name" yaml:"name"`
	EnvFilePath     string `toml:"env_file_path" yaml:"env_file_path"`
	PythonpathValue string `toml:"pythonpath_value" yaml:"pythonpath_value"`
}

type fileRegistryCredential struct {
	Registry string `toml:"registry" yaml:"registry"`
	Username string `toml:"username" yaml:"username"`
	Password string `toml:"password" yaml:"password"`
}

// DefaultPath returns the configuration file path in the working directory.
func DefaultPath() (string, error) {
	wd, err := osGetwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, DefaultConfigFile), nil
}

// Load reads, decodes and validates the configuration at path. The format is
// picked from the file extension: .yaml and .yml use YAML, anything else TOML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config %s: %w", path, err)
	}

	var raw fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		err = toml.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("error decoding config %s: %w", path, err)
	}

	cfg, err := raw.normalize()
	if err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// normalize converts the on-disk shape into the typed model and applies
// defaults.
func (f fileConfig) normalize() (*Config, error) {
	cfg := &Config{
		MachineName:        strings.TrimSpace(f.MachineName),
		MachineDescription: f.MachineDescription,
		Networks:           dedupe(f.Networks),
		Commands:           f.Commands,
		PreCommands:        f.PreCommands,
	}
	if cfg.Commands == nil {
		cfg.Commands = map[string]string{}
	}
	if cfg.PreCommands == nil {
		cfg.PreCommands = map[string]string{}
	}

	for _, r := range f.Requirements {
		req := Requirement(strings.ToLower(strings.TrimSpace(r)))
		switch req {
		case RequirementBrew, RequirementDocker, RequirementPython, RequirementPipx, RequirementPoetry:
			cfg.Requirements = append(cfg.Requirements, req)
		default:
			return nil, fmt.Errorf("unknown requirement %q", r)
		}
	}

	for _, fs := range f.Services {
		svc, err := fs.normalize()
		if err != nil {
			return nil, err
		}
		cfg.Services = append(cfg.Services, svc)
	}

	for _, ff := range f.Features {
		switch FeatureKind(strings.ToLower(ff.Name)) {
		case FeaturePythonpath:
			if ff.EnvFilePath == "" || ff.PythonpathValue == "" {
				return nil, fmt.Errorf("feature pythonpath requires env_file_path and pythonpath_value")
			}
			cfg.Features = append(cfg.Features, Feature{
				Kind:            FeaturePythonpath,
				EnvFilePath:     ff.EnvFilePath,
				PythonpathValue: ff.PythonpathValue,
			})
		case FeatureBitwarden:
			cfg.Features = append(cfg.Features, Feature{Kind: FeatureBitwarden})
		default:
			return nil, fmt.Errorf("unknown feature %q", ff.Name)
		}
	}

	for _, rc := range f.RegistryCredentials {
		cfg.RegistryCredentials = append(cfg.RegistryCredentials, RegistryCredential(rc))
	}

	return cfg, nil
}

func (fs fileService) normalize() (Service, error) {
	svc := Service{
		Name:      strings.TrimSpace(fs.Name),
		DependsOn: dedupe(fs.DependsOn),
	}

	src := fs.Source
	if src.Image != "" {
		if src.Tag == "" {
			return Service{}, fmt.Errorf("service %s: container source requires a tag", svc.Name)
		}
		registry := src.Registry
		if registry == "" {
			registry = DefaultRegistry
		}
		svc.Source.Container = &ContainerSource{
			Image:        src.Image,
			Tag:          src.Tag,
			Registry:     registry,
			StartCommand: src.StartCommand,
			StopCommand:  src.StopCommand,
		}
	} else {
		var missing []string
		for field, v := range map[string]string{
			"install_command":       src.InstallCommand,
			"install_check_command": src.InstallCheckCommand,
			"start_command":         src.StartCommand,
			"health_check_command":  src.HealthCheckCommand,
		} {
			if v == "" {
				missing = append(missing, field)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return Service{}, fmt.Errorf("service %s: source has no image and app source is missing %s",
				svc.Name, strings.Join(missing, ", "))
		}
		svc.Source.App = &AppSource{
			InstallCommand:      src.InstallCommand,
			InstallCheckCommand: src.InstallCheckCommand,
			StartCommand:        src.StartCommand,
			HealthCheckCommand:  src.HealthCheckCommand,
			StopCommand:         src.StopCommand,
			CleanCommand:        src.CleanCommand,
		}
	}

	for i, fv := range fs.ExposedValues {
		ev := ExposedValue{
			Description:          fv.Description,
			AvailableBeforeStart: true,
		}
		if fv.AvailableBeforeStart != nil {
			ev.AvailableBeforeStart = *fv.AvailableBeforeStart
		}
		switch {
		case fv.Command != "":
			rename := fv.Rename
			if rename == nil {
				rename = map[string]string{}
			}
			ev.Command = &CommandValue{Command: fv.Command, Exclude: fv.Exclude, Rename: rename}
		case fv.Name != "":
			ev.Literal = &LiteralValue{Name: fv.Name, Value: fv.Value}
		default:
			return Service{}, fmt.Errorf("service %s: exposed value #%d needs either a command or a name", svc.Name, i+1)
		}
		svc.ExposedValues = append(svc.ExposedValues, ev)
	}

	return svc, nil
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
