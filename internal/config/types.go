package config

// DefaultRegistry is used for container sources that do not name a registry.
const DefaultRegistry = "docker.io"

// Requirement names a host tool that must be installed before services start.
type Requirement string

const (
	RequirementBrew   Requirement = "brew"
	RequirementDocker Requirement = "docker"
	RequirementPython Requirement = "python"
	RequirementPipx   Requirement = "pipx"
	RequirementPoetry Requirement = "poetry"
)

// Config is the validated orchestration plan. It is loaded once per
// invocation and never mutated afterwards.
type Config struct {
	MachineName         string
	MachineDescription  string
	Networks            []string
	Requirements        []Requirement
	Commands            map[string]string
	PreCommands         map[string]string
	Services            []Service
	Features            []Feature
	RegistryCredentials []RegistryCredential
}

// Service returns the service with the given name.
func (c *Config) Service(name string) (Service, bool) {
	for _, svc := range c.Services {
		if svc.Name == name {
			return svc, true
		}
	}
	return Service{}, false
}

// Service is one named unit the orchestrator brings up.
type Service struct {
	Name          string
	Source        Source
	DependsOn     []string
	ExposedValues []ExposedValue
}

// SourceKind distinguishes container-backed from app-backed services.
type SourceKind string

const (
	SourceKindContainer SourceKind = "container"
	SourceKindApp       SourceKind = "app"
)

// Source is a closed variant: exactly one of Container or App is set.
type Source struct {
	Container *ContainerSource
	App       *AppSource
}

// Kind reports which variant is populated.
func (s Source) Kind() SourceKind {
	if s.Container != nil {
		return SourceKindContainer
	}
	return SourceKindApp
}

// Templates returns every command template of the source, optional ones
// included only when set.
func (s Source) Templates() []string {
	var out []string
	add := func(v string) {
		if v != "" {
			out = append(out, v)
		}
	}
	switch {
	case s.Container != nil:
		add(s.Container.StartCommand)
		add(s.Container.StopCommand)
	case s.App != nil:
		add(s.App.InstallCommand)
		add(s.App.InstallCheckCommand)
		add(s.App.StartCommand)
		add(s.App.HealthCheckCommand)
		add(s.App.StopCommand)
		add(s.App.CleanCommand)
	}
	return out
}

// ContainerSource runs a service from a registry image.
type ContainerSource struct {
	Image        string
	Tag          string
	Registry     string
	StartCommand string
	StopCommand  string
}

// Reference is the fully qualified image reference that gets pulled.
func (c ContainerSource) Reference() string {
	return c.Registry + "/" + c.Image + ":" + c.Tag
}

// AppSource runs a service through user supplied shell commands.
type AppSource struct {
	InstallCommand      string
	InstallCheckCommand string
	StartCommand        string
	HealthCheckCommand  string
	StopCommand         string
	CleanCommand        string
}

// ExposedValue is an environment value a service contributes. Exactly one of
// Literal or Command is set.
type ExposedValue struct {
	Description          string
	AvailableBeforeStart bool
	Literal              *LiteralValue
	Command              *CommandValue
}

// LiteralValue exposes Name=Value after placeholder substitution.
type LiteralValue struct {
	Name  string
	Value string
}

// CommandValue exposes every KEY=VALUE line printed by Command.
type CommandValue struct {
	Command string
	Exclude []string
	Rename  map[string]string
}

// FeatureKind names an optional environment feature.
type FeatureKind string

const (
	FeaturePythonpath FeatureKind = "pythonpath"
	FeatureBitwarden  FeatureKind = "bitwarden"
)

// Feature is an optional environment provider.
type Feature struct {
	Kind            FeatureKind
	EnvFilePath     string
	PythonpathValue string
}

// RegistryCredential names the environment variables that hold the
// username and password for a registry.
type RegistryCredential struct {
	Registry string
	Username string
	Password string
}
