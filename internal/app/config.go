package app

// Config holds the settings of one invocation.
type Config struct {
	// ConfigPath is the war-machine configuration file.
	ConfigPath string
	// ProjectDir holds .war_machine/. Defaults to the working directory.
	ProjectDir string

	Debug bool
}

// NewConfig creates a new application configuration.
func NewConfig(configPath string, debug bool) *Config {
	return &Config{
		ConfigPath: configPath,
		Debug:      debug,
	}
}

// PrepareOptions controls Prepare.
type PrepareOptions struct {
	NoServices bool
	NoFeatures bool
	Clean      bool
	FailFast   bool
	// BlockOnFailedDependency skips dependents of services that failed.
	BlockOnFailedDependency bool
}
