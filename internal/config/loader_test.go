package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTOML = `
machine_name = "acme"
networks = ["acme", "acme"]
requirements = ["docker"]

[commands]
api = "uvicorn app:main"

[pre_commands]
migrate = "alembic upgrade head"

[[services]]
name = "redis"

[services.source]
image = "redis/redis-stack-server"
tag = "latest"

[[services.exposed_values]]
name = "redis_url"
value = "redis://localhost:${port.redis}"

[[services]]
name = "supabase"
depends_on = ["redis"]

[services.source]
install_command = "brew install supabase"
install_check_command = "supabase --version"
start_command = "supabase start"
health_check_command = "supabase status"

[[services.exposed_values]]
command = "supabase status -o env"
available_before_start = false
exclude = ["JWT_SECRET"]
rename = { API_URL = "SUPABASE_URL" }

[[features]]
name = "bitwarden"

[[registry_credentials]]
registry = "ghcr.io"
username = "GHCR_USER"
password = "GHCR_TOKEN"
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_TOML(t *testing.T) {
	cfg, err := Load(writeConfig(t, "war_machine.toml", sampleTOML))
	require.NoError(t, err)

	assert.Equal(t, "acme", cfg.MachineName)
	assert.Equal(t, []string{"acme"}, cfg.Networks, "networks are deduplicated")
	assert.Equal(t, []Requirement{RequirementDocker}, cfg.Requirements)
	assert.Equal(t, "uvicorn app:main", cfg.Commands["api"])
	assert.Equal(t, "alembic upgrade head", cfg.PreCommands["migrate"])
	require.Len(t, cfg.Services, 2)

	redis := cfg.Services[0]
	assert.Equal(t, SourceKindContainer, redis.Source.Kind())
	assert.Equal(t, DefaultRegistry, redis.Source.Container.Registry)
	assert.Equal(t, "docker.io/redis/redis-stack-server:latest", redis.Source.Container.Reference())
	require.Len(t, redis.ExposedValues, 1)
	assert.True(t, redis.ExposedValues[0].AvailableBeforeStart, "defaults to available before start")
	require.NotNil(t, redis.ExposedValues[0].Literal)
	assert.Equal(t, "redis_url", redis.ExposedValues[0].Literal.Name)

	supabase := cfg.Services[1]
	assert.Equal(t, SourceKindApp, supabase.Source.Kind())
	assert.Equal(t, []string{"redis"}, supabase.DependsOn)
	require.Len(t, supabase.ExposedValues, 1)
	ev := supabase.ExposedValues[0]
	assert.False(t, ev.AvailableBeforeStart)
	require.NotNil(t, ev.Command)
	assert.Equal(t, []string{"JWT_SECRET"}, ev.Command.Exclude)
	assert.Equal(t, "SUPABASE_URL", ev.Command.Rename["API_URL"])

	assert.Equal(t, []Feature{{Kind: FeatureBitwarden}}, cfg.Features)
	assert.Equal(t, []RegistryCredential{{Registry: "ghcr.io", Username: "GHCR_USER", Password: "GHCR_TOKEN"}}, cfg.RegistryCredentials)
}

func TestLoad_YAML(t *testing.T) {
	content := `
machine_name: acme
services:
  - name: qdrant
    source:
      image: qdrant/qdrant
      tag: v1.9.0
      registry: ghcr.io
      start_command: docker run -d -p ${port.qdrant}:6333 qdrant/qdrant
`
	cfg, err := Load(writeConfig(t, "war_machine.yaml", content))
	require.NoError(t, err)
	require.Len(t, cfg.Services, 1)
	src := cfg.Services[0].Source.Container
	require.NotNil(t, src)
	assert.Equal(t, "ghcr.io", src.Registry)
	assert.Equal(t, []string{"docker run -d -p ${port.qdrant}:6333 qdrant/qdrant"}, cfg.Services[0].Source.Templates())
	assert.NotNil(t, cfg.Commands)
	assert.NotNil(t, cfg.PreCommands)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "incomplete app source",
			content: `
machine_name = "acme"
[[services]]
name = "api"
[services.source]
start_command = "run"
`,
			wantErr: "health_check_command, install_check_command, install_command",
		},
		{
			name: "container without tag",
			content: `
machine_name = "acme"
[[services]]
name = "redis"
[services.source]
image = "redis"
`,
			wantErr: "requires a tag",
		},
		{
			name: "unknown feature",
			content: `
machine_name = "acme"
[[features]]
name = "vault"
`,
			wantErr: `unknown feature "vault"`,
		},
		{
			name: "unknown requirement",
			content: `
machine_name = "acme"
requirements = ["cargo"]
`,
			wantErr: `unknown requirement "cargo"`,
		},
		{
			name: "missing dependency",
			content: `
machine_name = "acme"
[[services]]
name = "redis"
depends_on = ["postgres"]
[services.source]
image = "redis"
tag = "7"
`,
			wantErr: "dependency postgres not found for service redis",
		},
		{
			name:    "malformed toml",
			content: `machine_name = `,
			wantErr: "error decoding config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "war_machine.toml", tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestDefaultPath(t *testing.T) {
	original := osGetwd
	defer func() { osGetwd = original }()
	osGetwd = func() (string, error) { return "/work/project", nil }

	path, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/work/project", DefaultConfigFile), path)
}
