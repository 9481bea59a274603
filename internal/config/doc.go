// Package config provides the orchestration plan for war-machine.
//
// The plan is read from war_machine.toml in the working directory (or any
// file passed with --config; .yaml and .yml files are decoded as YAML). The
// decoded file is normalized into an immutable Config value and validated
// before anything is started.
//
// # Configuration Structure
//
//	machine_name = "acme"
//	networks = ["acme"]
//	requirements = ["docker"]
//
//	[commands]
//	api = "poetry run uvicorn app:main --port ${API_PORT}"
//
//	[[services]]
//	name = "redis"
//
//	[services.source]
//	image = "redis/redis-stack-server"
//	tag = "latest"
//	start_command = "docker run -d --name ${machine_name}-${service.name} -p ${port.redis}:6379 ${service.source.registry}/${service.source.image}:${service.source.tag}"
//
//	[[services.exposed_values]]
//	name = "redis_url"
//	value = "redis://localhost:${port.redis}"
//
//	[[services]]
//	name = "supabase"
//	depends_on = ["redis"]
//
//	[services.source]
//	install_command = "brew install supabase/tap/supabase"
//	install_check_command = "supabase --version"
//	start_command = "supabase start"
//	health_check_command = "supabase status"
//	clean_command = "supabase stop --no-backup"
//
//	[[services.exposed_values]]
//	command = "supabase status -o env"
//	available_before_start = false
//	exclude = ["JWT_SECRET"]
//	rename = { API_URL = "SUPABASE_URL" }
//
// # Sources
//
// A source with an image is a container source (registry defaults to
// docker.io). Any other source is an app source and must define
// install_command, install_check_command, start_command and
// health_check_command.
//
// # Exposed Values
//
// An exposed value with a command is parsed from the command's KEY=VALUE
// output; otherwise name and value form a literal. Values default to being
// available before the service starts.
//
// # Validation
//
// Validate rejects configurations with duplicate service names, unknown
// dependencies, or dependency cycles of any length.
package config
