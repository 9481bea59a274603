// Package app wires the war-machine components together for one invocation.
//
// NewApplication loads the configuration and builds the shared environment,
// the command runner and, when the configuration needs it, the container
// engine client. Prepare allocates ports, composes the environment and
// starts the services; Run then executes a named user command inside that
// environment.
package app
