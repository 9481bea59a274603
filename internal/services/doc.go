// Package services brings a single configured service up.
//
// A service is either a container, managed through the container engine, or
// an app, managed entirely through the shell commands in its source. Start
// runs one service through clean, health check, install, pull and start in
// that order and reports what happened as an Outcome.
//
// Failures are classified by the fail-fast policy: with fail-fast enabled a
// failing step is returned as a *FatalError, otherwise it is logged and
// reported through the outcome. Image pull failures are always fatal.
package services
