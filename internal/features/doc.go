// Package features implements the optional integrations a configuration can
// enable.
//
//   - pythonpath: makes sure PYTHONPATH points at a project directory, and
//     records it in the project's env file the first time.
//   - bitwarden: pulls secrets from Bitwarden Secrets Manager through the
//     bws CLI, authenticated with BWS_ACCESS_TOKEN.
//
// Feature values are returned as tuples tagged "feature" and merged into the
// environment like any other composed value.
package features
