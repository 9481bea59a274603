// Package env composes the environment handed to services and to the user
// command.
//
// Values come from four places: the war-machine secret store, enabled
// features, the exposed values of configured services, and the process
// environment the tool was started with. Keys that were already set when the
// run began are never overwritten and are reported as "local".
package env
