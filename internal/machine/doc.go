// Package machine owns the per-project machine state kept in .war_machine/.
//
// The state records the host port assigned to every ${port.<name>}
// placeholder used by the configured services, so that the same names map
// to the same ports across runs. Store reads and writes the state file and
// Allocator keeps the port map in line with the current configuration.
package machine
