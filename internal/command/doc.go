// Package command runs shell commands on behalf of war-machine.
//
// Every command is executed through `sh -c` with the environment supplied by
// the caller, never the ambient process environment. Run captures output and
// is used for checks and exposed values. Spawn streams output for service
// steps; it detaches the child into its own session so that cancellation can
// take down anything the command started. Attach is for commands the user
// interacts with: the child stays in the terminal's process group and reads
// the runner's standard input.
package command
