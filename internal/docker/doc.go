// Package docker talks to the local container engine through the Docker
// Engine API.
//
// Runtime is the narrow surface the service starter needs: registry login,
// networks, image pulls, and creating, listing and removing the containers
// war-machine names <machine_name>-<service>.
package docker
