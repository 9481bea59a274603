package docker

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"

	"github.com/generative-ai-inc/war-machine/pkg/logging"
)

const subsystem = "Docker"

// RunOptions describes a detached container created by Run.
type RunOptions struct {
	Name     string
	Image    string
	Networks []string
}

// Runtime is the container engine surface used by war-machine.
type Runtime interface {
	Login(ctx context.Context, server, username, password string) error
	Logout(ctx context.Context, server string) error
	EnsureNetwork(ctx context.Context, name string) error
	// IsRunning reports whether a running container is named exactly name.
	IsRunning(ctx context.Context, name string) (bool, error)
	Pull(ctx context.Context, ref string) error
	Run(ctx context.Context, opts RunOptions) error
	// RemoveMatching force-removes every container named exactly name and
	// returns how many were removed.
	RemoveMatching(ctx context.Context, name string) (int, error)
}

// Client implements Runtime with the Docker SDK.
type Client struct {
	cli *client.Client
	// PullOutput receives the rendered pull progress. Defaults to io.Discard.
	PullOutput io.Writer

	mu    sync.Mutex
	auths map[string]string
}

// NewClient connects to the engine configured in the environment
// (DOCKER_HOST and friends).
func NewClient() (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Client{cli: cli, PullOutput: io.Discard, auths: map[string]string{}}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.cli.Close()
}

// Login verifies the credentials against server and keeps them for
// subsequent pulls from that registry.
func (c *Client) Login(ctx context.Context, server, username, password string) error {
	auth := registry.AuthConfig{
		Username:      username,
		Password:      password,
		ServerAddress: server,
	}
	if _, err := c.cli.RegistryLogin(ctx, auth); err != nil {
		return fmt.Errorf("failed to login to %s: %w", server, err)
	}
	encoded, err := registry.EncodeAuthConfig(auth)
	if err != nil {
		return fmt.Errorf("failed to encode credentials for %s: %w", server, err)
	}

	c.mu.Lock()
	c.auths[server] = encoded
	c.mu.Unlock()
	logging.Info(subsystem, "Logged in to %s", server)
	return nil
}

// Logout forgets the credentials stored for server. Pulls through the SDK
// carry their credentials with each request and the engine keeps no login
// session, so dropping the stored auth is all logging out means here.
func (c *Client) Logout(_ context.Context, server string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.auths[server]; !ok {
		return fmt.Errorf("not logged in to %s", server)
	}
	delete(c.auths, server)
	logging.Debug(subsystem, "Logged out from %s", server)
	return nil
}

func (c *Client) authFor(ref string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for server, auth := range c.auths {
		if strings.HasPrefix(ref, server+"/") {
			return auth
		}
	}
	return ""
}

// EnsureNetwork creates the network unless it already exists.
func (c *Client) EnsureNetwork(ctx context.Context, name string) error {
	_, err := c.cli.NetworkInspect(ctx, name, network.InspectOptions{})
	if err == nil {
		return nil
	}
	if !cerrdefs.IsNotFound(err) {
		return fmt.Errorf("inspect network %q: %w", name, err)
	}

	if _, err := c.cli.NetworkCreate(ctx, name, network.CreateOptions{
		Labels: map[string]string{"war-machine.managed": "true"},
	}); err != nil {
		// Lost a race with another creator.
		if _, ie := c.cli.NetworkInspect(ctx, name, network.InspectOptions{}); ie == nil {
			return nil
		}
		return fmt.Errorf("create network %q: %w", name, err)
	}
	logging.Info(subsystem, "Created network %s", name)
	return nil
}

func (c *Client) listNamed(ctx context.Context, name string, all bool) ([]container.Summary, error) {
	containers, err := c.cli.ContainerList(ctx, container.ListOptions{
		All:     all,
		Filters: filters.NewArgs(filters.Arg("name", "^/?"+regexp.QuoteMeta(name)+"$")),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	matched := containers[:0]
	for _, ctr := range containers {
		for _, n := range ctr.Names {
			if strings.TrimPrefix(n, "/") == name {
				matched = append(matched, ctr)
				break
			}
		}
	}
	return matched, nil
}

// IsRunning implements Runtime.
func (c *Client) IsRunning(ctx context.Context, name string) (bool, error) {
	containers, err := c.listNamed(ctx, name, false)
	if err != nil {
		return false, err
	}
	return len(containers) > 0, nil
}

// Pull downloads ref, using stored credentials for its registry. Errors
// reported inside the progress stream are returned.
func (c *Client) Pull(ctx context.Context, ref string) error {
	logging.Info(subsystem, "Pulling %s", ref)

	reader, err := c.cli.ImagePull(ctx, ref, image.PullOptions{RegistryAuth: c.authFor(ref)})
	if err != nil {
		return fmt.Errorf("failed to pull %s: %w", ref, err)
	}
	defer reader.Close()

	out := c.PullOutput
	if out == nil {
		out = io.Discard
	}
	if err := jsonmessage.DisplayJSONMessagesStream(reader, out, 0, false, nil); err != nil {
		return fmt.Errorf("failed to pull %s: %w", ref, err)
	}
	return nil
}

// Run creates and starts a detached container attached to opts.Networks.
func (c *Client) Run(ctx context.Context, opts RunOptions) error {
	var netCfg *network.NetworkingConfig
	if len(opts.Networks) > 0 {
		netCfg = &network.NetworkingConfig{EndpointsConfig: map[string]*network.EndpointSettings{}}
		for _, n := range opts.Networks {
			netCfg.EndpointsConfig[n] = &network.EndpointSettings{}
		}
	}

	resp, err := c.cli.ContainerCreate(ctx, &container.Config{Image: opts.Image}, &container.HostConfig{}, netCfg, nil, opts.Name)
	if err != nil {
		return fmt.Errorf("failed to create container %s: %w", opts.Name, err)
	}
	for _, w := range resp.Warnings {
		logging.Warn(subsystem, "%s: %s", opts.Name, w)
	}

	if err := c.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start container %s: %w", opts.Name, err)
	}
	logging.Debug(subsystem, "Started container %s (%s)", opts.Name, shortID(resp.ID))
	return nil
}

// RemoveMatching implements Runtime.
func (c *Client) RemoveMatching(ctx context.Context, name string) (int, error) {
	containers, err := c.listNamed(ctx, name, true)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, ctr := range containers {
		if err := c.cli.ContainerRemove(ctx, ctr.ID, container.RemoveOptions{Force: true}); err != nil {
			if cerrdefs.IsNotFound(err) {
				continue
			}
			return removed, fmt.Errorf("remove container %s: %w", shortID(ctr.ID), err)
		}
		removed++
	}
	return removed, nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
