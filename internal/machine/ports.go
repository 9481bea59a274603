package machine

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/generative-ai-inc/war-machine/internal/config"
	"github.com/generative-ai-inc/war-machine/internal/template"
	"github.com/generative-ai-inc/war-machine/pkg/logging"
)

const (
	// FirstPort is the lowest port handed out by the allocator.
	FirstPort = 49000
	lastPort  = 65535

	probeTimeout = 500 * time.Millisecond
)

// Prober reports whether something is listening on a local port.
type Prober interface {
	InUse(port int) (bool, error)
}

// TCPProber probes by connecting to 127.0.0.1.
type TCPProber struct {
	Timeout time.Duration
}

// InUse implements Prober. A refused connection means the port is free; any
// other dial failure is returned as an error.
func (p TCPProber) InUse(port int) (bool, error) {
	timeout := p.Timeout
	if timeout == 0 {
		timeout = probeTimeout
	}
	conn, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), timeout)
	if err == nil {
		conn.Close()
		return true, nil
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return false, nil
	}
	return false, fmt.Errorf("failed to probe port %d: %w", port, err)
}

// Allocator assigns host ports to the ${port.<name>} placeholders of a
// configuration.
type Allocator struct {
	Prober Prober
	// Start overrides FirstPort when non-zero.
	Start int
}

// NewAllocator returns an allocator probing with TCPProber.
func NewAllocator() *Allocator {
	return &Allocator{Prober: TCPProber{}}
}

// PortNames returns the sorted distinct port names referenced by any
// command template of any service.
func PortNames(cfg *config.Config) []string {
	var texts []string
	for _, svc := range cfg.Services {
		texts = append(texts, svc.Source.Templates()...)
	}
	return template.PortNames(texts...)
}

// Allocate returns a copy of state whose port map holds exactly the names
// referenced by cfg. Existing assignments are kept; new names receive the
// next free port at or above FirstPort.
func (a *Allocator) Allocate(cfg *config.Config, state State) (State, error) {
	next := state.Clone()
	needed := PortNames(cfg)

	wanted := make(map[string]struct{}, len(needed))
	for _, name := range needed {
		wanted[name] = struct{}{}
	}
	for name := range next.Ports {
		if _, ok := wanted[name]; !ok {
			logging.Debug(subsystem, "Releasing port %d held by %s", next.Ports[name], name)
			delete(next.Ports, name)
		}
	}

	taken := make(map[int]struct{}, len(next.Ports))
	for _, port := range next.Ports {
		taken[port] = struct{}{}
	}

	candidate := a.Start
	if candidate == 0 {
		candidate = FirstPort
	}
	for _, name := range needed {
		if _, ok := next.Ports[name]; ok {
			continue
		}
		port, err := a.nextFree(candidate, taken)
		if err != nil {
			return State{}, fmt.Errorf("failed to allocate port for %s: %w", name, err)
		}
		next.Ports[name] = port
		taken[port] = struct{}{}
		candidate = port + 1
		logging.Debug(subsystem, "Assigned port %d to %s", port, name)
	}
	return next, nil
}

func (a *Allocator) nextFree(from int, taken map[int]struct{}) (int, error) {
	for port := from; port <= lastPort; port++ {
		if _, ok := taken[port]; ok {
			continue
		}
		inUse, err := a.Prober.InUse(port)
		if err != nil {
			return 0, err
		}
		if !inUse {
			return port, nil
		}
	}
	return 0, fmt.Errorf("no free port between %d and %d", from, lastPort)
}

// RenderPortMap draws the port map as a table sorted by name.
func RenderPortMap(ports map[string]int) string {
	names := make([]string, 0, len(ports))
	for name := range ports {
		names = append(names, name)
	}
	sort.Strings(names)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("Name", "Port").
		StyleFunc(func(row, col int) lipgloss.Style {
			style := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return style.Bold(true)
			}
			return style
		})
	for _, name := range names {
		t.Row(name, strconv.Itoa(ports[name]))
	}
	return t.String()
}
