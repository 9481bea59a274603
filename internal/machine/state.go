package machine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	"github.com/generative-ai-inc/war-machine/pkg/logging"
)

const (
	// DirName is the project-local directory holding machine state.
	DirName = ".war_machine"
	// StateFile is the name of the state file inside DirName.
	StateFile = "state.json"

	subsystem = "Machine"
)

// State is the persisted machine state.
type State struct {
	Ports      map[string]int    `json:"ports"`
	Containers map[string]string `json:"containers"`
}

// NewState returns an empty state with initialized maps.
func NewState() State {
	return State{Ports: map[string]int{}, Containers: map[string]string{}}
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	c := NewState()
	for k, v := range s.Ports {
		c.Ports[k] = v
	}
	for k, v := range s.Containers {
		c.Containers[k] = v
	}
	return c
}

// Store reads and writes the state file of one project.
type Store struct {
	Dir string
}

// NewStore returns a store rooted at <projectDir>/.war_machine.
func NewStore(projectDir string) *Store {
	return &Store{Dir: filepath.Join(projectDir, DirName)}
}

// Path returns the location of the state file.
func (s *Store) Path() string {
	return filepath.Join(s.Dir, StateFile)
}

// EnsureDir creates the state directory and a .gitignore that excludes its
// contents from version control.
func (s *Store) EnsureDir() error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", s.Dir, err)
	}
	gitignore := filepath.Join(s.Dir, ".gitignore")
	if _, err := os.Stat(gitignore); err == nil {
		return nil
	}
	if err := os.WriteFile(gitignore, []byte("*\n"), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", gitignore, err)
	}
	return nil
}

// Load returns the stored state. A missing, unreadable or corrupt file
// yields an empty state.
func (s *Store) Load() State {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Warn(subsystem, "Could not read %s, starting from an empty state: %v", s.Path(), err)
		}
		return NewState()
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		logging.Warn(subsystem, "Ignoring corrupt state file %s: %v", s.Path(), err)
		return NewState()
	}
	if state.Ports == nil {
		state.Ports = map[string]int{}
	}
	if state.Containers == nil {
		state.Containers = map[string]string{}
	}
	return state
}

// Save replaces the state file atomically.
func (s *Store) Save(state State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode machine state: %w", err)
	}
	if err := atomic.WriteFile(s.Path(), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save machine state to %s: %w", s.Path(), err)
	}
	logging.Debug(subsystem, "Saved machine state to %s", s.Path())
	return nil
}
