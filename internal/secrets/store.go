// Package secrets keeps war-machine secrets outside of any project.
//
// Secrets live in the operating system keyring, in a single entry holding a
// JSON object. When no keyring is reachable they live in a dotenv file under
// the user's config directory instead. Either way they are injected into
// every run with the lowest precedence: variables already set in the
// environment always win.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/joho/godotenv"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ErrNotFound is returned when removing a secret that does not exist.
var ErrNotFound = errors.New("secret not found")

// Store is a flat name to value mapping.
type Store interface {
	All() (map[string]string, error)
	Get(name string) (string, bool, error)
	Set(name, value string) error
	Remove(name string) error
	Clear() error
}

// ValidateName rejects names that cannot be used as environment variables.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("invalid secret name %q: only letters, digits and underscores are allowed", name)
	}
	return nil
}

// DefaultPath returns $XDG_CONFIG_HOME/war-machine/secrets.env, falling back
// to ~/.config when XDG_CONFIG_HOME is unset.
func DefaultPath() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to locate home directory: %w", err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "war-machine", "secrets.env"), nil
}

// FileStore implements Store on top of a dotenv file readable only by its
// owner.
type FileStore struct {
	Path string
}

// NewFileStore returns a store at DefaultPath.
func NewFileStore() (*FileStore, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return &FileStore{Path: path}, nil
}

// All implements Store. A missing file holds no secrets.
func (s *FileStore) All() (map[string]string, error) {
	values, err := godotenv.Read(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read secrets from %s: %w", s.Path, err)
	}
	return values, nil
}

// Get implements Store.
func (s *FileStore) Get(name string) (string, bool, error) {
	values, err := s.All()
	if err != nil {
		return "", false, err
	}
	v, ok := values[name]
	return v, ok, nil
}

// Set implements Store.
func (s *FileStore) Set(name, value string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	values, err := s.All()
	if err != nil {
		return err
	}
	values[name] = value
	return s.write(values)
}

// Remove implements Store.
func (s *FileStore) Remove(name string) error {
	values, err := s.All()
	if err != nil {
		return err
	}
	if _, ok := values[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	delete(values, name)
	return s.write(values)
}

// Clear implements Store.
func (s *FileStore) Clear() error {
	return s.write(map[string]string{})
}

func (s *FileStore) write(values map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0700); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(s.Path), err)
	}
	// Create with owner-only permissions before godotenv truncates it.
	f, err := os.OpenFile(s.Path, os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", s.Path, err)
	}
	f.Close()
	if err := os.Chmod(s.Path, 0600); err != nil {
		return fmt.Errorf("failed to restrict %s: %w", s.Path, err)
	}
	if err := godotenv.Write(values, s.Path); err != nil {
		return fmt.Errorf("failed to write secrets to %s: %w", s.Path, err)
	}
	return nil
}

// Names returns the sorted names held by store.
func Names(store Store) ([]string, error) {
	values, err := store.All()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
