package secrets

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/generative-ai-inc/war-machine/pkg/logging"
)

const (
	subsystem = "Secrets"

	// KeyringService and KeyringUser name the keyring entry holding every
	// secret as one JSON object.
	KeyringService = "war-machine"
	KeyringUser    = "secrets"
)

// KeyringStore implements Store on the operating system keyring.
type KeyringStore struct {
	Service string
	User    string
}

// NewKeyringStore returns a store on the war-machine keyring entry.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{Service: KeyringService, User: KeyringUser}
}

// NewStore returns the keyring store, or the file store at DefaultPath when
// the keyring cannot be reached.
func NewStore() (Store, error) {
	ks := NewKeyringStore()
	_, err := keyring.Get(ks.Service, ks.User)
	if err == nil || errors.Is(err, keyring.ErrNotFound) {
		return ks, nil
	}

	fs, ferr := NewFileStore()
	if ferr != nil {
		return nil, errors.Join(err, ferr)
	}
	logging.Warn(subsystem, "Keyring unavailable (%v), using %s", err, fs.Path)
	return fs, nil
}

// All implements Store. A missing entry holds no secrets.
func (s *KeyringStore) All() (map[string]string, error) {
	blob, err := keyring.Get(s.Service, s.User)
	if errors.Is(err, keyring.ErrNotFound) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read secrets from the keyring: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(blob), &raw); err != nil {
		return nil, fmt.Errorf("failed to decode secrets from the keyring: %w", err)
	}
	values := make(map[string]string, len(raw))
	for name, v := range raw {
		if str, ok := v.(string); ok {
			values[name] = str
		} else {
			values[name] = fmt.Sprint(v)
		}
	}
	return values, nil
}

// Get implements Store.
func (s *KeyringStore) Get(name string) (string, bool, error) {
	values, err := s.All()
	if err != nil {
		return "", false, err
	}
	v, ok := values[name]
	return v, ok, nil
}

// Set implements Store.
func (s *KeyringStore) Set(name, value string) error {
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
func (s *KeyringStore) Remove(name string) error {
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
func (s *KeyringStore) Clear() error {
	return s.write(map[string]string{})
}

func (s *KeyringStore) write(values map[string]string) error {
	blob, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to encode secrets: %w", err)
	}
	if err := keyring.Set(s.Service, s.User, string(blob)); err != nil {
		return fmt.Errorf("failed to save secrets in the keyring: %w", err)
	}
	return nil
}
