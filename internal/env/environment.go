package env

import (
	"os"
	"sort"
	"strings"
	"sync"
)

// Environment is the set of variables passed to child processes. It is safe
// for concurrent use.
type Environment struct {
	mu    sync.RWMutex
	vars  map[string]string
	local map[string]struct{}
}

// New builds an environment from KEY=VALUE pairs. Every key present here is
// considered local.
func New(environ []string) *Environment {
	e := &Environment{
		vars:  make(map[string]string, len(environ)),
		local: make(map[string]struct{}, len(environ)),
	}
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		e.vars[key] = value
		e.local[key] = struct{}{}
	}
	return e
}

// FromOS builds an environment from the current process environment.
func FromOS() *Environment {
	return New(os.Environ())
}

// Get returns the value of key.
func (e *Environment) Get(key string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.vars[key]
	return v, ok
}

// SetIfAbsent stores value under key unless key is already set. It reports
// whether the value was stored.
func (e *Environment) SetIfAbsent(key, value string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.vars[key]; ok {
		return false
	}
	e.vars[key] = value
	return true
}

// IsLocal reports whether key was present when the environment was built.
func (e *Environment) IsLocal(key string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.local[key]
	return ok
}

// Environ returns the variables as sorted KEY=VALUE pairs.
func (e *Environment) Environ() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.vars))
	for k, v := range e.vars {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
