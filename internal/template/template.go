// Package template resolves the placeholders allowed in service command
// templates and exposed values.
//
// The grammar is closed:
//
//	${machine_name}
//	${service.name}
//	${service.source.image}
//	${service.source.tag}
//	${service.source.registry}
//	${port.<name>}
//
// Resolution happens in a single pass over the input, so text produced by a
// substitution is never scanned again. Placeholders outside the grammar, or
// ports without an allocation, are left as written.
package template

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/generative-ai-inc/war-machine/internal/config"
)

var (
	placeholderPattern = regexp.MustCompile(`\$\{([A-Za-z0-9_.]+)\}`)
	portPattern        = regexp.MustCompile(`\$\{port\.(\w+)\}`)
)

const portPrefix = "port."

// Resolver substitutes placeholders for one service.
type Resolver struct {
	vars  map[string]string
	ports map[string]int
}

// NewResolver builds a resolver for svc. ports is read, never modified.
func NewResolver(machineName string, svc config.Service, ports map[string]int) *Resolver {
	vars := map[string]string{
		"machine_name": machineName,
		"service.name": svc.Name,
	}
	if c := svc.Source.Container; c != nil {
		vars["service.source.image"] = c.Image
		vars["service.source.tag"] = c.Tag
		vars["service.source.registry"] = c.Registry
	}
	return &Resolver{vars: vars, ports: ports}
}

// PortsOnly returns a resolver that only knows ${port.*} placeholders.
func PortsOnly(ports map[string]int) *Resolver {
	return &Resolver{vars: map[string]string{}, ports: ports}
}

// Resolve returns text with every known placeholder substituted. Service
// and source fields are looked up before ports.
func (r *Resolver) Resolve(text string) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		key := match[2 : len(match)-1]
		if v, ok := r.vars[key]; ok {
			return v
		}
		if name, ok := strings.CutPrefix(key, portPrefix); ok {
			if port, ok := r.ports[name]; ok {
				return strconv.Itoa(port)
			}
		}
		return match
	})
}

// PortNames returns the distinct ${port.<name>} names referenced by texts,
// sorted.
func PortNames(texts ...string) []string {
	seen := map[string]struct{}{}
	for _, text := range texts {
		for _, m := range portPattern.FindAllStringSubmatch(text, -1) {
			seen[m[1]] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
