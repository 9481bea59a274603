package env

import (
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Source records where a variable came from.
type Source string

const (
	SourceSecret     Source = "literal-secret"
	SourceFeature    Source = "feature"
	SourceWarMachine Source = "war-machine"
	SourceLocal      Source = "local"
)

// Tuple is one composed variable.
type Tuple struct {
	Key    string
	Value  string
	Source Source
}

// Row is one line of the environment table.
type Row struct {
	Key    string
	Source Source
}

// Apply stores every tuple in environment, keeping values that are already
// set.
func Apply(environment *Environment, tuples []Tuple) {
	for _, t := range tuples {
		environment.SetIfAbsent(t.Key, t.Value)
	}
}

// Merge applies tuples to environment and returns one row per key, sorted.
// The first tuple for a key determines its source; keys that were set before
// composition are reported as local.
func Merge(environment *Environment, tuples []Tuple) []Row {
	Apply(environment, tuples)

	sources := make(map[string]Source, len(tuples))
	for _, t := range tuples {
		if _, seen := sources[t.Key]; seen {
			continue
		}
		if environment.IsLocal(t.Key) {
			sources[t.Key] = SourceLocal
		} else {
			sources[t.Key] = t.Source
		}
	}

	rows := make([]Row, 0, len(sources))
	for k, s := range sources {
		rows = append(rows, Row{Key: k, Source: s})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })
	return rows
}

// RenderTable draws the Key/Source table. It returns an empty string when
// there are no rows.
func RenderTable(rows []Row) string {
	if len(rows) == 0 {
		return ""
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("Key", "Source").
		StyleFunc(func(row, col int) lipgloss.Style {
			style := lipgloss.NewStyle().Padding(0, 1)
			switch {
			case row == table.HeaderRow:
				return style.Bold(true)
			case col == 1 && row >= 0 && row < len(rows) && rows[row].Source == SourceLocal:
				return style.Faint(true)
			}
			return style
		})
	for _, r := range rows {
		t.Row(r.Key, string(r.Source))
	}
	return t.String()
}

// ParseCommandOutput reads KEY=VALUE lines. Blank lines, comments and lines
// without '=' are skipped. Excluded keys are dropped, renames are applied,
// keys are upper-cased and one pair of surrounding double quotes is removed
// from values.
func ParseCommandOutput(stdout string, exclude []string, rename map[string]string) []Tuple {
	excluded := make(map[string]struct{}, len(exclude))
	for _, k := range exclude {
		excluded[strings.TrimSpace(k)] = struct{}{}
	}

	var tuples []Tuple
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if _, drop := excluded[key]; drop {
			continue
		}
		if renamed, ok := rename[key]; ok {
			key = strings.TrimSpace(renamed)
		}
		if key == "" {
			continue
		}
		if len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
			value = value[1 : len(value)-1]
		}
		tuples = append(tuples, Tuple{
			Key:    strings.ToUpper(key),
			Value:  strings.TrimSpace(value),
			Source: SourceWarMachine,
		})
	}
	return tuples
}
