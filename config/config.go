// Package config loads the declarative TOML analyzer configuration into
// validated, fully-parsed form: every condition and argument string is run
// through expr.Parse* at load time, never deferred to orchestration.
package config

import (
	"github.com/cruxfw/faaf/expr"
)

// Analyzer is one fully-parsed, validated analyzer entry.
type Analyzer struct {
	Name         string
	Extension    string
	Arguments    []expr.Argument
	Dependencies []string
	Conditions   []expr.Condition
}

// Config is the ordered list of analyzers for a run. Order is the
// evaluation order: later analyzers may reference earlier ones via
// accessors.
type Config struct {
	Analyzers []Analyzer
}

// ByName returns the analyzer with the given name, if declared.
func (c *Config) ByName(name string) (Analyzer, bool) {
	for _, a := range c.Analyzers {
		if a.Name == name {
			return a, true
		}
	}
	return Analyzer{}, false
}
