package config

import (
	"os"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/cruxfw/faaf/expr"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// rawAnalyzer is the TOML-shaped transport type: plain strings, no
// expression parsing. Load parses each field through expr.Parse* and
// validates the result into an Analyzer, mirroring the two-layer
// deserialize-then-parse split of the original implementation.
type rawAnalyzer struct {
	Name         string   `toml:"name"`
	Extension    string   `toml:"extension"`
	Arguments    []string `toml:"arguments"`
	Dependencies []string `toml:"dependencies"`
	Conditions   string   `toml:"conditions"`
}

type rawConfig struct {
	Analyzers []rawAnalyzer `toml:"analyzer"`
}

// LoadFile reads and parses the configuration file at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Load(data)
}

// Load parses TOML configuration data into a fully validated Config.
func Load(data []byte) (*Config, error) {
	var raw rawConfig
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return nil, err
	}

	cfg := &Config{Analyzers: make([]Analyzer, 0, len(raw.Analyzers))}
	seen := make(map[string]bool, len(raw.Analyzers))

	for _, ra := range raw.Analyzers {
		if ra.Name == "" {
			return nil, &ValidationError{Reason: "analyzer name must not be empty"}
		}
		if !identifierPattern.MatchString(ra.Name) {
			return nil, &ValidationError{Analyzer: ra.Name, Reason: "name is not a valid table identifier"}
		}
		if seen[ra.Name] {
			return nil, &ValidationError{Analyzer: ra.Name, Reason: "duplicate analyzer name"}
		}

		for _, dep := range ra.Dependencies {
			if !seen[dep] {
				return nil, &ValidationError{Analyzer: ra.Name, Reason: "dependency " + dep + " is not declared earlier in the list"}
			}
		}

		args := make([]expr.Argument, 0, len(ra.Arguments))
		for _, a := range ra.Arguments {
			parsed, err := expr.ParseArgument(a)
			if err != nil {
				return nil, &ExpressionError{Analyzer: ra.Name, Field: "arguments", Text: a, Err: err}
			}
			args = append(args, *parsed)
		}

		conds := make([]expr.Condition, 0)
		for _, line := range strings.Split(ra.Conditions, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			parsed, err := expr.ParseCondition(line)
			if err != nil {
				return nil, &ExpressionError{Analyzer: ra.Name, Field: "conditions", Text: line, Err: err}
			}
			if parsed.Chain != nil && *parsed.Chain == expr.ChainOr {
				return nil, &ValidationError{Analyzer: ra.Name, Reason: "chain operator \"or\" is not supported; conditions are AND-joined"}
			}
			conds = append(conds, *parsed)
		}

		seen[ra.Name] = true
		cfg.Analyzers = append(cfg.Analyzers, Analyzer{
			Name:         ra.Name,
			Extension:    ra.Extension,
			Arguments:    args,
			Dependencies: ra.Dependencies,
			Conditions:   conds,
		})
	}

	return cfg, nil
}
