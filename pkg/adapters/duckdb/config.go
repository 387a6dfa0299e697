package duckdb

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Params are the duckdb specific target settings, read from the params
// block of a target:
//
//	target:
//	  type: duckdb
//	  params:
//	    extensions: [icu]
//	    settings: {threads: 2, memory_limit: 1GB}
type Params struct {
	// Extensions are installed and loaded on connect.
	Extensions []string `mapstructure:"extensions"`
	// Settings are applied with SET. Scalar YAML values are accepted and
	// stringified.
	Settings map[string]string `mapstructure:"settings"`
}

// ParseParams decodes the raw params of a target. Unknown keys are errors so
// a misspelled block does not silently do nothing.
func ParseParams(raw map[string]any) (*Params, error) {
	p := &Params{}
	if len(raw) == 0 {
		return p, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           p,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build params decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode duckdb params: %w", err)
	}
	for _, ext := range p.Extensions {
		if !isIdent(ext) {
			return nil, fmt.Errorf("invalid duckdb extension name %q", ext)
		}
	}
	for k := range p.Settings {
		if !isIdent(k) {
			return nil, fmt.Errorf("invalid duckdb setting name %q", k)
		}
	}
	return p, nil
}

// Statements returns the session statements for p: extensions first, then
// settings sorted by name.
func (p *Params) Statements() []string {
	var stmts []string
	for _, ext := range p.Extensions {
		stmts = append(stmts, "INSTALL "+ext, "LOAD "+ext)
	}
	for _, k := range slices.Sorted(maps.Keys(p.Settings)) {
		v := strings.ReplaceAll(p.Settings[k], "'", "''")
		stmts = append(stmts, fmt.Sprintf("SET %s = '%s'", k, v))
	}
	return stmts
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r != '_' && (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
