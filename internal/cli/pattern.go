// Package cli provides shared helpers for the credvault commands.
package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/forest6511/credvault/pkg/batch"
)

// MatchTargets returns the names in available matched by pattern.
// A pattern without glob characters (*?[) must name an existing target.
func MatchTargets(pattern string, available []string) ([]string, error) {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern '%s': %w", pattern, err)
	}

	if !strings.ContainsAny(pattern, "*?[") {
		for _, name := range available {
			if name == pattern {
				return []string{pattern}, nil
			}
		}
		return nil, fmt.Errorf("target '%s' not configured", pattern)
	}

	var matches []string
	for _, name := range available {
		if ok, _ := filepath.Match(pattern, name); ok {
			matches = append(matches, name)
		}
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no targets match pattern '%s'", pattern)
	}
	return matches, nil
}

// SelectTargets filters targets down to those matched by any pattern,
// keeping configuration order. No patterns selects every target.
func SelectTargets(patterns []string, targets []batch.Target) ([]batch.Target, error) {
	if len(patterns) == 0 {
		return targets, nil
	}

	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = t.Name
	}

	wanted := make(map[string]bool)
	for _, p := range patterns {
		matches, err := MatchTargets(p, names)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			wanted[m] = true
		}
	}

	selected := make([]batch.Target, 0, len(wanted))
	for _, t := range targets {
		if wanted[t.Name] {
			selected = append(selected, t)
		}
	}
	return selected, nil
}
