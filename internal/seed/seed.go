// Package seed bulk-inserts pre-authored patterns from static YAML
// definitions. Seeding never overwrites locally captured knowledge: a
// signature that already exists in the store is skipped.
package seed

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sigil-dev/sigil/internal/types"
)

// Pattern is one pre-authored pattern definition.
type Pattern struct {
	Signature   string `yaml:"signature"`
	Category    string `yaml:"category"`
	Description string `yaml:"description"`
	Solution    string `yaml:"solution,omitempty"`
}

// File is a seed definition file for one framework or topic.
type File struct {
	Framework string    `yaml:"framework"`
	Patterns  []Pattern `yaml:"patterns"`
}

// Store defines the single store operation the loader needs.
type Store interface {
	InsertPatternIfAbsent(ctx context.Context, p types.Pattern) (bool, error)
}

// Result reports the outcome of one seeding run.
type Result struct {
	Inserted int
	Skipped  int
}

// Load parses a seed definition file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	for i, p := range f.Patterns {
		if p.Signature == "" {
			return nil, fmt.Errorf("seed pattern %d: signature is required", i)
		}
	}

	return &f, nil
}

// Apply inserts each seed pattern that is not already present.
func Apply(ctx context.Context, s Store, f *File) (*Result, error) {
	result := &Result{}

	for _, p := range f.Patterns {
		pattern := types.Pattern{
			Signature:   p.Signature,
			Category:    p.Category,
			Description: p.Description,
		}
		if p.Solution != "" {
			sol := p.Solution
			pattern.Solution = &sol
		}

		inserted, err := s.InsertPatternIfAbsent(ctx, pattern)
		if err != nil {
			return result, fmt.Errorf("seed pattern %s: %w", p.Signature, err)
		}
		if inserted {
			result.Inserted++
		} else {
			result.Skipped++
		}
	}

	return result, nil
}
