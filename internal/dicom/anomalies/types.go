// Package anomalies injects the irregularities real archives contain into
// synthetic series: repeated acquisitions at the same positions, derived
// reformats, shuffled numbering, table shifts and missing geometry.
package anomalies

import (
	"fmt"
	"strings"
)

// Type is one kind of anomaly.
type Type string

const (
	// DuplicatePositions re-acquires some slices at positions already taken.
	DuplicatePositions Type = "duplicate-positions"
	// DerivedImages adds derived reformats, one of them with a repeated number.
	DerivedImages Type = "derived-images"
	// ShuffledInstances permutes instance numbers against spatial order.
	ShuffledInstances Type = "shuffled-instances"
	// ShuffledFiles names files in an order unrelated to spatial order.
	ShuffledFiles Type = "shuffled-files"
	// TableShift moves slices within their plane, leaving depth untouched.
	TableShift Type = "table-shift"
	// MissingPosition drops Image Position (Patient) from one slice.
	MissingPosition Type = "missing-position"
)

// AllTypes returns all valid anomaly types.
func AllTypes() []Type {
	return []Type{DuplicatePositions, DerivedImages, ShuffledInstances, ShuffledFiles, TableShift, MissingPosition}
}

// Config holds the enabled anomaly types.
type Config struct {
	Types []Type
}

// ParseTypes parses comma-separated anomaly types.
// The special value "all" enables every type.
func ParseTypes(input string) ([]Type, error) {
	if strings.TrimSpace(input) == "" {
		return nil, nil
	}

	valid := make(map[Type]bool)
	for _, t := range AllTypes() {
		valid[t] = true
	}

	var result []Type
	seen := make(map[Type]bool)
	for _, p := range strings.Split(input, ",") {
		p = strings.TrimSpace(p)
		if p == "all" {
			return AllTypes(), nil
		}
		t := Type(p)
		if !valid[t] {
			return nil, fmt.Errorf("unknown anomaly type %q, valid types: %v (or 'all')", p, AllTypes())
		}
		if !seen[t] {
			result = append(result, t)
			seen[t] = true
		}
	}
	return result, nil
}

// IsEnabled returns true if any anomaly is enabled.
func (c Config) IsEnabled() bool {
	return len(c.Types) > 0
}

// HasType checks if a specific anomaly type is enabled.
func (c Config) HasType(t Type) bool {
	for _, ct := range c.Types {
		if ct == t {
			return true
		}
	}
	return false
}
