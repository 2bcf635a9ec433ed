package routing

import (
	"bytes"
	"fmt"
	"os"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"
)

// Table is the on-disk routing table. It is the single source of truth
// for keyword registrations; the index is always rebuilt from it.
type Table struct {
	Routes []Entry `yaml:"routes"`
}

// LoadTable reads a routing table from a YAML file. A missing file
// yields an empty table, since a fresh corpus has no routes yet.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading routing table: %w", err)
	}

	var table Table
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parsing routing table %s: %w", path, err)
	}
	return &table, nil
}

// Save writes the table to path atomically so a crash mid-write never
// leaves a truncated table behind.
func (t *Table) Save(path string) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return fmt.Errorf("encoding routing table: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing routing table %s: %w", path, err)
	}
	return nil
}
