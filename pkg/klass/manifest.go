package klass

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Snapshot kinds.
const (
	KindCodes          = "codes"
	KindCorrespondence = "correspondence"
)

// Manifest describes one offline snapshot: a code list or a correspondence
// table and the period it is valid for.
type Manifest struct {
	ID             string            `yaml:"id" json:"id"`
	Kind           string            `yaml:"kind" json:"kind"`
	Classification int               `yaml:"classification" json:"classification"`
	Target         int               `yaml:"target,omitempty" json:"target,omitempty"`
	ValidFrom      string            `yaml:"valid_from" json:"valid_from"`
	ValidTo        string            `yaml:"valid_to,omitempty" json:"valid_to,omitempty"`
	Source         string            `yaml:"source,omitempty" json:"source,omitempty"`
	DataFile       string            `yaml:"data_file" json:"data_file"`
	Format         FormatSpec        `yaml:"format" json:"-"`
	Columns        map[string]string `yaml:"columns,omitempty" json:"-"`
}

// FormatSpec describes the CSV layout of a snapshot.
type FormatSpec struct {
	Delimiter string `yaml:"delimiter"`
	Encoding  string `yaml:"encoding"`
}

// LoadManifest reads and validates a manifest.yaml file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if m.ID == "" {
		return nil, fmt.Errorf("manifest %s: missing id", path)
	}
	switch m.Kind {
	case KindCodes:
	case KindCorrespondence:
		if m.Target == 0 {
			return nil, fmt.Errorf("manifest %s: correspondence without target", path)
		}
	default:
		return nil, fmt.Errorf("manifest %s: unknown kind %q", path, m.Kind)
	}
	if m.Classification == 0 {
		return nil, fmt.Errorf("manifest %s: missing classification", path)
	}
	if m.ValidFrom == "" {
		return nil, fmt.Errorf("manifest %s: missing valid_from", path)
	}
	if m.DataFile == "" {
		m.DataFile = "data.csv"
	}
	return &m, nil
}

// column returns the CSV header used for a logical field.
func (m *Manifest) column(field string) string {
	if c, ok := m.Columns[field]; ok && c != "" {
		return c
	}
	return field
}

func (m *Manifest) covers(date string) bool {
	return m.ValidFrom <= date && (m.ValidTo == "" || date <= m.ValidTo)
}
