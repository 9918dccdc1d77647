package dice

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlTableFile is the top-level YAML structure for weight table files:
//
//	ranges:
//	  - {min: -10, max: -6, weight: 0.05}
//	  - {min: 1, max: 7, weight: 0.6}
type yamlTableFile struct {
	Ranges []WeightedRange `yaml:"ranges"`
}

// LoadTableFromFile reads and validates a weight table YAML file.
//
// Precondition: path must point to a readable YAML file.
// Postcondition: Returns a validated Table or a non-nil error.
func LoadTableFromFile(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading weight table %s: %w", path, err)
	}
	t, err := LoadTableFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// LoadTableFromBytes parses and validates a weight table from YAML bytes.
//
// Postcondition: Returns a validated Table or a non-nil error.
func LoadTableFromBytes(data []byte) (Table, error) {
	var f yamlTableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing weight table: %w", err)
	}
	t := Table(f.Ranges)
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}
