// Package sim drives a roster stack from a scripted scenario against the
// in-memory host, with a simulated clock so runs are reproducible.
package sim

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const defaultTicks = 100

// ErrNoEntityName is returned for an entity spec without a name.
var ErrNoEntityName = errors.New("entity name is required")

// EntitySpec describes an entity joining the roster.
type EntitySpec struct {
	Name    string            `yaml:"name"`
	Zone    string            `yaml:"zone,omitempty"`
	Metrics map[string]string `yaml:"metrics,omitempty"`
}

// Step is applied at the start of tick At.
type Step struct {
	At      int64                        `yaml:"at"`
	Join    []EntitySpec                 `yaml:"join,omitempty"`
	Leave   []string                     `yaml:"leave,omitempty"`
	Zone    map[string]string            `yaml:"zone,omitempty"` // name -> zone
	Set     map[string]map[string]string `yaml:"set,omitempty"`  // name -> metric -> value
	Force   bool                         `yaml:"force,omitempty"`
	Ranking *bool                        `yaml:"ranking,omitempty"`
	Render  bool                         `yaml:"render,omitempty"`
}

// Scenario is a scripted run. Entities join before the first tick.
type Scenario struct {
	Config   string       `yaml:"config,omitempty"`
	Ticks    int64        `yaml:"ticks,omitempty"`
	Viewer   string       `yaml:"viewer,omitempty"`
	Entities []EntitySpec `yaml:"entities"`
	Steps    []Step       `yaml:"steps,omitempty"`
}

// LoadScenario reads a YAML scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes a YAML scenario. Unknown keys are rejected.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := sc.validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (sc *Scenario) validate() error {
	for i, e := range sc.Entities {
		if e.Name == "" {
			return fmt.Errorf("entity %d: %w", i, ErrNoEntityName)
		}
	}
	last := int64(0)
	for i, st := range sc.Steps {
		if st.At < 1 {
			return fmt.Errorf("step %d: at must be >= 1, got %d", i, st.At)
		}
		for j, e := range st.Join {
			if e.Name == "" {
				return fmt.Errorf("step %d join %d: %w", i, j, ErrNoEntityName)
			}
		}
		last = max(last, st.At)
	}
	if sc.Ticks <= 0 {
		sc.Ticks = max(last, defaultTicks)
	}
	if sc.Ticks < last {
		return fmt.Errorf("ticks %d ends before step at %d", sc.Ticks, last)
	}
	return nil
}
