package resource

import (
	"encoding/json"
	"fmt"
	"os"
)

// SchedulerConfig holds the options the resource model is built with.
type SchedulerConfig struct {
	// InitiationInterval is the modulo scheduling period. Values <= 0
	// disable modulo wrapping. Default: 0.
	InitiationInterval int `json:"initiation_interval"`

	// Conservative disables sharing of resources between moves with
	// exclusive guards. Default: false.
	Conservative bool `json:"conservative"`

	// RespectUnitAnnotations makes brokers honour candidate, allowed and
	// rejected unit annotations on moves. Default: true.
	RespectUnitAnnotations bool `json:"respect_unit_annotations"`

	// MaxCycles bounds the cycles the driver tries for one move.
	// Default: 1024.
	MaxCycles int `json:"max_cycles"`
}

// DefaultSchedulerConfig returns a SchedulerConfig with default values.
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		InitiationInterval:     0,
		Conservative:           false,
		RespectUnitAnnotations: true,
		MaxCycles:              1024,
	}
}

// LoadConfig loads a SchedulerConfig from a JSON file.
func LoadConfig(path string) (*SchedulerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scheduler config file: %w", err)
	}

	config := DefaultSchedulerConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse scheduler config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a SchedulerConfig to a JSON file.
func (c *SchedulerConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize scheduler config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write scheduler config file: %w", err)
	}

	return nil
}

// Validate checks that the configuration values are usable.
func (c *SchedulerConfig) Validate() error {
	if c.InitiationInterval < 0 {
		return fmt.Errorf("initiation_interval must be >= 0")
	}
	if c.MaxCycles <= 0 {
		return fmt.Errorf("max_cycles must be > 0")
	}
	return nil
}

// Clone returns a copy of the SchedulerConfig.
func (c *SchedulerConfig) Clone() *SchedulerConfig {
	return &SchedulerConfig{
		InitiationInterval:     c.InitiationInterval,
		Conservative:           c.Conservative,
		RespectUnitAnnotations: c.RespectUnitAnnotations,
		MaxCycles:              c.MaxCycles,
	}
}
