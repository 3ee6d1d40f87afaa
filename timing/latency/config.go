package latency

import (
	"encoding/json"
	"fmt"
	"os"
)

// TimingConfig holds execute-latency values per opcode, in cycles.
type TimingConfig struct {
	// AddLatency is the execution latency for ADD. Default: 2 cycles.
	AddLatency int `json:"add_latency"`

	// SubLatency is the execution latency for SUB. Default: 2 cycles.
	SubLatency int `json:"sub_latency"`

	// AddiLatency is the execution latency for ADDI. Default: 2 cycles.
	AddiLatency int `json:"addi_latency"`

	// MulLatency is the execution latency for MUL. Default: 10 cycles.
	MulLatency int `json:"mul_latency"`

	// DivLatency is the execution latency for DIV. Default: 20 cycles.
	DivLatency int `json:"div_latency"`

	// LoadLatency is the execution latency for LW. Default: 3 cycles.
	LoadLatency int `json:"lw_latency"`

	// StoreLatency is the execution latency for SW. Default: 3 cycles.
	StoreLatency int `json:"sw_latency"`

	// BeqLatency is the execution latency for BEQ. Default: 1 cycle.
	BeqLatency int `json:"beq_latency"`

	// BneLatency is the execution latency for BNE. Default: 1 cycle.
	BneLatency int `json:"bne_latency"`

	// JumpLatency is the execution latency for J. Default: 1 cycle.
	JumpLatency int `json:"j_latency"`
}

// DefaultTimingConfig returns a TimingConfig with the default latencies.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		AddLatency:   2,
		SubLatency:   2,
		AddiLatency:  2,
		MulLatency:   10,
		DivLatency:   20,
		LoadLatency:  3,
		StoreLatency: 3,
		BeqLatency:   1,
		BneLatency:   1,
		JumpLatency:  1,
	}
}

// LoadConfig loads a TimingConfig from a JSON file. Keys absent from the
// file keep their default values.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultTimingConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON file.
func (c *TimingConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

// Validate checks that all latency values are valid (> 0).
func (c *TimingConfig) Validate() error {
	checks := []struct {
		key   string
		value int
	}{
		{"add_latency", c.AddLatency},
		{"sub_latency", c.SubLatency},
		{"addi_latency", c.AddiLatency},
		{"mul_latency", c.MulLatency},
		{"div_latency", c.DivLatency},
		{"lw_latency", c.LoadLatency},
		{"sw_latency", c.StoreLatency},
		{"beq_latency", c.BeqLatency},
		{"bne_latency", c.BneLatency},
		{"j_latency", c.JumpLatency},
	}
	for _, check := range checks {
		if check.value < 1 {
			return fmt.Errorf("%s must be > 0, got %d", check.key, check.value)
		}
	}
	return nil
}

// Clone returns a deep copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c
	return &clone
}
