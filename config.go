package disjoint

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v2"
)

// Strategy is a bitmask of when a background sweep should trigger a
// collection pass, rather than just culling expired disjunctions
// (spec.md §6, "collection strategy").
type Strategy uint8

const (
	// StrategyManual never collects on its own; callers drive Collect or
	// Container.Sweep directly.
	StrategyManual Strategy = 1 << iota
	// StrategyTimed collects once per Period on the background goroutine.
	StrategyTimed
	// StrategyAllocFail collects when a caller signals an allocation
	// failure on the allocFail channel passed to Container.RunBackground.
	StrategyAllocFail
)

// StrategyConfig configures a Container's background sweep loop. It is
// meant to be loaded from a small YAML file alongside a process's other
// config, the same way the teacher's own go.mod pulled in yaml.v2 for
// config loading.
type StrategyConfig struct {
	Strategy      []string      `yaml:"strategy"`
	Period        time.Duration `yaml:"period"`
	MaxConcurrent int           `yaml:"max_concurrent"`
}

// LoadStrategyConfig parses a StrategyConfig from YAML bytes.
func LoadStrategyConfig(data []byte) (StrategyConfig, error) {
	var cfg StrategyConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return StrategyConfig{}, fmt.Errorf("disjoint: parse strategy config: %w", err)
	}
	return cfg, nil
}

// Mask resolves the configured strategy names into a Strategy bitmask.
// Unknown names are reported as an error rather than silently ignored.
func (cfg StrategyConfig) Mask() (Strategy, error) {
	var mask Strategy
	for _, name := range cfg.Strategy {
		switch name {
		case "manual":
			mask |= StrategyManual
		case "timed":
			mask |= StrategyTimed
		case "allocfail":
			mask |= StrategyAllocFail
		default:
			return 0, fmt.Errorf("disjoint: unknown collection strategy %q", name)
		}
	}
	if mask == 0 {
		mask = StrategyManual
	}
	return mask, nil
}
