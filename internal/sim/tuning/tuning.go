package tuning

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version" env:"PROTOCOL_VERSION"`

	TickRateHz         int `yaml:"tick_rate_hz" env:"TICK_RATE_HZ"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks" env:"SNAPSHOT_EVERY_TICKS"`

	// MaxNetworkPoints bounds how many connection points a layout may wire into one network.
	MaxNetworkPoints int `yaml:"max_network_points" env:"MAX_NETWORK_POINTS"`

	Observer Observer `yaml:"observer" envPrefix:"OBSERVER_"`
}

type Observer struct {
	TickQueue int  `yaml:"tick_queue" env:"TICK_QUEUE"`
	Networks  bool `yaml:"networks" env:"NETWORKS"`
}

const EnvPrefix = "VW_"

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:    "1.0",
		TickRateHz:         20,
		SnapshotEveryTicks: 6000,
		MaxNetworkPoints:   4096,
		Observer: Observer{
			TickQueue: 8,
			Networks:  true,
		},
	}
}

// Load reads path over Defaults, then applies VW_* environment overrides.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := ApplyEnv(&t); err != nil {
		return t, err
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func ApplyEnv(t *Tuning) error {
	if err := env.ParseWithOptions(t, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("tuning env: %w", err)
	}
	return nil
}

func (t Tuning) Validate() error {
	if t.TickRateHz <= 0 || t.TickRateHz > 1000 {
		return fmt.Errorf("tick_rate_hz must be in 1..1000, got %d", t.TickRateHz)
	}
	if t.SnapshotEveryTicks < 0 {
		return fmt.Errorf("snapshot_every_ticks must be >= 0, got %d", t.SnapshotEveryTicks)
	}
	if t.MaxNetworkPoints <= 0 {
		return fmt.Errorf("max_network_points must be > 0, got %d", t.MaxNetworkPoints)
	}
	if t.Observer.TickQueue <= 0 {
		return fmt.Errorf("observer.tick_queue must be > 0, got %d", t.Observer.TickQueue)
	}
	return nil
}
