package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	GridWidth  int `yaml:"grid_width"`
	GridHeight int `yaml:"grid_height"`

	RoundIntervalSeconds int `yaml:"round_interval_seconds"`
	ResetDelaySeconds    int `yaml:"reset_delay_seconds"`

	MinDifficulty int `yaml:"min_difficulty"`
	MaxDifficulty int `yaml:"max_difficulty"`

	ClientQueue          int `yaml:"client_queue"`
	WriteDeadlineSeconds int `yaml:"write_deadline_seconds"`
}

func Defaults() Tuning {
	return Tuning{
		GridWidth:            30,
		GridHeight:           30,
		RoundIntervalSeconds: 5,
		ResetDelaySeconds:    10,
		MinDifficulty:        1,
		MaxDifficulty:        5,
		ClientQueue:          16,
		WriteDeadlineSeconds: 5,
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.validate(); err != nil {
		return t, err
	}
	return t, nil
}

func (t Tuning) validate() error {
	if t.GridWidth <= 0 || t.GridHeight <= 0 {
		return fmt.Errorf("tuning.yaml: grid %dx%d out of range", t.GridWidth, t.GridHeight)
	}
	if t.RoundIntervalSeconds <= 0 {
		return fmt.Errorf("tuning.yaml: round_interval_seconds must be positive")
	}
	if t.MinDifficulty < 1 || t.MaxDifficulty > 5 || t.MinDifficulty > t.MaxDifficulty {
		return fmt.Errorf("tuning.yaml: difficulty range %d..%d invalid", t.MinDifficulty, t.MaxDifficulty)
	}
	return nil
}
