package config

import (
	"fmt"
	"os"

	yaml "go.yaml.in/yaml/v3"
)

// LoadSteward resolves StewardConfig from env STEWARD_CONFIG_PATH, else
// ./steward.yaml, else /config/steward.yaml, per spec §6.
func LoadSteward() (*StewardConfig, error) {
	path := os.Getenv("STEWARD_CONFIG_PATH")
	if path == "" {
		if _, err := os.Stat("steward.yaml"); err == nil {
			path = "steward.yaml"
		} else {
			path = "/config/steward.yaml"
		}
	}

	cfg := defaultStewardConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading steward config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing steward config %s: %w", path, err)
	}
	return cfg, nil
}

func defaultStewardConfig() *StewardConfig {
	return &StewardConfig{
		Execution: ExecutionConfig{
			Backend: "squire",
			Squire: SquireExecConfig{
				MaxConcurrent: 5,
				MaxPerRepo:    2,
			},
		},
		AutoMerge: AutoMergeConfig{
			Enabled:       false,
			MinConfidence: 5,
		},
		Schedule: ScheduleConfig{
			Interval: "15m",
			Timezone: "UTC",
		},
	}
}
