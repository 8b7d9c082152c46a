// Package config resolves Squire and Steward configuration, following the
// teacher's internal/config shape (viper + defaults-in-one-place + atomic
// JSON Save) but inverted for §6's precedence: env vars are loaded first,
// then the first candidate config file that exists overrides them.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"github.com/squireai/squire/internal/atomicfile"
)

const (
	DefaultConfigDir  = ".squire"
	DefaultConfigFile = "config.json"
)

// LoadSquire resolves SquireConfig: env vars (SQUIRE_*) first, then the
// first of configPath (if set), ./squire.json, ~/.squire/config.json that
// exists overrides them.
func LoadSquire(configPath string) (*SquireConfig, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine home directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix("squire")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setSquireDefaultsFromEnv(v, home)

	candidate := configPath
	if candidate == "" {
		if _, err := os.Stat("squire.json"); err == nil {
			candidate = "squire.json"
		} else {
			candidate = filepath.Join(home, DefaultConfigDir, DefaultConfigFile)
		}
	}
	v.SetConfigFile(candidate)
	if err := v.MergeInConfig(); err != nil {
		if !os.IsNotExist(err) {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading config %s: %w", candidate, err)
			}
		}
	}

	var cfg SquireConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.TasksDir = expandHome(cfg.TasksDir, home)
	cfg.LogsDir = expandHome(cfg.LogsDir, home)
	cfg.SkillsDir = expandHome(cfg.SkillsDir, home)
	return &cfg, nil
}

// setSquireDefaultsFromEnv seeds viper defaults from env-first values so
// that a later MergeInConfig call — which viper applies on top of defaults
// — lets the config file override them, satisfying §6's "file values
// override env values".
func setSquireDefaultsFromEnv(v *viper.Viper, home string) {
	v.SetDefault("model", "opencode/glm-4.7-free")
	v.SetDefault("tasks_dir", filepath.Join(home, DefaultConfigDir, "tasks"))
	v.SetDefault("logs_dir", filepath.Join(home, DefaultConfigDir, "logs"))
	v.SetDefault("worker_image", "squire-worker:latest")
	v.SetDefault("skills_dir", filepath.Join(home, DefaultConfigDir, "skills"))
	v.SetDefault("max_concurrent", 5)
	v.SetDefault("auto_cleanup", true)
	v.SetDefault("backend", "container")
	v.SetDefault("webhook.require_secret", false)
	v.SetDefault("webhook.addr", ":8090")
	v.SetDefault("cluster.namespace", "default")
	v.SetDefault("cluster.token_secret_name", "squire-repo-host-token")
	v.SetDefault("cluster.token_secret_key_a", "TOKEN_A")
	v.SetDefault("cluster.token_secret_key_b", "TOKEN_B")

	// Each key above (plus repo_host_token) takes its SQUIRE_<KEY> env value,
	// dots mapped to underscores, as its default when that variable is set;
	// the config file merged later sits above defaults and so overrides it.
	for _, key := range append(v.AllKeys(), "repo_host_token") {
		if val := os.Getenv("SQUIRE_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))); val != "" {
			v.SetDefault(key, val)
		}
	}
}

// Save writes cfg to disk as indented JSON at 0600, mirroring the teacher's
// internal/config.Save.
func Save(cfg *SquireConfig, configPath string) error {
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("cannot determine home directory: %w", err)
		}
		configPath = filepath.Join(home, DefaultConfigDir, DefaultConfigFile)
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return atomicfile.WriteJSON(configPath, cfg)
}

func expandHome(path, home string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
