package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/squireai/squire/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View and manage Squire configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current configuration (secrets redacted)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadSquire(cfgFile)
		if err != nil {
			return err
		}
		if cfg.RepoHostToken != "" {
			cfg.RepoHostToken = "***"
		}
		if cfg.Webhook.Secret != "" {
			cfg.Webhook.Secret = "***"
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the path to the config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := configFilePath()
		if err != nil {
			return err
		}
		fmt.Println(p)
		return nil
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open the config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := configFilePath()
		if err != nil {
			return err
		}
		editor := os.Getenv("EDITOR")
		if editor == "" {
			editor = "nano"
		}
		fmt.Printf("Opening %s with %s...\n", p, editor)
		c := exec.Command(editor, p)
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		return c.Run()
	},
}

// configFilePath resolves where Squire's config would be read from/written
// to: the --config flag if set, else ./squire.json if it exists, else
// ~/.squire/config.json.
func configFilePath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	if _, err := os.Stat("squire.json"); err == nil {
		return "squire.json", nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, config.DefaultConfigDir, config.DefaultConfigFile), nil
}

func init() {
	configCmd.AddCommand(configShowCmd, configPathCmd, configEditCmd)
}
