package cli

import (
	"fmt"
	"os"

	"github.com/monorkin/flow-index-monitor/internal/config"
	"github.com/monorkin/flow-index-monitor/internal/globals"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var forceInit bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with default values",
	Long: `Write a config file with default values. With --force an existing file is
overwritten, even one that no longer parses.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		globals.InitializeLogger(verbose, configPath)
	},
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective config, with secrets redacted",
	RunE:  runConfigShow,
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := globals.ConfigPath

	if _, err := os.Stat(path); err == nil && !forceInit {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}

	cfg := config.Default()
	cfg.Provider.BaseURL = "https://api.example.com/v1"
	cfg.Provider.Email = "user@example.com"
	cfg.Provider.PasswordEnv = "API_PASSWORD"

	if err := cfg.SaveTo(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Wrote config to %s\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := *globals.Config
	if cfg.Provider.Password != "" {
		cfg.Provider.Password = "********"
	}

	output, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("failed to format config: %w", err)
	}

	fmt.Printf("# %s\n# database: %s\n", globals.ConfigPath, cfg.DBPath())
	fmt.Print(string(output))
	return nil
}

func init() {
	configInitCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite an existing config file")

	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
