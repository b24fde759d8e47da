package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weavegraph/weave/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage Weave configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a default configuration file to the config path.
Fails if a configuration file already exists.`,
	RunE: runConfigInit,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fmt.Println(cfg.String())
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	if loader.Exists() {
		return fmt.Errorf("configuration already exists at %s", loader.ConfigPath())
	}

	if err := loader.Save(config.DefaultConfig()); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Printf("Configuration written to %s\n", loader.ConfigPath())
	fmt.Println("Set provider.api_key before running 'weave chat'.")
	return nil
}
