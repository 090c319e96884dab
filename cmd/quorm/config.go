package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

var configShowSource bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration utilities",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration the other commands run with, after defaults,
the config file and QUORM_* environment variables are merged.`,
	Example: `  # Effective configuration as YAML
  quorm config show

  # Include the file the settings were loaded from
  quorm config show --source`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if configShowSource {
			source := configPath
			if source == "" {
				source = "(none, using defaults)"
			}
			fmt.Printf("# config file: %s\n", source)
		}

		out, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}

func init() {
	configShowCmd.Flags().BoolVar(&configShowSource, "source", false, "print the config file the settings came from")
	configCmd.AddCommand(configShowCmd)
}
