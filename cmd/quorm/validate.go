package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quorm/quorm/internal/cli"
	"github.com/quorm/quorm/metadata"
)

var validateMetadataDir string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate entity definition files",
	Long:  `Validate entity definition files: YAML syntax, relation types, and required relation keys.`,
	Example: `  # Validate a specific metadata directory
  quorm validate --metadata-dir defs

  # Validate using config file settings
  quorm validate`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := resolveString(validateMetadataDir, cfg.MetadataDir)

		if _, err := os.Stat(dir); err != nil {
			return cli.MetadataParseError(fmt.Sprintf("metadata directory not found: %s", dir), nil)
		}

		registry, err := metadata.LoadDir(dir, cfg.FiscalYearShift)
		if err != nil {
			return cli.MetadataParseError("parsing entity definitions", err)
		}

		types := registry.EntityTypes()
		if !quiet {
			fmt.Printf("Metadata is valid. Found %d entity types:\n", len(types))
			for _, name := range types {
				def, err := registry.EntityDef(name)
				if err != nil {
					return cli.MetadataParseError("loading entity definition", err)
				}
				fmt.Printf("  - %s (%d attributes, %d relations)\n",
					name, len(def.Attributes()), len(def.Relations()))
			}
		}

		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateMetadataDir, "metadata-dir", "", "path to entity definition directory")
}
