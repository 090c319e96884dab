package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quorm/quorm/composer"
	"github.com/quorm/quorm/internal/cli"
	"github.com/quorm/quorm/metadata"
)

var (
	composeParamsFile string
	composeKind       string
	composeDialect    string
)

var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Render SQL from a query parameter file",
	Long: `Render the SQL a query parameter bag produces, without a database.

The parameter file is JSON with the same shape as the composer's Params
type. The entity definitions come from the configured metadata directory.`,
	Example: `  # Compose a SELECT from a parameter file
  quorm compose --params query.json

  # Compose for PostgreSQL limit syntax
  quorm compose --params query.json --dialect postgres`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if composeParamsFile == "" {
			return cli.GeneralError("--params is required", nil)
		}

		data, err := os.ReadFile(composeParamsFile)
		if err != nil {
			return cli.GeneralError("reading params file", err)
		}
		var params composer.Params
		if err := json.Unmarshal(data, &params); err != nil {
			return cli.GeneralError("parsing params file", err)
		}
		if params.TimeZone == "" {
			params.TimeZone = cfg.Compose.TimeZone
		}

		registry, err := metadata.LoadDir(cfg.MetadataDir, cfg.FiscalYearShift)
		if err != nil {
			return cli.MetadataParseError("parsing entity definitions", err)
		}

		opts := []composer.Option{
			composer.WithMaxTextColumnLength(cfg.Compose.MaxTextColumnLength),
		}
		if composeDialect == "postgres" {
			opts = append(opts, composer.WithLimitStrategy(composer.PostgresLimit{}))
		}
		c := composer.New(registry, opts...)

		kind := composer.Kind(strings.ToUpper(composeKind))
		sql, err := c.Compose(kind, &params)
		if err != nil {
			return cli.GeneralError("composing query", err)
		}

		fmt.Println(sql)
		return nil
	},
}

func init() {
	composeCmd.Flags().StringVar(&composeParamsFile, "params", "", "path to query parameter JSON file")
	composeCmd.Flags().StringVar(&composeKind, "kind", "select", "statement kind: select, insert, update, delete")
	composeCmd.Flags().StringVar(&composeDialect, "dialect", "mysql", "limit dialect: mysql or postgres")
}
