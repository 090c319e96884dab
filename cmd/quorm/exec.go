package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	// Drivers for the backends the config layer can point at.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"github.com/quorm/quorm"
	"github.com/quorm/quorm/composer"
	"github.com/quorm/quorm/internal/cli"
	"github.com/quorm/quorm/metadata"
)

var (
	execParamsFile string
	execKind       string
)

var execCmd = &cobra.Command{
	Use:   "exec",
	Short: "Compose a statement and run it against the configured database",
	Long: `Compose a statement from a query parameter file and execute it.

Selects print their rows as JSON lines; writes print the affected row
count. The database connection comes from the configuration file or the
QUORM_DATABASE_* environment variables.`,
	Example: `  # Run a select and print matching rows
  quorm exec --params query.json

  # Run an update
  quorm exec --params update.json --kind update`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if execParamsFile == "" {
			return cli.GeneralError("--params is required", nil)
		}

		data, err := os.ReadFile(execParamsFile)
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

		driver, dsn, err := cfg.DSN()
		if err != nil {
			return cli.ConfigError("resolving database connection", err)
		}
		db, err := sql.Open(driver, dsn)
		if err != nil {
			return cli.DBConnectError("opening database", err)
		}
		defer db.Close()
		if err := db.PingContext(cmd.Context()); err != nil {
			return cli.DBConnectError("connecting to database", err)
		}

		opts := []composer.Option{
			composer.WithMaxTextColumnLength(cfg.Compose.MaxTextColumnLength),
		}
		if driver != "mysql" {
			opts = append(opts, composer.WithLimitStrategy(composer.PostgresLimit{}))
		}
		engine := quorm.NewEngine(registry, db,
			quorm.WithComposer(composer.New(registry, opts...)))

		switch composer.Kind(strings.ToUpper(execKind)) {
		case composer.KindSelect:
			rows, err := engine.Find(cmd.Context(), &params)
			if err != nil {
				return cli.GeneralError("running select", err)
			}
			defer rows.Close()
			return printRows(rows)

		case composer.KindInsert:
			return printResult(engine.Insert(cmd.Context(), &params))
		case composer.KindUpdate:
			return printResult(engine.Update(cmd.Context(), &params))
		case composer.KindDelete:
			return printResult(engine.Delete(cmd.Context(), &params))
		default:
			return cli.GeneralError(fmt.Sprintf("unknown statement kind %q", execKind), nil)
		}
	},
}

// printRows streams the result set as one JSON object per line, keyed by
// the select aliases.
func printRows(rows *sql.Rows) error {
	cols, err := rows.Columns()
	if err != nil {
		return cli.GeneralError("reading result columns", err)
	}

	enc := json.NewEncoder(os.Stdout)
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return cli.GeneralError("scanning row", err)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		if err := enc.Encode(row); err != nil {
			return err
		}
	}
	return rows.Err()
}

func printResult(res sql.Result, err error) error {
	if err != nil {
		return cli.GeneralError("executing statement", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return cli.GeneralError("reading affected row count", err)
	}
	fmt.Printf("%d row(s) affected\n", affected)
	return nil
}

func init() {
	execCmd.Flags().StringVar(&execParamsFile, "params", "", "path to query parameter JSON file")
	execCmd.Flags().StringVar(&execKind, "kind", "select", "statement kind: select, insert, update, delete")
}
