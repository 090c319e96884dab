package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/quorm/quorm/acl"
	"github.com/quorm/quorm/internal/cli"
)

var aclCmd = &cobra.Command{
	Use:   "acl",
	Short: "Access control utilities",
}

var aclTableCmd = &cobra.Command{
	Use:   "table <role.json> [role.json...]",
	Short: "Merge role data files into an effective permission table",
	Long: `Merge role data files into the effective permission table a user
holding all of them would get, including the post-merge overrides on the
User, Team, and Role scopes.

Each file is JSON with the stored role shape: an "id", a "data" object
mapping scopes to booleans or action levels, and an optional "fieldData"
object.`,
	Example: `  # Show the table two roles merge into
  quorm acl table sales.json support.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		merged := acl.NewTable()

		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return cli.GeneralError("reading role file", err)
			}

			var role struct {
				ID        string          `json:"id"`
				Name      string          `json:"name"`
				Data      json.RawMessage `json:"data"`
				FieldData json.RawMessage `json:"fieldData"`
			}
			if err := json.Unmarshal(data, &role); err != nil {
				return cli.GeneralError(fmt.Sprintf("parsing role file %s", path), err)
			}

			r := acl.Role{ID: role.ID, Name: role.Name, Data: role.Data, FieldData: role.FieldData}
			table, err := r.Table()
			if err != nil {
				return cli.GeneralError(fmt.Sprintf("parsing role data in %s", path), err)
			}
			merged.Merge(table)
		}

		merged.Solidify()

		out, err := yaml.Marshal(merged)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}

func init() {
	aclCmd.AddCommand(aclTableCmd)
}
