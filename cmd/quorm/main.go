// Package main provides a CLI for working with quorm entity metadata.
//
// The CLI supports:
//   - validate: Check entity definition files for consistency
//   - compose: Render SQL from a query parameter file without a database
//   - acl: Merge role data files into an effective permission table
//   - config: Show effective configuration
//
// This tool is typically run during development to inspect what SQL a
// parameter bag produces and what permissions a set of roles grants.
package main

func main() {
	Execute()
}
