// Package migrations embeds the schema migrations and seed files.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed sql/*.sql
var sqlFS embed.FS

//go:embed seeds/*.sql
var seedsFS embed.FS

// Schema returns the goose migrations as a flat filesystem.
func Schema() fs.FS {
	sub, err := fs.Sub(sqlFS, "sql")
	if err != nil {
		panic(err)
	}
	return sub
}

// Seeds returns the seed files as a flat filesystem.
func Seeds() fs.FS {
	sub, err := fs.Sub(seedsFS, "seeds")
	if err != nil {
		panic(err)
	}
	return sub
}
