// Package migrations carries the embedded schema migrations and seed data.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed sql
var sqlFS embed.FS

//go:embed seeds
var seedFS embed.FS

// SQL returns the migration files rooted at their directory.
func SQL() fs.FS {
	sub, err := fs.Sub(sqlFS, "sql")
	if err != nil {
		panic(err)
	}
	return sub
}

// Seeds returns the seed files rooted at their directory.
func Seeds() fs.FS {
	sub, err := fs.Sub(seedFS, "seeds")
	if err != nil {
		panic(err)
	}
	return sub
}
