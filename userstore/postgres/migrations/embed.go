// Package migrations bundles the goose SQL migrations of the postgres user store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
