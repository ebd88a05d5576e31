// Package migrations embeds the SQL schema migrations for the storefront
// database. Files run in lexical order; only *.up.sql files are applied.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
