// Package migrations embeds the goose SQL migrations that create the
// back-office schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
