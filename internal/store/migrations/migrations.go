// Package migrations embeds the SQL migrations for the profile state database.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
