// Package migrations embeds the goose SQL migrations applied by
// repomanager.RunMigrations.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
