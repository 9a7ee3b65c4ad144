// Package migrations — схема notifier для golang-migrate.
package migrations

import "embed"

// FS содержит каталоги mysql/ и postgres/.
//
//go:embed mysql/*.sql postgres/*.sql
var FS embed.FS
