// Package migrations — версионная схема marketplace для golang-migrate.
package migrations

import "embed"

// FS содержит каталоги mysql/ и postgres/, имя каталога совпадает с DB_DRIVER.
//
//go:embed mysql/*.sql postgres/*.sql
var FS embed.FS
