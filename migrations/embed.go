// Package migrations встраивает SQL-миграции в бинарник сервиса.
package migrations

import "embed"

// PostgresMigrations миграции истории запусков для PostgreSQL
//
//go:embed postgres/*.sql
var PostgresMigrations embed.FS
