// Package migrations carries the archive schemas and applies them at
// startup. Files run in lexical order, so new migrations get the next
// numeric prefix.
package migrations

import "embed"

// PostgresFS embeds the event and decision archive migrations.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds the sale snapshot migrations.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
