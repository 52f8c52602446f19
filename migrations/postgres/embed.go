// Package migrations embeds the PostgreSQL schema migrations.
package migrations

import "embed"

// FS contains the *_up.sql / *_down.sql scripts, applied in lexical order.
//
//go:embed *.sql
var FS embed.FS
