// Package migrations embeds the session schema for the postgres backend.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
