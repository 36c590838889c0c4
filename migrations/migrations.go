// Package migrations embeds the SQL schema for every supported database
// driver. Each driver reads its own sub-directory ("postgres", "sqlite").
package migrations

import "embed"

//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
