// Package migrations embeds the SQL schema migrations so the runner script
// and the integration tests apply exactly the same files.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
