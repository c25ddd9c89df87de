// Package migrations holds the SQL applied to every organisation schema.
package migrations

import "embed"

// FS is the set of numbered migrations compiled into the binary.
//
//go:embed *.sql
var FS embed.FS
