package migrations

import "embed"

// Dir is the directory inside FS that holds the goose files.
const Dir = "."

//go:embed *.sql
var FS embed.FS
