// Package migrations holds the journal schema. Importing it, usually for
// side effects, registers the SQL files with the database package.
package migrations

import (
	"embed"

	"github.com/nerrad567/cadbridge/internal/infrastructure/database"
)

//go:embed *.sql
var files embed.FS

func init() {
	database.RegisterSchema(files)
}
