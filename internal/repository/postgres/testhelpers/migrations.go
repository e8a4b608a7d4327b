package testhelpers

import (
	"database/sql"
	"fmt"
	"io/fs"
	"sort"
)

// ApplyMigrations applies all .up.sql migration files from fsys
func ApplyMigrations(db *sql.DB, fsys fs.FS) error {
	upFiles, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(upFiles)

	for _, file := range upFiles {
		content, err := fs.ReadFile(fsys, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
	}

	return nil
}
