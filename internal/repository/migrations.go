package repository

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed migrations
var migrations embed.FS

// Migrations returns the embedded schema for a SQL driver ("postgres" or "sqlite").
func Migrations(driver string) (fs.FS, string, error) {
	switch driver {
	case "postgres", "sqlite":
		return migrations, "migrations/" + driver, nil
	default:
		return nil, "", fmt.Errorf("no migrations for driver %q", driver)
	}
}
