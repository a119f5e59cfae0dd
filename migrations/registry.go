package migrations

import (
	"fmt"
	"slices"
	"strings"

	"go-falcon-locations/pkg/migrations"
)

// Migration is one schema step for the locations database. Versions sort lexically, so
// they carry a zero-padded sequence prefix.
type Migration struct {
	Version     string
	Description string
	Up          migrations.MigrationFunc
	Down        migrations.MigrationFunc
}

var registeredMigrations []migrations.RegisteredMigration

// Register adds a migration from an init func. A malformed or duplicate version panics.
func Register(migration Migration) {
	next, err := appendMigration(registeredMigrations, migration)
	if err != nil {
		panic(err)
	}
	registeredMigrations = next
}

func appendMigration(registered []migrations.RegisteredMigration, migration Migration) ([]migrations.RegisteredMigration, error) {
	if strings.TrimSpace(migration.Version) == "" {
		return nil, fmt.Errorf("migration %q has no version", migration.Description)
	}
	if migration.Up == nil {
		return nil, fmt.Errorf("migration %s has no up step", migration.Version)
	}
	if slices.ContainsFunc(registered, func(m migrations.RegisteredMigration) bool { return m.Version == migration.Version }) {
		return nil, fmt.Errorf("migration %s registered twice", migration.Version)
	}
	return append(registered, migrations.RegisteredMigration{
		Version:     migration.Version,
		Description: migration.Description,
		Up:          migration.Up,
		Down:        migration.Down,
	}), nil
}

// ordered returns the registered migrations sorted by version
func ordered(registered []migrations.RegisteredMigration) []migrations.RegisteredMigration {
	out := slices.Clone(registered)
	slices.SortFunc(out, func(a, b migrations.RegisteredMigration) int {
		return strings.Compare(a.Version, b.Version)
	})
	return out
}

// RegisterAll hands every migration to runner in version order
func RegisterAll(runner *migrations.Runner) {
	for _, m := range ordered(registeredMigrations) {
		runner.Register(m)
	}
}
