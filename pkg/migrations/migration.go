package migrations

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName holds one document per applied migration
const CollectionName = "_migrations"

// Migration represents an applied database migration
type Migration struct {
	Version     string    `bson:"version"`
	Description string    `bson:"description"`
	AppliedAt   time.Time `bson:"applied_at"`
	Checksum    string    `bson:"checksum"`
}

// MigrationFunc defines a migration function signature
type MigrationFunc func(ctx context.Context, db *mongo.Database) error

// RegisteredMigration holds migration metadata and functions
type RegisteredMigration struct {
	Version     string
	Description string
	Up          MigrationFunc
	Down        MigrationFunc // optional
}

// StatusEntry is one line of the migration status report
type StatusEntry struct {
	Version     string
	Description string
	Applied     bool
	AppliedAt   time.Time
}

// Runner manages database migrations
type Runner struct {
	db         *mongo.Database
	collection *mongo.Collection
	migrations []RegisteredMigration
}

// NewRunner creates a new migration runner
func NewRunner(db *mongo.Database) *Runner {
	return &Runner{
		db:         db,
		collection: db.Collection(CollectionName),
	}
}

// Register adds a migration to the runner
func (r *Runner) Register(migration RegisteredMigration) {
	r.migrations = append(r.migrations, migration)
}

// Run applies every pending migration in registration order
func (r *Runner) Run(ctx context.Context) error {
	if err := r.ensureMigrationsIndex(ctx); err != nil {
		return fmt.Errorf("failed to create migrations index: %w", err)
	}

	applied, err := r.getAppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, migration := range Pending(r.migrations, applied) {
		slog.InfoContext(ctx, "Running migration", "version", migration.Version, "description", migration.Description)

		if err := r.apply(ctx, migration); err != nil {
			return err
		}

		slog.InfoContext(ctx, "Migration completed", "version", migration.Version)
	}
	return nil
}

func (r *Runner) apply(ctx context.Context, migration RegisteredMigration) error {
	session, err := r.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session for migration %s: %w", migration.Version, err)
	}
	defer session.EndSession(ctx)

	return mongo.WithSession(ctx, session, func(sc mongo.SessionContext) error {
		if err := migration.Up(sc, r.db); err != nil {
			return fmt.Errorf("migration %s failed: %w", migration.Version, err)
		}

		record := Migration{
			Version:     migration.Version,
			Description: migration.Description,
			AppliedAt:   time.Now(),
			Checksum:    Checksum(migration),
		}
		if _, err := r.collection.InsertOne(sc, record); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
		}
		return nil
	})
}

// Rollback rolls back the last steps applied migrations
func (r *Runner) Rollback(ctx context.Context, steps int) error {
	applied, err := r.getAppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}
	steps = min(steps, len(applied))

	registered := make(map[string]RegisteredMigration, len(r.migrations))
	for _, m := range r.migrations {
		registered[m.Version] = m
	}

	for i := len(applied) - 1; i >= len(applied)-steps; i-- {
		version := applied[i].Version
		migration, ok := registered[version]
		if !ok {
			return fmt.Errorf("migration %s not found in registered migrations", version)
		}
		if migration.Down == nil {
			slog.WarnContext(ctx, "Migration has no rollback, skipping", "version", version)
			continue
		}

		slog.InfoContext(ctx, "Rolling back migration", "version", version)
		if err := migration.Down(ctx, r.db); err != nil {
			return fmt.Errorf("rollback %s failed: %w", version, err)
		}
		if _, err := r.collection.DeleteOne(ctx, bson.M{"version": version}); err != nil {
			return fmt.Errorf("failed to remove migration record %s: %w", version, err)
		}
	}
	return nil
}

// Status reports every registered migration and whether it was applied
func (r *Runner) Status(ctx context.Context) ([]StatusEntry, error) {
	applied, err := r.getAppliedMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}
	return BuildStatus(r.migrations, applied), nil
}

// Pending returns the registered migrations not yet applied, in registration order
func Pending(registered []RegisteredMigration, applied []Migration) []RegisteredMigration {
	done := make(map[string]bool, len(applied))
	for _, m := range applied {
		done[m.Version] = true
	}

	var pending []RegisteredMigration
	for _, m := range registered {
		if !done[m.Version] {
			pending = append(pending, m)
		}
	}
	return pending
}

// BuildStatus joins registered and applied migrations
func BuildStatus(registered []RegisteredMigration, applied []Migration) []StatusEntry {
	appliedAt := make(map[string]time.Time, len(applied))
	for _, m := range applied {
		appliedAt[m.Version] = m.AppliedAt
	}

	entries := make([]StatusEntry, 0, len(registered))
	for _, m := range registered {
		at, ok := appliedAt[m.Version]
		entries = append(entries, StatusEntry{
			Version:     m.Version,
			Description: m.Description,
			Applied:     ok,
			AppliedAt:   at,
		})
	}
	return entries
}

// Checksum fingerprints a migration's identity
func Checksum(migration RegisteredMigration) string {
	sum := sha256.Sum256([]byte(migration.Version + ":" + migration.Description))
	return hex.EncodeToString(sum[:])
}

func (r *Runner) ensureMigrationsIndex(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "version", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (r *Runner) getAppliedMigrations(ctx context.Context) ([]Migration, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "version", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var migrations []Migration
	if err := cursor.All(ctx, &migrations); err != nil {
		return nil, err
	}
	return migrations, nil
}
