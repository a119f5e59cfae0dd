package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	localMigrations "go-falcon-locations/migrations"
	"go-falcon-locations/pkg/app"
	pkgMigrations "go-falcon-locations/pkg/migrations"
)

func main() {
	var (
		command = flag.String("command", "up", "Migration command: up, down, status")
		steps   = flag.Int("steps", 1, "Number of migrations to roll back (down)")
		dryRun  = flag.Bool("dry-run", false, "Show pending migrations without applying them")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	appCtx, err := app.InitializeApp(ctx, "migrate")
	if err != nil {
		slog.Error("Failed to initialize application", "error", err)
		os.Exit(1)
	}
	defer appCtx.Shutdown(ctx)

	runner := pkgMigrations.NewRunner(appCtx.MongoDB.Database)
	localMigrations.RegisterAll(runner)

	if err := run(ctx, runner, *command, *steps, *dryRun); err != nil {
		slog.Error("Migration command failed", "command", *command, "error", err)
		appCtx.Shutdown(ctx)
		os.Exit(1)
	}
}

func run(ctx context.Context, runner *pkgMigrations.Runner, command string, steps int, dryRun bool) error {
	if dryRun && command != "status" {
		slog.Info("Dry run, no changes will be made")
		return printStatus(ctx, runner)
	}

	switch command {
	case "up":
		if err := runner.Run(ctx); err != nil {
			return err
		}
		slog.Info("All migrations applied")
	case "down":
		if err := runner.Rollback(ctx, max(steps, 1)); err != nil {
			return err
		}
		slog.Info("Rollback completed", "steps", steps)
	case "status":
		return printStatus(ctx, runner)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
	return nil
}

func printStatus(ctx context.Context, runner *pkgMigrations.Runner) error {
	entries, err := runner.Status(ctx)
	if err != nil {
		return err
	}

	pending := 0
	for _, e := range entries {
		state := "pending"
		if e.Applied {
			state = "applied " + e.AppliedAt.Format(time.DateTime)
		} else {
			pending++
		}
		fmt.Printf("%-36s %-50s %s\n", e.Version, e.Description, state)
	}
	fmt.Printf("\n%d migrations, %d pending\n", len(entries), pending)
	return nil
}
