package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/oss377/maneBot/core/logger"
)

// RunMigrations applies every pending up migration found at the root of source.
func RunMigrations(cfg Config, source fs.FS) error {
	ctx := context.Background()
	dsn := cfg.DSN()
	if err := WaitForPostgres(dsn, 30*time.Second); err != nil {
		logger.Error(ctx, logger.CompMigrate, "db.migrate", logger.Err(err))
		return fmt.Errorf("database not ready: %w", err)
	}

	files := listMigrationFiles(source)
	preview, truncated := logger.SummarizeStrings(files, 6)
	logger.Debug(ctx, logger.CompMigrate, "resolve",
		slog.Int("files_total", len(files)),
		slog.String("files_preview", preview),
		slog.Bool("files_truncated", truncated),
	)

	driver, err := iofs.New(source, ".")
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", driver, dsn)
	if err != nil {
		logger.Error(ctx, logger.CompMigrate, "db.migrate", logger.Err(err))
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer m.Close()

	fromVer, _, _ := m.Version()

	start := time.Now()
	upErr := m.Up()
	took := logger.Took(start)

	switch {
	case upErr == nil:
	case errors.Is(upErr, migrate.ErrNoChange):
		logger.Info(ctx, logger.CompMigrate, "summary",
			slog.Uint64("from_ver", uint64(fromVer)),
			slog.Uint64("to_ver", uint64(fromVer)),
			slog.Int("files", 0),
			slog.Duration("duration", took),
		)
		return nil
	default:
		logger.Error(ctx, logger.CompMigrate, "apply", logger.Err(upErr), slog.Duration("duration", took))
		return fmt.Errorf("migration execution failed: %w", upErr)
	}

	toVer, _, _ := m.Version()
	applied := selectApplied(files, uint64(fromVer), uint64(toVer))
	logger.Info(ctx, logger.CompMigrate, "summary",
		slog.Uint64("from_ver", uint64(fromVer)),
		slog.Uint64("to_ver", uint64(toVer)),
		slog.Int("files", len(applied)),
		slog.String("files_preview", strings.Join(applied, ", ")),
		slog.Duration("duration", took),
	)
	return nil
}

func listMigrationFiles(source fs.FS) []string {
	entries, err := fs.ReadDir(source, ".")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

func parseVersion(name string) uint64 {
	prefix, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(prefix, 10, 64)
	return v
}

func selectApplied(files []string, from, to uint64) []string {
	var out []string
	for _, f := range files {
		if v := parseVersion(f); v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}
