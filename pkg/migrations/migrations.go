package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"

	"github.com/bd2kgenomics/spinnaker/internal/config"
	"github.com/bd2kgenomics/spinnaker/pkg/log"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pressly/goose/v3"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed sql
var embedded embed.FS

// MigrateStore applies the schema migrations. Migrations are read from the configured
// folder when set, otherwise the ones shipped with the binary for the database type are
// used.
func MigrateStore(db *gorm.DB, cfg *config.Config) error {
	goose.SetLogger(log.GooseLogger{})

	dialect := "postgres"
	if cfg.Database.Type == config.DatabaseTypeSqlite {
		dialect = "sqlite3"
	}

	fsys, dir, err := source(cfg.Service.MigrationFolder, dialect)
	if err != nil {
		return err
	}
	goose.SetBaseFS(fsys)

	if err := goose.SetDialect(dialect); err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	if err := goose.Up(sqlDB, dir); err != nil {
		return fmt.Errorf("schema migrations: %w", err)
	}

	return nil
}

func source(folder, dialect string) (fs.FS, string, error) {
	if folder == "" {
		return embedded, path.Join("sql", dialect), nil
	}

	fi, err := os.Stat(folder)
	if err != nil {
		return nil, "", err
	}

	if !fi.Mode().IsDir() {
		return nil, "", fmt.Errorf("failed to open migration folder: %s is not a folder", folder)
	}

	return os.DirFS(folder), ".", nil
}

// MigrateRiver creates or upgrades the tables of the job queue.
func MigrateRiver(ctx context.Context, pool *pgxpool.Pool) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return err
	}

	res, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil)
	if err != nil {
		return fmt.Errorf("river migrations: %w", err)
	}

	for _, version := range res.Versions {
		zap.S().Named("migrations").Infow("river migration applied", "version", version.Version)
	}
	return nil
}
