package database

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"sun/internal/observability"

	"gorm.io/gorm"
)

const migrationTable = "schema_migrations"

const ensureMigrationTableSQL = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version BIGINT PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Migrator applies the embedded Postgres migrations and records them in schema_migrations.
// Each migration runs in its own transaction together with its bookkeeping row.
type Migrator struct {
	db         *gorm.DB
	migrations []Migration
}

// NewMigrator binds the embedded migrations to db.
func NewMigrator(db *gorm.DB) *Migrator {
	return &Migrator{db: db, migrations: migrations}
}

// Applied lists recorded versions in ascending order. A missing bookkeeping table means none.
func (m *Migrator) Applied(ctx context.Context) ([]int, error) {
	var versions []int
	err := m.db.WithContext(ctx).
		Raw("SELECT version FROM " + migrationTable + " ORDER BY version").
		Scan(&versions).Error
	if err != nil {
		if isMissingTableError(err) {
			return []int{}, nil
		}
		return nil, fmt.Errorf("read applied migrations: %w", err)
	}
	return versions, nil
}

// Pending lists the migrations not yet recorded, in version order.
func (m *Migrator) Pending(ctx context.Context) ([]Migration, error) {
	applied, err := m.Applied(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateAppliedVersions(applied, m.migrations); err != nil {
		return nil, err
	}

	var pending []Migration
	for _, mig := range m.migrations {
		if !slices.Contains(applied, mig.Version) {
			pending = append(pending, mig)
		}
	}
	return pending, nil
}

// Up creates the bookkeeping table when needed and applies every pending migration.
func (m *Migrator) Up(ctx context.Context) error {
	if err := m.db.WithContext(ctx).Exec(ensureMigrationTableSQL).Error; err != nil {
		return fmt.Errorf("ensure %s table: %w", migrationTable, err)
	}

	pending, err := m.Pending(ctx)
	if err != nil {
		return err
	}

	for _, mig := range pending {
		observability.Logger.InfoContext(ctx, "Applying migration", slog.String("migration", mig.String()))
		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(mig.UpScript).Error; err != nil {
				return err
			}
			return tx.Exec("INSERT INTO "+migrationTable+" (version, name) VALUES (?, ?)", mig.Version, mig.Name).Error
		})
		if err != nil {
			return fmt.Errorf("apply migration %s: %w", mig.String(), err)
		}
	}
	return nil
}

// Down reverts one applied migration.
func (m *Migrator) Down(ctx context.Context, version int) error {
	idx := slices.IndexFunc(m.migrations, func(mig Migration) bool { return mig.Version == version })
	if idx < 0 {
		return fmt.Errorf("migration version %d not found", version)
	}
	mig := m.migrations[idx]

	applied, err := m.Applied(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(applied, version) {
		return fmt.Errorf("migration %d has not been applied", version)
	}

	observability.Logger.InfoContext(ctx, "Rolling back migration", slog.String("migration", mig.String()))
	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(mig.DownScript).Error; err != nil {
			return err
		}
		return tx.Exec("DELETE FROM "+migrationTable+" WHERE version = ?", version).Error
	})
	if err != nil {
		return fmt.Errorf("roll back migration %s: %w", mig.String(), err)
	}
	return nil
}

// RunMigrations applies all pending migrations to db.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	return NewMigrator(db).Up(ctx)
}

// RollbackMigration reverts a specific migration by version number.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	return NewMigrator(db).Down(ctx, version)
}

func isMissingTableError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, migrationTable) && strings.Contains(msg, "does not exist")
}

// validateAppliedVersions refuses to run against a database that knows versions this build does not.
func validateAppliedVersions(applied []int, registered []Migration) error {
	var unknown []string
	for _, version := range applied {
		known := slices.ContainsFunc(registered, func(m Migration) bool { return m.Version == version })
		if !known {
			unknown = append(unknown, fmt.Sprintf("%06d", version))
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	return fmt.Errorf("%s contains versions unknown to this build: %s", migrationTable, strings.Join(unknown, ", "))
}
