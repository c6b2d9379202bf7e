// Command migrate manages the schema of the configured store backend.
//
//	migrate up              apply pending Postgres migrations
//	migrate auto            run GORM AutoMigrate (postgres, sqlite)
//	migrate status          show applied and pending migrations
//	migrate down <version>  revert one Postgres migration
//	migrate indexes         create the MongoDB indexes
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"sun/internal/config"
	"sun/internal/database"
	"sun/internal/observability"
	"sun/internal/repository"

	"gorm.io/gorm"
)

type command func(ctx context.Context, cfg *config.Config, args []string) error

var commands = map[string]command{
	"up":      withSQL(up),
	"auto":    withSQL(auto),
	"status":  withSQL(status),
	"down":    withSQL(down),
	"indexes": indexes,
}

func main() {
	flag.Parse()
	if err := run(flag.Args()); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	if len(args) < 1 {
		return usage()
	}
	cmd, ok := commands[strings.ToLower(strings.TrimSpace(args[0]))]
	if !ok {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	observability.Configure(cfg.Env)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	return cmd(ctx, cfg, args[1:])
}

func usage() error {
	return fmt.Errorf("usage: migrate <up|auto|status|down <version>|indexes>")
}

// withSQL opens the relational store without applying the schema and closes it afterwards.
func withSQL(fn func(ctx context.Context, db *gorm.DB, cfg *config.Config, args []string) error) command {
	return func(ctx context.Context, cfg *config.Config, args []string) error {
		db, err := database.Open(cfg)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}()
		return fn(ctx, db, cfg, args)
	}
}

func up(ctx context.Context, db *gorm.DB, _ *config.Config, _ []string) error {
	if dialect := db.Dialector.Name(); dialect != "postgres" {
		return fmt.Errorf("sql migrations target postgres; use \"auto\" for %s", dialect)
	}
	if err := database.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("sql migrations failed: %w", err)
	}
	log.Println("sql migrations applied")
	return nil
}

func auto(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
	cfg.DBSchemaMode = database.SchemaModeAuto
	if err := database.ApplySchema(ctx, db, cfg); err != nil {
		return fmt.Errorf("auto schema apply failed: %w", err)
	}
	log.Println("automigrations applied")
	return nil
}

func status(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
	st, err := database.GetSchemaStatus(ctx, db, cfg)
	if err != nil {
		return fmt.Errorf("schema status failed: %w", err)
	}
	log.Printf("dialect=%s mode=%s env=%s run_sql=%t run_auto=%t applied=%d pending=%d",
		st.Dialect, st.Mode, st.Environment, st.WillRunSQL, st.WillRunAutoMigrate,
		len(st.AppliedVersions), len(st.PendingMigrations))
	for _, m := range st.PendingMigrations {
		log.Printf("pending: %s", m.String())
	}
	return nil
}

func down(ctx context.Context, db *gorm.DB, _ *config.Config, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: migrate down <version>")
	}
	version, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid version %q: %w", args[0], err)
	}
	if err := database.RollbackMigration(ctx, db, version); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}
	log.Printf("rolled back migration %d", version)
	return nil
}

func indexes(ctx context.Context, cfg *config.Config, _ []string) error {
	if cfg.StoreBackend != repository.BackendMongo {
		return fmt.Errorf("indexes applies to the mongo backend, STORE_BACKEND is %q", cfg.StoreBackend)
	}
	client, err := database.ConnectMongo(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	store := repository.NewMongoStore(client, cfg.MongoDatabase)
	defer func() { _ = store.Close(ctx) }()

	if err := store.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}
	log.Printf("mongo indexes ensured on %s", cfg.MongoDatabase)
	return nil
}
