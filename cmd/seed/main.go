package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/andresuchdata/stockinsight/internal/repository"
	"github.com/andresuchdata/stockinsight/internal/repository/postgres"
	"github.com/andresuchdata/stockinsight/pkg/logger"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

type dbKey struct{}

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "db-url",
		Usage:    "Database connection string",
		Required: true,
		EnvVars:  []string{"DATABASE_URL"},
	}
}

func newDataDirFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "data-dir",
		Usage:   "Directory containing seed CSV files",
		Value:   "./data/seeds",
		EnvVars: []string{"SEED_DATA_DIR"},
	}
}

func newFileFlag() *cli.StringSliceFlag {
	return &cli.StringSliceFlag{
		Name:  "file",
		Usage: "CSV file to load instead of the data dir default",
	}
}

func firstFile(c *cli.Context) string {
	if files := c.StringSlice("file"); len(files) > 0 {
		return files[0]
	}
	return ""
}

func newWorkersFlag() *cli.IntFlag {
	return &cli.IntFlag{
		Name:  "workers",
		Usage: "Number of movement files loaded concurrently",
		Value: 4,
	}
}

func initDB(c *cli.Context) error {
	raw, err := sql.Open("pgx", c.String("db-url"))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := raw.PingContext(c.Context); err != nil {
		raw.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	db := postgres.Wrap(sqlx.NewDb(raw, "pgx"), 0)
	c.Context = context.WithValue(c.Context, dbKey{}, db)
	return nil
}

func closeDB(c *cli.Context) error {
	if db, ok := c.Context.Value(dbKey{}).(*postgres.DB); ok && db != nil {
		return db.Close()
	}
	return nil
}

func seedDB(c *cli.Context) (*postgres.DB, error) {
	db, ok := c.Context.Value(dbKey{}).(*postgres.DB)
	if !ok || db == nil {
		return nil, fmt.Errorf("database connection not found in context")
	}
	return db, nil
}

// transactional loads every batch inside its own database transaction, so a
// file that fails halfway leaves no rows behind.
func transactional(db *postgres.DB) batch {
	return func(ctx context.Context, fn func(ingester) error) error {
		return db.WithTx(ctx, func(tx *sql.Tx) error {
			return fn(repository.NewIngestRepository(tx))
		})
	}
}

// withBatch resolves the connection and hands the loaders a transactional
// batch runner.
func withBatch(action func(c *cli.Context, run batch) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		db, err := seedDB(c)
		if err != nil {
			return err
		}
		return action(c, transactional(db))
	}
}

func dbCommand(name, usage string, flags []cli.Flag, action cli.ActionFunc) *cli.Command {
	return &cli.Command{
		Name:   name,
		Usage:  usage,
		Flags:  append([]cli.Flag{newDBURLFlag()}, flags...),
		Before: initDB,
		After:  closeDB,
		Action: action,
	}
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		logger.Log.Debug().Err(err).Msg("could not load .env file")
	}

	app := &cli.App{
		Name:  "seed",
		Usage: "Create the inventory schema and load seed data",
		Commands: []*cli.Command{
			dbCommand("migrate", "Create inventory tables", nil, func(c *cli.Context) error {
				db, err := seedDB(c)
				if err != nil {
					return err
				}
				return repository.NewIngestRepository(db).Migrate(c.Context)
			}),
			dbCommand("suppliers", "Load suppliers.csv", []cli.Flag{newDataDirFlag(), newFileFlag()}, withBatch(func(c *cli.Context, run batch) error {
				_, err := seedSuppliers(c.Context, run, c.String("data-dir"), firstFile(c))
				return err
			})),
			dbCommand("items", "Load items.csv", []cli.Flag{newDataDirFlag(), newFileFlag()}, withBatch(func(c *cli.Context, run batch) error {
				_, err := seedItems(c.Context, run, c.String("data-dir"), firstFile(c))
				return err
			})),
			dbCommand("movements", "Load stock movement CSV files", []cli.Flag{newDataDirFlag(), newFileFlag(), newWorkersFlag()}, withBatch(func(c *cli.Context, run batch) error {
				_, err := seedMovements(c.Context, run, c.String("data-dir"), c.StringSlice("file"), c.Int("workers"))
				return err
			})),
			dbCommand("all", "Migrate, then load suppliers, items and movements", []cli.Flag{newDataDirFlag(), newWorkersFlag()}, runAll),
			{
				Name:   "pull",
				Usage:  "Download seed CSV files from object storage",
				Flags:  pullFlags(),
				Action: runPull,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("seed failed")
	}
}

func runAll(c *cli.Context) error {
	db, err := seedDB(c)
	if err != nil {
		return err
	}
	dataDir := c.String("data-dir")
	run := transactional(db)

	if err := repository.NewIngestRepository(db).Migrate(c.Context); err != nil {
		return err
	}
	suppliers, err := seedSuppliers(c.Context, run, dataDir, "")
	if err != nil {
		return fmt.Errorf("error seeding suppliers: %w", err)
	}
	items, err := seedItems(c.Context, run, dataDir, "")
	if err != nil {
		return fmt.Errorf("error seeding items: %w", err)
	}
	movements, err := seedMovements(c.Context, run, dataDir, nil, c.Int("workers"))
	if err != nil {
		return fmt.Errorf("error seeding movements: %w", err)
	}

	logger.Log.Info().
		Int("suppliers", suppliers).
		Int("items", items).
		Int("movements", movements).
		Msg("seed completed")
	return nil
}
