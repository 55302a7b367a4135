package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/adanyl0v/go-todo-collections/internal/config"
	"github.com/adanyl0v/go-todo-collections/internal/repository"
	"github.com/adanyl0v/go-todo-collections/internal/repository/postgres"
	"github.com/adanyl0v/go-todo-collections/internal/repository/sqlite"
)

var (
	globalPostgresPool *pgxpool.Pool
	globalSQLiteDB     *sqlx.DB

	globalCollectionRepository repository.CollectionRepository
	globalTaskRepository       repository.TaskRepository
)

func MustConnectStorage() {
	switch config.Global().StorageDriver {
	case config.StorageDriverSQLite:
		mustOpenSQLite()
	default:
		mustConnectPostgres()
	}
}

func DisconnectStorage() {
	if globalPostgresPool != nil {
		globalPostgresPool.Close()
		globalLogger.Info().Msg("disconnected from postgres")
	}
	if globalSQLiteDB != nil {
		err := globalSQLiteDB.Close()
		if err != nil {
			globalLogger.Error().
				Err(err).
				Msg("failed to close sqlite")
			return
		}
		globalLogger.Info().Msg("closed sqlite")
	}
}

func mustConnectPostgres() {
	cfg := config.Global().Postgres
	connURL := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Username, cfg.Password, cfg.Host,
		cfg.Port, cfg.Database, cfg.SSLMode)

	poolCfg, err := pgxpool.ParseConfig(connURL)
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to parse postgres config")
		panic(err)
	}
	poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	globalPostgresPool, err = pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to connect to postgres")
		panic(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.PingTimeout)
	defer cancel()

	err = globalPostgresPool.Ping(ctx)
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to ping postgres")
		panic(err)
	}
	globalLogger.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Msg("connected to postgres")

	err = postgres.Migrate(context.Background(), globalPostgresPool, config.Global().SeedCollections)
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to migrate postgres")
		panic(err)
	}
	globalLogger.Info().Msg("migrated postgres")

	globalCollectionRepository = postgres.NewCollectionRepository(globalPostgresPool)
	globalTaskRepository = postgres.NewTaskRepository(globalPostgresPool)
}

func mustOpenSQLite() {
	cfg := config.Global().SQLite

	var err error
	globalSQLiteDB, err = sqlite.Open(context.Background(), sqlite.FileDSN(cfg.Path))
	if err != nil {
		globalLogger.Error().
			Err(err).
			Str("path", cfg.Path).
			Msg("failed to open sqlite")
		panic(err)
	}
	globalLogger.Info().
		Str("path", cfg.Path).
		Msg("opened sqlite")

	if config.Global().SeedCollections {
		err = sqlite.Seed(context.Background(), globalSQLiteDB)
		if err != nil {
			globalLogger.Error().
				Err(err).
				Msg("failed to seed sqlite")
			panic(err)
		}
	}

	globalCollectionRepository = sqlite.NewCollectionRepository(globalSQLiteDB)
	globalTaskRepository = sqlite.NewTaskRepository(globalSQLiteDB)
}
