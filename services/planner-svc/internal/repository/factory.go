package repository

import (
	"context"
	"fmt"

	"energia/migrations"
	"energia/pkg/config"
	"energia/pkg/database"
	"energia/pkg/logger"
)

// Repositories контейнер репозиториев
type Repositories struct {
	Runs RunRepository
	db   *database.PostgresDB // Для закрытия при shutdown
}

// Close закрывает соединения
func (r *Repositories) Close() {
	if r.db != nil {
		r.db.Close()
	}
}

// Persistent true, если история хранится в базе
func (r *Repositories) Persistent() bool {
	return r.db != nil
}

// NewRepositories создаёт репозитории на основе конфигурации: Postgres,
// если задан хост базы, иначе in-memory.
func NewRepositories(ctx context.Context, cfg *config.DatabaseConfig) (*Repositories, error) {
	if !cfg.Enabled() {
		if cfg.Host != "" {
			return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
		}
		logger.Log.Info("Database is not configured, run history is kept in memory")
		return &Repositories{Runs: NewMemoryRunRepository()}, nil
	}

	db, err := database.NewPostgresDB(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := database.RunMigrations(ctx, db.Pool(), cfg, migrations.PostgresMigrations, "postgres"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Repositories{
		Runs: NewPostgresRunRepository(db),
		db:   db,
	}, nil
}
