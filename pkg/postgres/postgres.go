package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const pingTimeout = 5 * time.Second

// Options - параметры пула соединений
type Options struct {
	URL      string
	MaxConns int32
	// RequirePostGIS проверяет, что расширение postgis установлено в базе
	RequirePostGIS bool
}

// NewPostgresDB создает пул соединений PostgreSQL и проверяет доступность базы
func NewPostgresDB(ctx context.Context, opts Options) (*pgxpool.Pool, error) {
	cfgPool, err := pgxpool.ParseConfig(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("ошибка при разборе конфигурации postgres: %w", err)
	}
	if opts.MaxConns > 0 {
		cfgPool.MaxConns = opts.MaxConns
	}

	dbpool, err := pgxpool.NewWithConfig(ctx, cfgPool)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать пул соединений: %w", err)
	}

	if err := check(ctx, dbpool, opts.RequirePostGIS); err != nil {
		dbpool.Close()
		return nil, err
	}
	return dbpool, nil
}

func check(ctx context.Context, dbpool *pgxpool.Pool, requirePostGIS bool) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := dbpool.Ping(ctx); err != nil {
		return fmt.Errorf("не удалось выполнить ping к postgres: %w", err)
	}
	if !requirePostGIS {
		return nil
	}

	// поиск дублей и фильтр по радиусу используют ST_DWithin
	var version string
	if err := dbpool.QueryRow(ctx, "SELECT postgis_version()").Scan(&version); err != nil {
		return fmt.Errorf("расширение postgis недоступно: %w", err)
	}
	return nil
}
