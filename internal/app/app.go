package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/poofware/backoffice-service/internal/config"
	"github.com/poofware/backoffice-service/internal/utils"
)

const (
	maxRetries     = 5
	connectTimeout = 5 * time.Second
	initialBackoff = 500 * time.Millisecond
)

type App struct {
	Config *config.Config
	DB     *pgxpool.Pool
}

// NewApp connects to Postgres with exponential backoff and applies the
// embedded migrations. With the isolated-schema flag every CI run gets its
// own schema, created on first use.
func NewApp(cfg *config.Config) (*App, error) {
	effectiveURL := cfg.DBUrl
	if cfg.LDFlag_UsingIsolatedSchema {
		schema, err := utils.IsolatedSchemaName(cfg.UniqueRunnerID, cfg.UniqueRunNumber)
		if err != nil {
			return nil, err
		}
		if err := ensureSchema(cfg.DBUrl, schema); err != nil {
			return nil, err
		}
		effectiveURL, err = utils.WithSearchPath(cfg.DBUrl, schema)
		if err != nil {
			return nil, err
		}
		utils.Logger.Infof("Using isolated schema for backoffice-service; schema=%s", schema)
	} else {
		utils.Logger.Info("Isolated schema disabled; using public schema for backoffice-service.")
	}

	dbPool, err := connectWithBackoff(effectiveURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := Migrate(ctx, dbPool); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("applying migrations: %w", err)
	}

	return &App{
		Config: cfg,
		DB:     dbPool,
	}, nil
}

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
		utils.Logger.Info("backoffice-service DB connection closed.")
	}
}

func connectWithBackoff(databaseURL string) (*pgxpool.Pool, error) {
	var (
		dbPool  *pgxpool.Pool
		err     error
		backoff = initialBackoff
	)
	for i := 1; i <= maxRetries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		dbPool, err = newDBPool(ctx, databaseURL)
		if err == nil {
			err = dbPool.Ping(ctx)
			if err != nil {
				dbPool.Close()
			}
		}
		cancel()
		if err == nil {
			utils.Logger.Infof("backoffice-service connected to DB on attempt %d", i)
			return dbPool, nil
		}

		utils.Logger.WithError(err).Warnf(
			"Failed DB connect on attempt %d/%d. Retrying in %v...",
			i, maxRetries, backoff,
		)
		if i == maxRetries {
			break
		}
		time.Sleep(backoff)
		backoff *= 2
	}
	return nil, fmt.Errorf("unable to connect after %d attempts: %w", maxRetries, err)
}

func newDBPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	cfg.MaxConnIdleTime = 2 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second
	return pgxpool.ConnectConfig(ctx, cfg)
}

// ensureSchema creates schema through a short-lived pool on the base URL.
// The name has already been validated by utils.IsolatedSchemaName.
func ensureSchema(baseURL, schema string) error {
	pool, err := connectWithBackoff(baseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if _, err := pool.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS "`+schema+`"`); err != nil {
		return fmt.Errorf("creating schema %s: %w", schema, err)
	}
	return nil
}
