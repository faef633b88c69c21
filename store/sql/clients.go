package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	gatewaymigrations "github.com/goliatone/go-gateway/migrations"
)

// ClientConfig feeds the go-persistence-bun client for the gateway schema.
type ClientConfig struct {
	Driver      string
	DSN         string
	Debug       bool
	PingTimeout time.Duration
}

func (c ClientConfig) GetDebug() bool {
	return c.Debug
}

func (c ClientConfig) GetDriver() string {
	return c.Driver
}

func (c ClientConfig) GetServer() string {
	return c.DSN
}

func (c ClientConfig) GetPingTimeout() time.Duration {
	if c.PingTimeout <= 0 {
		return 5 * time.Second
	}
	return c.PingTimeout
}

func (c ClientConfig) GetOtelIdentifier() string {
	return "go-gateway"
}

// NewPostgresClient opens a lib/pq connection, wraps it in a persistence
// client on the bun postgres dialect and applies the gateway migrations.
func NewPostgresClient(ctx context.Context, cfg ClientConfig) (*persistence.Client, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("sqlstore: postgres dsn is required")
	}
	cfg.Driver = "postgres"

	sqlDB, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open postgres connection: %w", err)
	}
	client, err := persistence.New(cfg, sqlDB, pgdialect.New())
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: new persistence client: %w", err)
	}
	if err := applyMigrations(ctx, client, gatewaymigrations.DialectPostgres); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// NewSQLiteClient opens a go-sqlite3 connection for embedded and test
// deployments. Shared-cache memory DSNs need a single connection to keep
// every session on the same database.
func NewSQLiteClient(ctx context.Context, cfg ClientConfig) (*persistence.Client, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("sqlstore: sqlite dsn is required")
	}
	cfg.Driver = "sqlite3"

	sqlDB, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open sqlite connection: %w", err)
	}
	if strings.Contains(cfg.DSN, "mode=memory") {
		sqlDB.SetMaxOpenConns(1)
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: new persistence client: %w", err)
	}
	if err := applyMigrations(ctx, client, gatewaymigrations.DialectSQLite); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func applyMigrations(ctx context.Context, client *persistence.Client, dialect string) error {
	_, err := gatewaymigrations.Register(ctx, func(_ context.Context, registered string, _ string, fsys fs.FS) error {
		if registered != dialect {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, gatewaymigrations.WithValidationTargets(dialect))
	if err != nil {
		return fmt.Errorf("sqlstore: register migrations: %w", err)
	}
	if err := client.Migrate(ctx); err != nil {
		return fmt.Errorf("sqlstore: apply migrations: %w", err)
	}
	return nil
}
