package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/bluecarbon-mrv/portal/config"
	_ "github.com/lib/pq"
)

const (
	driverName   = "postgres"
	pingTimeout  = 5 * time.Second
	connMaxIdle  = 2 * time.Minute
	retryBackoff = time.Second
)

// PostgresURL builds the connection URL shared by the server and the migrator.
func PostgresURL(cfg config.DatabaseConfig) string {
	sslmode := "disable"
	if cfg.UseSSL {
		sslmode = "require"
	}

	u := &url.URL{
		Scheme:   "postgres",
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		User:     url.UserPassword(cfg.User, cfg.Password),
		Path:     cfg.DBName,
		RawQuery: url.Values{"sslmode": {sslmode}}.Encode(),
	}
	return u.String()
}

// Open connects to Postgres, applies the pool limits from cfg and pings once.
func Open(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	conn, err := sql.Open(driverName, PostgresURL(cfg.Database))
	if err != nil {
		return nil, err
	}
	configurePool(conn, cfg.Database)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping %s:%d: %w", cfg.Database.Host, cfg.Database.Port, err)
	}
	return conn, nil
}

// OpenWithRetry keeps calling Open until it succeeds, ctx is done or the
// configured connect timeout passes.
func OpenWithRetry(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if cfg.Database.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Database.ConnectTimeout)
		defer cancel()
	}

	ticker := time.NewTicker(retryBackoff)
	defer ticker.Stop()

	for {
		conn, err := Open(ctx, cfg)
		if err == nil {
			return conn, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("database not ready: %w", err)
		case <-ticker.C:
		}
	}
}

func configurePool(conn *sql.DB, cfg config.DatabaseConfig) {
	if cfg.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		conn.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	conn.SetConnMaxIdleTime(connMaxIdle)
}
