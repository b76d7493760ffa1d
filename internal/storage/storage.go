// Package storage persists crawl results into Postgres so the downstream
// restaurant-data pipeline can pick up candidate menu pages.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/Adriangg08/carta-mcp/internal/config"
	"github.com/Adriangg08/carta-mcp/pkg/types"
)

// Writer stores crawl results via database/sql.
type Writer struct {
	db          *sql.DB
	autoMigrate bool
}

// NewWriter opens the configured database and, when auto_migrate is on,
// creates the schema.
func NewWriter(cfg config.SQLConfig) (*Writer, error) {
	if cfg.Driver == "" || cfg.DSN == "" {
		return nil, errors.New("sql config missing driver or dsn")
	}
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open sql connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sql connection: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime.Duration > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime.Duration)
	}

	writer := &Writer{db: db, autoMigrate: cfg.AutoMigrate}
	if cfg.AutoMigrate {
		if err := writer.ensureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return writer, nil
}

// SaveResult records the crawl summary and upserts one row per discovered
// URL, flagging the ones that survived filtering.
func (w *Writer) SaveResult(ctx context.Context, res *types.CrawlResult) error {
	if w == nil || w.db == nil {
		return nil
	}
	if res == nil {
		return errors.New("nil crawl result")
	}
	if err := w.saveResult(ctx, res); err != nil {
		if w.autoMigrate && isUndefinedTableErr(err) {
			if schemaErr := w.ensureSchema(ctx); schemaErr != nil {
				return fmt.Errorf("ensure schema: %w", schemaErr)
			}
			if retryErr := w.saveResult(ctx, res); retryErr != nil {
				return fmt.Errorf("save crawl result: %w", retryErr)
			}
			return nil
		}
		return fmt.Errorf("save crawl result: %w", err)
	}
	return nil
}

func (w *Writer) saveResult(ctx context.Context, res *types.CrawlResult) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	finishedAt := time.Now()
	if _, err := tx.ExecContext(ctx, `
        INSERT INTO crawls (domain, urls_found, filtered_count, timed_out, finished_at)
        VALUES ($1,$2,$3,$4,$5)`,
		res.Domain, res.URLsFound, len(res.FilteredURLs), res.TimedOut, finishedAt,
	); err != nil {
		return err
	}

	matched := make(map[string]struct{}, len(res.FilteredURLs))
	for _, u := range res.FilteredURLs {
		matched[u] = struct{}{}
	}

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO menu_candidates (domain, url, matched, discovered_at)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (url) DO UPDATE SET
            matched = EXCLUDED.matched,
            discovered_at = EXCLUDED.discovered_at`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, u := range res.URLs {
		_, isMatch := matched[u]
		if _, err := stmt.ExecContext(ctx, res.Domain, u, isMatch, finishedAt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Close closes the underlying DB connection.
func (w *Writer) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}

func (w *Writer) ensureSchema(ctx context.Context) error {
	schemaCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS crawls (
		    id BIGSERIAL PRIMARY KEY,
		    domain TEXT NOT NULL,
		    urls_found INT NOT NULL,
		    filtered_count INT NOT NULL,
		    timed_out BOOLEAN NOT NULL,
		    finished_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS menu_candidates (
		    domain TEXT NOT NULL,
		    url TEXT PRIMARY KEY,
		    matched BOOLEAN NOT NULL,
		    discovered_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_menu_candidates_domain ON menu_candidates (domain)`,
	}
	for _, stmt := range stmts {
		if _, err := w.db.ExecContext(schemaCtx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func isUndefinedTableErr(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "42P01"
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "relation") && strings.Contains(lower, "does not exist")
}
