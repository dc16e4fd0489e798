// Package postgres provides the Postgres-backed link store.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"linkstash/internal/links"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for link rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// LinkStore persists link rows in Postgres. Dedup of active rows relies
// on the partial unique index on (owner_key, url) where deleted_at is
// null, so a concurrent insert race for the same pair loses cleanly.
type LinkStore struct {
	pool  pgxPool
	table string
}

// NewLinkStore connects a pool using the provided config.
func NewLinkStore(ctx context.Context, cfg Config) (*LinkStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "links"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &LinkStore{pool: pool, table: table}, nil
}

// NewLinkStoreWithPool constructs a store from an existing pool
// (primarily for testing).
func NewLinkStoreWithPool(pool pgxPool, table string) (*LinkStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "links"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &LinkStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *LinkStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Insert stores a new link. The bool is false when an active row with
// the same (owner, url) already exists and nothing was written.
func (s *LinkStore) Insert(ctx context.Context, link links.NewLink) (links.Link, bool, error) {
	var faviconColor []byte
	if link.FaviconRGB != nil {
		data, err := json.Marshal(link.FaviconRGB)
		if err != nil {
			return links.Link{}, false, fmt.Errorf("marshal favicon color: %w", err)
		}
		faviconColor = data
	}

	query := fmt.Sprintf(`
INSERT INTO %s (owner_key, url, domain, title, description, favicon_url, favicon_color, favicon_color_name)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (owner_key, url) WHERE deleted_at IS NULL DO NOTHING
RETURNING id, saved_at`, s.table)

	stored := links.Link{
		Owner:       link.Owner,
		URL:         link.URL,
		Domain:      link.Domain,
		Title:       link.Title,
		Description: link.Description,
		FaviconURL:  link.FaviconURL,
		FaviconRGB:  link.FaviconRGB,
		FaviconName: link.FaviconName,
	}
	err := s.pool.QueryRow(ctx, query,
		link.Owner,
		link.URL,
		link.Domain,
		nullable(link.Title),
		nullable(link.Description),
		nullable(link.FaviconURL),
		faviconColor,
		nullable(link.FaviconName),
	).Scan(&stored.ID, &stored.SavedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return links.Link{}, false, nil
	}
	if err != nil {
		return links.Link{}, false, fmt.Errorf("insert link: %w", err)
	}
	return stored, true, nil
}

// ExistsActive reports whether the owner already has an active link for
// this URL.
func (s *LinkStore) ExistsActive(ctx context.Context, owner, url string) (bool, error) {
	query := fmt.Sprintf(
		`SELECT EXISTS (SELECT 1 FROM %s WHERE owner_key = $1 AND url = $2 AND deleted_at IS NULL)`,
		s.table)
	var exists bool
	if err := s.pool.QueryRow(ctx, query, owner, url).Scan(&exists); err != nil {
		return false, fmt.Errorf("check existing link: %w", err)
	}
	return exists, nil
}

// ListActive returns the owner's active links, most recently saved
// first.
func (s *LinkStore) ListActive(ctx context.Context, owner string) ([]links.Link, error) {
	query := fmt.Sprintf(`
SELECT id, owner_key, url, domain, title, description, favicon_url, favicon_color, favicon_color_name, saved_at, deleted_at
FROM %s
WHERE owner_key = $1 AND deleted_at IS NULL
ORDER BY saved_at DESC`, s.table)
	return s.queryLinks(ctx, query, owner)
}

// ListDeleted returns the owner's recycle bin, most recently deleted
// first.
func (s *LinkStore) ListDeleted(ctx context.Context, owner string) ([]links.Link, error) {
	query := fmt.Sprintf(`
SELECT id, owner_key, url, domain, title, description, favicon_url, favicon_color, favicon_color_name, saved_at, deleted_at
FROM %s
WHERE owner_key = $1 AND deleted_at IS NOT NULL
ORDER BY deleted_at DESC`, s.table)
	return s.queryLinks(ctx, query, owner)
}

func (s *LinkStore) queryLinks(ctx context.Context, query, owner string) ([]links.Link, error) {
	rows, err := s.pool.Query(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	defer rows.Close()

	var out []links.Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate links: %w", err)
	}
	return out, nil
}

func scanLink(row pgx.Row) (links.Link, error) {
	var (
		link         links.Link
		title        *string
		description  *string
		faviconURL   *string
		faviconColor []byte
		faviconName  *string
	)
	err := row.Scan(
		&link.ID,
		&link.Owner,
		&link.URL,
		&link.Domain,
		&title,
		&description,
		&faviconURL,
		&faviconColor,
		&faviconName,
		&link.SavedAt,
		&link.DeletedAt,
	)
	if err != nil {
		return links.Link{}, fmt.Errorf("scan link: %w", err)
	}
	link.Title = deref(title)
	link.Description = deref(description)
	link.FaviconURL = deref(faviconURL)
	link.FaviconName = deref(faviconName)
	if len(faviconColor) > 0 {
		var rgb links.RGB
		if err := json.Unmarshal(faviconColor, &rgb); err != nil {
			return links.Link{}, fmt.Errorf("unmarshal favicon color: %w", err)
		}
		link.FaviconRGB = &rgb
	}
	return link, nil
}

// SoftDelete stamps deleted_at only when it is currently null.
// Re-deleting an already-binned link is a no-op so the retention clock
// never resets.
func (s *LinkStore) SoftDelete(ctx context.Context, owner string, id int64, at time.Time) error {
	query := fmt.Sprintf(
		`UPDATE %s SET deleted_at = $3 WHERE id = $1 AND owner_key = $2 AND deleted_at IS NULL`,
		s.table)
	if _, err := s.pool.Exec(ctx, query, id, owner, at); err != nil {
		return fmt.Errorf("soft delete link: %w", err)
	}
	return nil
}

// Restore clears deleted_at unconditionally.
func (s *LinkStore) Restore(ctx context.Context, owner string, id int64) error {
	query := fmt.Sprintf(
		`UPDATE %s SET deleted_at = NULL WHERE id = $1 AND owner_key = $2`,
		s.table)
	tag, err := s.pool.Exec(ctx, query, id, owner)
	if err != nil {
		return fmt.Errorf("restore link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return links.ErrNotFound
	}
	return nil
}

// PurgeExcess hard-deletes all but the keep most-recently-deleted links
// for the owner.
func (s *LinkStore) PurgeExcess(ctx context.Context, owner string, keep int) error {
	query := fmt.Sprintf(`
DELETE FROM %s
WHERE owner_key = $1 AND deleted_at IS NOT NULL AND id NOT IN (
	SELECT id FROM %s
	WHERE owner_key = $1 AND deleted_at IS NOT NULL
	ORDER BY deleted_at DESC
	LIMIT $2
)`, s.table, s.table)
	if _, err := s.pool.Exec(ctx, query, owner, keep); err != nil {
		return fmt.Errorf("purge excess deleted links: %w", err)
	}
	return nil
}

// Delete permanently removes a link.
func (s *LinkStore) Delete(ctx context.Context, owner string, id int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND owner_key = $2`, s.table)
	tag, err := s.pool.Exec(ctx, query, id, owner)
	if err != nil {
		return fmt.Errorf("delete link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return links.ErrNotFound
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
