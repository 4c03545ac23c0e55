package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// Open connects to a local sqlite file, or to a hosted libsql database when
// dsn is a libsql://, wss:// or https:// URL, and applies the schema.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	driver, source := driverFor(dsn)

	instance, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == "sqlite" {
		// sqlite allows a single writer; serialising connections avoids SQLITE_BUSY
		instance.SetMaxOpenConns(1)
	}

	if err := instance.PingContext(ctx); err != nil {
		instance.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Debug().Str("driver", driver).Msg("database connection successful")

	if err := migrate(ctx, instance); err != nil {
		instance.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info().Msg("migrations completed successfully")

	return instance, nil
}

func driverFor(dsn string) (driver, source string) {
	for _, scheme := range []string{"libsql://", "wss://", "https://"} {
		if strings.HasPrefix(dsn, scheme) {
			return "libsql", dsn
		}
	}
	return "sqlite", formatDBPath(dsn)
}

func formatDBPath(path string) string {
	path = strings.TrimPrefix(path, "file:")

	// Add pragmas for better performance and safety
	// See: https://pkg.go.dev/modernc.org/sqlite#pkg-overview
	params := url.Values{}
	params.Set("mode", "rwc")
	params.Set("_time_format", "sqlite")
	params.Set("_pragma", "foreign_keys(1)")
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", "synchronous(NORMAL)")
	params.Add("_pragma", "busy_timeout(5000)")

	return "file:" + path + "?" + params.Encode()
}

func migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS domains (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	domain TEXT UNIQUE NOT NULL,
	name TEXT,
	created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS short_links (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	domain_id INTEGER NOT NULL,
	slug TEXT NOT NULL,
	name TEXT,
	target_url TEXT NOT NULL,
	is_active INTEGER NOT NULL DEFAULT 1,
	use_ab_test INTEGER NOT NULL DEFAULT 0,
	append_utm INTEGER NOT NULL DEFAULT 0,
	utm_source TEXT,
	utm_medium TEXT,
	utm_campaign TEXT,
	utm_term TEXT,
	utm_content TEXT,
	pixel_id TEXT,
	gtm_id TEXT,
	ga_id TEXT,
	created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(domain_id, slug),
	FOREIGN KEY(domain_id) REFERENCES domains(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS link_targets (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	short_link_id INTEGER NOT NULL,
	target_url TEXT NOT NULL,
	weight INTEGER NOT NULL DEFAULT 1 CHECK (weight > 0),
	name TEXT,
	is_active INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY(short_link_id) REFERENCES short_links(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS param_utm_rules (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	short_link_id INTEGER NOT NULL,
	param_pattern TEXT NOT NULL,
	utm_source TEXT,
	utm_medium TEXT,
	utm_campaign TEXT,
	utm_term TEXT,
	utm_content TEXT,
	created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(short_link_id, param_pattern),
	FOREIGN KEY(short_link_id) REFERENCES short_links(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS click_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	short_link_id INTEGER,
	param TEXT,
	ip TEXT,
	user_agent TEXT,
	referer TEXT,
	device TEXT,
	utm_source TEXT,
	utm_medium TEXT,
	utm_campaign TEXT,
	clicked_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY(short_link_id) REFERENCES short_links(id) ON DELETE SET NULL
);

CREATE TABLE IF NOT EXISTS bio_pages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	domain_id INTEGER NOT NULL,
	slug TEXT NOT NULL,
	title TEXT,
	bio TEXT,
	logo_url TEXT,
	theme TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(domain_id, slug),
	FOREIGN KEY(domain_id) REFERENCES domains(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS bio_links (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	bio_page_id INTEGER NOT NULL,
	title TEXT NOT NULL,
	url TEXT NOT NULL,
	icon TEXT,
	sort_order INTEGER NOT NULL DEFAULT 0,
	is_active INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY(bio_page_id) REFERENCES bio_pages(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS qr_settings (
	short_link_id INTEGER PRIMARY KEY,
	fg_color TEXT,
	bg_color TEXT,
	size INTEGER,
	FOREIGN KEY(short_link_id) REFERENCES short_links(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_short_links_slug ON short_links(domain_id, slug) WHERE is_active = 1;
CREATE INDEX IF NOT EXISTS idx_link_targets_link_id ON link_targets(short_link_id);
CREATE INDEX IF NOT EXISTS idx_param_utm_rules_link_id ON param_utm_rules(short_link_id);
CREATE INDEX IF NOT EXISTS idx_click_logs_link_id ON click_logs(short_link_id);
CREATE INDEX IF NOT EXISTS idx_click_logs_clicked_at ON click_logs(clicked_at);
CREATE INDEX IF NOT EXISTS idx_bio_links_page_id ON bio_links(bio_page_id);
`
