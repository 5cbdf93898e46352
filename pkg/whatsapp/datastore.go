package whatsapp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"go.mau.fi/whatsmeow/store/sqlstore"

	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/log"
)

// OpenDatastore opens the pairing credential store and upgrades its schema.
func OpenDatastore(ctx context.Context, cfg Config) (*sqlstore.Container, error) {
	driver := normalizeDatastoreDriver(cfg.DatastoreType)
	dsn := normalizeDatastoreDSN(driver, cfg.DatastoreURI)

	if driver == "sqlite3" {
		if err := ensureSQLiteDir(dsn); err != nil {
			return nil, err
		}
	}

	log.Gateway("datastore").Info("Initializing WhatsApp datastore with driver=" + driver)

	container, err := sqlstore.New(ctx, driver, dsn, NewLogger("Database"))
	if err != nil {
		return nil, fmt.Errorf("open whatsapp datastore: %w", err)
	}
	if err := container.Upgrade(ctx); err != nil {
		_ = container.Close()
		return nil, fmt.Errorf("upgrade whatsapp datastore: %w", err)
	}
	return container, nil
}

func normalizeDatastoreDriver(driver string) string {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgresql", "postgres", "pgx":
		return "pgx"
	case "", "sqlite", "sqlite3":
		return "sqlite3"
	default:
		return strings.ToLower(driver)
	}
}

func normalizeDatastoreDSN(driver string, dsn string) string {
	if driver != "pgx" {
		return dsn
	}
	appendParam := func(current string, key string, value string) string {
		if strings.Contains(current, key+"=") {
			return current
		}
		separator := "?"
		if strings.Contains(current, "?") {
			if strings.HasSuffix(current, "?") || strings.HasSuffix(current, "&") {
				separator = ""
			} else {
				separator = "&"
			}
		}
		return current + separator + key + "=" + value
	}
	dsn = appendParam(dsn, "default_query_exec_mode", "simple_protocol")
	dsn = appendParam(dsn, "statement_cache_capacity", "0")
	return dsn
}

// ensureSQLiteDir creates the parent directory of a file: DSN.
func ensureSQLiteDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create datastore directory %s: %w", dir, err)
	}
	return nil
}
