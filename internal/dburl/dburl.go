// Package dburl parses database URLs into the dialect, driver name, and DSN
// needed to open a database/sql connection. It is the single place where URL
// schemes are mapped to drivers, so every component (inspector, lock manager,
// executor) resolves a connection string the same way.
package dburl

import (
	"fmt"
	"net/url"
	"strings"

	"dataflow/internal/core"
)

// Target is a resolved database URL.
type Target struct {
	URL      string
	Dialect  core.Dialect
	Driver   string
	DSN      string
	Database string
	InMemory bool
}

// Parse resolves a database URL of the form postgresql://, mysql://,
// sqlite:// or sqlite:///path.db into a Target. Unsupported schemes return a
// SchemaDiscoveryError so callers can branch on the error kind.
func Parse(rawURL string) (*Target, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, &core.SchemaDiscoveryError{Target: rawURL, Reason: "empty database URL"}
	}

	scheme := rawURL
	if idx := strings.Index(rawURL, "://"); idx > 0 {
		scheme = rawURL[:idx]
	}

	switch strings.ToLower(scheme) {
	case "postgresql", "postgres":
		return parsePostgres(rawURL)
	case "mysql":
		return parseMySQL(rawURL)
	case "sqlite", "sqlite3":
		return parseSQLite(rawURL)
	default:
		return nil, &core.SchemaDiscoveryError{
			Target: rawURL,
			Reason: fmt.Sprintf("unsupported database scheme %q (supported: postgresql, mysql, sqlite)", scheme),
		}
	}
}

func parsePostgres(rawURL string) (*Target, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &core.SchemaDiscoveryError{Target: rawURL, Reason: err.Error()}
	}
	// lib/pq accepts the URL form directly, but normalizes the scheme.
	u.Scheme = "postgres"
	return &Target{
		URL:      rawURL,
		Dialect:  core.DialectPostgreSQL,
		Driver:   "postgres",
		DSN:      u.String(),
		Database: strings.TrimPrefix(u.Path, "/"),
	}, nil
}

func parseMySQL(rawURL string) (*Target, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &core.SchemaDiscoveryError{Target: rawURL, Reason: err.Error()}
	}

	// go-sql-driver needs user:pass@tcp(host:port)/dbname, not a URL.
	host := u.Host
	if host == "" {
		host = "127.0.0.1:3306"
	}
	if !strings.Contains(host, ":") {
		host += ":3306"
	}

	var cred string
	if u.User != nil {
		cred = u.User.Username()
		if pass, ok := u.User.Password(); ok {
			cred += ":" + pass
		}
		cred += "@"
	}

	dbName := strings.TrimPrefix(u.Path, "/")
	dsn := fmt.Sprintf("%stcp(%s)/%s", cred, host, dbName)
	if u.RawQuery != "" {
		dsn += "?" + u.RawQuery
	}

	return &Target{
		URL:      rawURL,
		Dialect:  core.DialectMySQL,
		Driver:   "mysql",
		DSN:      dsn,
		Database: dbName,
	}, nil
}

func parseSQLite(rawURL string) (*Target, error) {
	// Accept sqlite://rel.db, sqlite:///abs/path.db, and sqlite::memory:.
	path := rawURL
	for _, prefix := range []string{"sqlite3://", "sqlite://", "sqlite3:", "sqlite:"} {
		if strings.HasPrefix(path, prefix) {
			path = strings.TrimPrefix(path, prefix)
			break
		}
	}

	inMemory := path == "" || path == ":memory:" || strings.Contains(path, "mode=memory")

	return &Target{
		URL:      rawURL,
		Dialect:  core.DialectSQLite,
		Driver:   "sqlite3",
		DSN:      path,
		Database: path,
		InMemory: inMemory,
	}, nil
}
