package cluster

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	_ "github.com/go-sql-driver/mysql"

	"github.com/olapctl/srplan/internal/analyzer"
	"github.com/olapctl/srplan/internal/profile"
)

// Engine is a live connection to a frontend node over the MySQL wire
// protocol. Safe for concurrent use.
type Engine struct {
	db     *sql.DB
	logger log.Logger
}

func Connect(dsn string, logger log.Logger) (*Engine, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening connection: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &Engine{db: db, logger: logger}, nil
}

func (e *Engine) Close() error {
	return e.db.Close()
}

func (e *Engine) Ping(ctx context.Context) error {
	return e.db.PingContext(ctx)
}

// SessionVariables fetches the live session variables so diagnostics can
// report current values next to suggested ones.
func (e *Engine) SessionVariables(ctx context.Context) (map[string]string, error) {
	rows, err := e.db.QueryContext(ctx, "SHOW VARIABLES")
	if err != nil {
		return nil, fmt.Errorf("fetching session variables: %w", err)
	}
	defer rows.Close()

	vars := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scanning variable row: %w", err)
		}
		vars[name] = value
	}
	return vars, rows.Err()
}

// Info derives cluster sizing from SHOW BACKENDS. Columns vary across
// engine versions, so they are located by name and missing ones simply
// leave their field zero.
func (e *Engine) Info(ctx context.Context) (*analyzer.ClusterInfo, error) {
	rows, err := e.db.QueryContext(ctx, "SHOW BACKENDS")
	if err != nil {
		return nil, fmt.Errorf("fetching backends: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	colIdx := make(map[string]int, len(cols))
	for i, c := range cols {
		colIdx[c] = i
	}

	values := make([]sql.RawBytes, len(cols))
	scanArgs := make([]any, len(cols))
	for i := range values {
		scanArgs[i] = &values[i]
	}

	field := func(name string) string {
		i, ok := colIdx[name]
		if !ok || values[i] == nil {
			return ""
		}
		return string(values[i])
	}

	info := &analyzer.ClusterInfo{}
	for rows.Next() {
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("scanning backend row: %w", err)
		}
		if !strings.EqualFold(field("Alive"), "true") {
			continue
		}
		info.BackendCount++

		if cores, err := strconv.Atoi(field("CpuCores")); err == nil && cores > info.CoresPerBackend {
			info.CoresPerBackend = cores
		}
		if limit := field("MemLimit"); limit != "" {
			if b, err := profile.ParseBytes(limit); err == nil && (info.MemoryPerBackendBytes == 0 || b < info.MemoryPerBackendBytes) {
				// The smallest backend bounds what any single operator can use.
				info.MemoryPerBackendBytes = b
			} else if err != nil {
				level.Debug(e.logger).Log("msg", "unparsable backend memory limit", "value", limit, "err", err)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if info.BackendCount == 0 {
		return nil, fmt.Errorf("no alive backends reported")
	}
	return info, nil
}

// QueryProfile fetches the stored profile text for a finished query.
// Requires enable_profile to have been on when the query ran.
func (e *Engine) QueryProfile(ctx context.Context, queryID string) (string, error) {
	var text sql.NullString
	err := e.db.QueryRowContext(ctx, "SELECT get_query_profile(?)", queryID).Scan(&text)
	if err != nil {
		return "", fmt.Errorf("fetching profile for query %s: %w", queryID, err)
	}
	if !text.Valid || strings.TrimSpace(text.String) == "" {
		return "", fmt.Errorf("no profile stored for query %s; was enable_profile on?", queryID)
	}
	return text.String, nil
}
