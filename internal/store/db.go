// Package store implements every persistence seam the rest of the
// orchestrator defines as an interface (secrets.Repository,
// tenant.HierarchyStore, mfa.EnrollmentStore, approval.Store) against
// PostgreSQL via sqlx.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Open establishes a PostgreSQL connection pool via dsn, verifies
// connectivity with a bounded ping, and applies any pending migrations
// from migrations/ (see migrate.go) before handing back the pool,
// matching database.Open's connect-then-verify shape.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("store: postgres DSN is required")
	}
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}

	if err := Migrate(dsn); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
