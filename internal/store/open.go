package store

import (
	"context"

	"github.com/patrickspencer/pipewatch/internal/errors"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open returns the Store for driver. For sqlite dsn is a file path; for
// postgres it is a connection URL.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case DriverSQLite, "":
		return NewSQLiteStore(dsn)
	case DriverPostgres:
		return NewPostgresStore(ctx, dsn)
	default:
		return nil, errors.InvalidParameterf("unsupported database driver %q", driver)
	}
}
