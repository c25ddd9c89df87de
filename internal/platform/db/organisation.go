package db

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	OrganisationIDKey contextKey = "organisation_id"
	DBConnKey         contextKey = "db_conn"
	DBTxKey           contextKey = "db_tx"
)

// OrganisationHeader carries the organisation whose schema a request reads and writes.
const OrganisationHeader = "X-Organisation-ID"

var organisationIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// SchemaName returns the Postgres schema holding an organisation's data.
func SchemaName(organisationID string) string {
	return fmt.Sprintf("org_%s", organisationID)
}

// OrganisationMiddleware acquires a pooled connection scoped to the caller's
// organisation schema and stores it on the request context for repositories.
func OrganisationMiddleware(pool *pgxpool.Pool, defaultOrganisation string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			orgID := extractOrganisationID(c, defaultOrganisation)

			if !organisationIDPattern.MatchString(orgID) {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid organisation identifier")
			}

			ctx, release, err := ScopedConn(c.Request().Context(), pool, orgID)
			if err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
			}
			defer release()

			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("organisation_id", orgID)

			return next(c)
		}
	}
}

// ScopedConn acquires a connection, points its search_path at the organisation
// schema and returns a context carrying it. Callers must invoke release.
func ScopedConn(ctx context.Context, pool *pgxpool.Pool, organisationID string) (context.Context, func(), error) {
	if !organisationIDPattern.MatchString(organisationID) {
		return ctx, func() {}, fmt.Errorf("invalid organisation identifier: %s", organisationID)
	}
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return ctx, func() {}, fmt.Errorf("acquire connection: %w", err)
	}
	if _, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s, public", SchemaName(organisationID))); err != nil {
		conn.Release()
		return ctx, func() {}, fmt.Errorf("set search_path: %w", err)
	}
	ctx = context.WithValue(ctx, OrganisationIDKey, organisationID)
	ctx = context.WithValue(ctx, DBConnKey, conn)
	return ctx, conn.Release, nil
}

func extractOrganisationID(c echo.Context, defaultOrganisation string) string {
	if oid := c.Request().Header.Get(OrganisationHeader); oid != "" {
		return oid
	}
	if oid := c.QueryParam("organisation_id"); oid != "" {
		return oid
	}
	return defaultOrganisation
}

// ConnFromContext retrieves the organisation-scoped database connection from context.
func ConnFromContext(ctx context.Context) *pgxpool.Conn {
	conn, _ := ctx.Value(DBConnKey).(*pgxpool.Conn)
	return conn
}

// TxFromContext retrieves an open transaction from context.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(DBTxKey).(pgx.Tx)
	return tx
}

// OrganisationFromContext retrieves the organisation ID from context.
func OrganisationFromContext(ctx context.Context) string {
	oid, _ := ctx.Value(OrganisationIDKey).(string)
	return oid
}

// WithTx begins a transaction on the scoped connection in ctx and returns a
// context that repositories will route their statements through.
func WithTx(ctx context.Context) (context.Context, pgx.Tx, error) {
	conn := ConnFromContext(ctx)
	if conn == nil {
		return ctx, nil, errors.New("no database connection in context")
	}
	tx, err := conn.Begin(ctx)
	if err != nil {
		return ctx, nil, fmt.Errorf("begin transaction: %w", err)
	}
	return context.WithValue(ctx, DBTxKey, tx), tx, nil
}

// TxRunner is implemented by Transactor; services depend on it so tests can
// substitute their own.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Transactor runs write flows that touch more than one table atomically.
type Transactor struct{}

// InTx runs fn inside a transaction on the scoped connection. Without a scoped
// connection fn runs directly, which keeps in-memory callers working.
func (Transactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil || ConnFromContext(ctx) == nil {
		return fn(ctx)
	}
	txCtx, tx, err := WithTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(txCtx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// CreateOrganisationSchema creates the schema for an organisation and runs all
// migrations in fsys against it. Migrations are skipped when fsys is nil.
func CreateOrganisationSchema(ctx context.Context, pool *pgxpool.Pool, organisationID string, fsys fs.FS) error {
	if !organisationIDPattern.MatchString(organisationID) {
		return fmt.Errorf("invalid organisation identifier: %s", organisationID)
	}

	schema := SchemaName(organisationID)

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)); err != nil {
		return fmt.Errorf("create schema %s: %w", schema, err)
	}

	if fsys != nil {
		migrator := NewMigratorFS(pool, fsys)
		if _, err := migrator.Up(ctx, schema); err != nil {
			return fmt.Errorf("run migrations for %s: %w", schema, err)
		}
	}

	return nil
}
