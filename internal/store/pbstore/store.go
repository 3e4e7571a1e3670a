// Package pbstore persists the engine's records in PocketBase collections.
// Every guarded write is a single conditional UPDATE whose RowsAffected decides
// the outcome.
package pbstore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"event-marketplace/internal/status"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/shopspring/decimal"
)

type Store struct {
	app core.App
}

func New(app core.App) *Store {
	return &Store{app: app}
}

func toDBTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	dt, err := types.ParseDateTime(t)
	if err != nil {
		return ""
	}
	return dt.String()
}

func fromDBTime(dt types.DateTime) time.Time {
	if dt.IsZero() {
		return time.Time{}
	}
	return dt.Time()
}

func toDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf(format+": %w", append(args, status.ErrNotFound)...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

func rowsAffected(res sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func inStrings(column string, values []string) dbx.Expression {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return dbx.In(column, args...)
}
