package repo

import (
	"database/sql"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/samber/lo"
)

const dialect = "sqlite3"

func newBuilder(db *sql.DB) *goqu.Database {
	return goqu.New(dialect, db)
}

// qualified prefixes every column with a table alias for joined selects.
func qualified(alias string, columns []string) []any {
	return lo.Map(columns, func(c string, _ int) any {
		return goqu.I(alias + "." + c)
	})
}

func plain(columns []string) []any {
	return lo.Map(columns, func(c string, _ int) any {
		return goqu.C(c)
	})
}

// nullable maps an empty string to SQL NULL.
func nullable(s string) *string {
	return lo.EmptyableToPtr(s)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
