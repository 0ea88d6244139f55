package cjcs

import (
	"database/sql"
	"fmt"
	"strings"
)

// scanDynamicRow allocates n interface{} scan targets and returns the
// dereferenced values after Scan, used by GetFields, whose column set is
// chosen by the caller at runtime. Queries that also return a leading id
// column use scanRowWithID instead.
func scanDynamicRow(rows *sql.Rows, n int) ([]interface{}, error) {
	dest := make([]interface{}, n)
	ptrs := make([]interface{}, n)
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	return dest, nil
}

// dbColumnsFor resolves public field names to storage column names using
// pubToDB, failing fast (a programming error, per the taxonomy) on an
// unknown field name.
func dbColumnsFor(pubToDB map[string]string, fields []string) ([]string, error) {
	cols := make([]string, len(fields))
	for i, f := range fields {
		col, ok := pubToDB[f]
		if !ok {
			return nil, fmt.Errorf("cjcs: unknown field %q", f)
		}
		cols[i] = col
	}
	return cols, nil
}

func quoteIdents(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = `"` + c + `"`
	}
	return strings.Join(quoted, ", ")
}

func placeholders(n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = "?"
	}
	return strings.Join(ph, ", ")
}

func hasDuplicates(ids []int64) bool {
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}
