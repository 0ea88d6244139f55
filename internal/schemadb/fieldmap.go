// Package schemadb provisions the jobs/models tables and centralizes the
// public-name <-> storage-name mapping. The conversion is a single pure
// function; both directions are generated once at init time and served
// from two maps.
package schemadb

import "strings"

// ColumnToPublic converts a storage column name to its public API name:
// a leading underscore is stripped, then snake_case segments become
// lowerCamelCase (first segment lowercase, subsequent segments
// capitalized). Examples: job_id -> jobId, _eng_last_update_time ->
// engLastUpdateTime.
func ColumnToPublic(dbName string) string {
	name := strings.TrimPrefix(dbName, "_")
	parts := strings.Split(name, "_")

	var b strings.Builder
	for i, part := range parts {
		if part == "" {
			continue
		}
		if i == 0 || b.Len() == 0 {
			b.WriteString(part)
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}

// BuildNameMaps derives the public->db and db->public mappings for a
// fixed set of storage column names, computed once at init time and
// shared by every subsequent lookup.
func BuildNameMaps(dbColumns []string) (pubToDB map[string]string, dbToPub map[string]string) {
	pubToDB = make(map[string]string, len(dbColumns))
	dbToPub = make(map[string]string, len(dbColumns))
	for _, col := range dbColumns {
		pub := ColumnToPublic(col)
		pubToDB[pub] = col
		dbToPub[col] = pub
	}
	return pubToDB, dbToPub
}
