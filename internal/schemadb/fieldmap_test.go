package schemadb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColumnToPublic(t *testing.T) {
	cases := map[string]string{
		"job_id":                "jobId",
		"_eng_last_update_time": "engLastUpdateTime",
		"client_info":           "clientInfo",
		"status":                "status",
		"_eng_worker_conn_id":   "engWorkerConnId",
	}
	for dbName, want := range cases {
		assert.Equal(t, want, ColumnToPublic(dbName))
	}
}

func TestBuildNameMaps_RoundTrips(t *testing.T) {
	pubToDB, dbToPub := BuildNameMaps([]string{"job_id", "_eng_status"})
	assert.Equal(t, "job_id", pubToDB["jobId"])
	assert.Equal(t, "_eng_status", pubToDB["engStatus"])
	assert.Equal(t, "jobId", dbToPub["job_id"])
	assert.Equal(t, "engStatus", dbToPub["_eng_status"])
}

func TestJobAndModelColumns_HaveNoDuplicatePublicNames(t *testing.T) {
	seen := map[string]bool{}
	for _, col := range JobColumns {
		pub := ColumnToPublic(col)
		assert.False(t, seen[pub], "duplicate public name %q derived from %q", pub, col)
		seen[pub] = true
	}

	seenModel := map[string]bool{}
	for _, col := range ModelColumns {
		pub := ColumnToPublic(col)
		assert.False(t, seenModel[pub], "duplicate public name %q derived from %q", pub, col)
		seenModel[pub] = true
	}
}
