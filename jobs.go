package cjcs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ternarybob/cjcs/internal/common"
	"github.com/ternarybob/cjcs/internal/schemadb"
)

var insertParamsValidator = validator.New()

// normalizeJobHash right-pads hash to HashMaxLen bytes, translating the
// internal programming-error into the caller-facing sentinel.
func normalizeJobHash(hash []byte) ([]byte, error) {
	out, err := common.NormalizeHash(hash, HashMaxLen)
	if err != nil {
		return nil, ErrInvalidJobHash
	}
	return out, nil
}

func newRandomHash() [16]byte {
	return common.NewJobHash()
}

// validateInsertParams enforces the programming-error invariants named
// for admission: client tag width and a non-empty command line. Struct
// tags carry the rules; failures are translated to the package's own
// sentinels so callers never see a validator.ValidationErrors value.
func validateInsertParams(p InsertParams) error {
	if err := insertParamsValidator.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				switch fe.Field() {
				case "Client":
					return ErrInvalidClient
				case "CmdLine":
					return ErrEmptyCommandLine
				}
			}
		}
		return err
	}
	return nil
}

// Insert generates a fresh random jobHash and admits a new job. The
// generated hash is unique with overwhelming probability, so the insert
// always wins; only on an improbable collision (or a reconnect that
// loses the last-insert-id) does it fall back to a lookup by
// (client, jobHash).
func (h *Handle) Insert(ctx context.Context, p InsertParams) (int64, error) {
	if err := validateInsertParams(p); err != nil {
		return 0, err
	}

	raw := newRandomHash()
	hash, err := normalizeJobHash(raw[:])
	if err != nil {
		return 0, err
	}

	var jobID int64
	err = h.retry.Do(ctx, func() error {
		id, insErr := h.insertOrGetJob(ctx, p, hash, false)
		if insErr != nil {
			return insErr
		}
		jobID = id
		return nil
	})
	if err != nil {
		h.logger.Error().Err(err).Str("client", p.Client).Msg("Insert failed")
		return 0, err
	}
	h.logger.Info().Int64("jobId", jobID).Str("client", p.Client).Msg("job admitted")
	return jobID, nil
}

// InsertUnique admits a job keyed by a client-supplied hash, reusing an
// existing row unless it has already completed (in which case it is
// resumed in place).
func (h *Handle) InsertUnique(ctx context.Context, p InsertParams, jobHash []byte) (int64, error) {
	if err := validateInsertParams(p); err != nil {
		return 0, err
	}
	hash, err := normalizeJobHash(jobHash)
	if err != nil {
		return 0, err
	}

	var jobID int64
	err = h.retry.Do(ctx, func() error {
		row := h.session.DB().QueryRowContext(ctx,
			`SELECT job_id, status FROM jobs WHERE client = ? AND job_hash = ?`,
			p.Client, hash)

		var id int64
		var status JobStatus
		switch scanErr := row.Scan(&id, &status); scanErr {
		case sql.ErrNoRows:
			newID, insErr := h.insertOrGetJob(ctx, p, hash, false)
			if insErr != nil {
				return insErr
			}
			jobID = newID
			return nil
		case nil:
			jobID = id
			if status == JobStatusCompleted {
				if updErr := h.reuseCompletedJob(ctx, id, p); updErr != nil {
					return updErr
				}
				if resErr := h.resume(ctx, id, false); resErr != nil {
					return resErr
				}
			}
			return nil
		default:
			return scanErr
		}
	})
	if err != nil {
		return 0, err
	}
	return jobID, nil
}

// reuseCompletedJob updates the mutable submission fields of a completed
// job while it is still completed; the predicate guards against a
// concurrent resume winning the race.
func (h *Handle) reuseCompletedJob(ctx context.Context, jobID int64, p InsertParams) error {
	_, err := h.session.DB().ExecContext(ctx, `
		UPDATE jobs SET client_info = ?, client_key = ?, cmd_line = ?, params = ?,
		                minimum_workers = ?, maximum_workers = ?, priority = ?,
		                _eng_job_type = ?
		WHERE job_id = ? AND status = ?`,
		p.ClientInfo, p.ClientKey, p.CmdLine, p.Params,
		p.MinWorkers, p.MaxWorkers, p.Priority, string(p.JobType),
		jobID, string(JobStatusCompleted))
	if err != nil {
		return fmt.Errorf("failed to refresh reused job %d: %w", jobID, err)
	}
	return nil
}

// insertOrGetJob performs the at-most-once insert, recovering the
// assigned jobId via the driver's last-insert-id or, on a reconnect that
// loses it, by looking the row up by (client, jobHash). Composed inside
// the retry envelope as a single insert-plus-reconcile closure, never
// retried as a bare INSERT.
func (h *Handle) insertOrGetJob(ctx context.Context, p InsertParams, hash []byte, alreadyRunning bool) (int64, error) {
	status := JobStatusNotStarted
	if alreadyRunning {
		status = JobStatusTestMode
	}

	res, err := h.session.DB().ExecContext(ctx, `
		INSERT OR IGNORE INTO jobs
			(client, client_info, client_key, cmd_line, params, job_hash,
			 status, minimum_workers, maximum_workers, priority, _eng_job_type,
			 _eng_last_update_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Client, p.ClientInfo, p.ClientKey, p.CmdLine, p.Params, hash,
		string(status), p.MinWorkers, p.MaxWorkers, p.Priority, string(p.JobType),
		nowUnix())
	if err != nil {
		return 0, fmt.Errorf("failed to insert job: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 1 {
		id, idErr := res.LastInsertId()
		if idErr == nil && id != 0 {
			return id, nil
		}
	}

	row := h.session.DB().QueryRowContext(ctx,
		`SELECT job_id FROM jobs WHERE client = ? AND job_hash = ?`, p.Client, hash)
	var jobID int64
	if scanErr := row.Scan(&jobID); scanErr != nil {
		return 0, fmt.Errorf("failed to reconcile job insert for client %q: %w", p.Client, scanErr)
	}
	return jobID, nil
}

// resume resets a completed job back to notStarted (or testMode). A
// zero-row outcome means the job was already resumed concurrently; that
// is logged, not treated as an error.
func (h *Handle) resume(ctx context.Context, jobID int64, alreadyRunning bool) error {
	initStatus := JobStatusNotStarted
	if alreadyRunning {
		initStatus = JobStatusTestMode
	}

	var res sql.Result
	var err error
	if alreadyRunning {
		res, err = h.session.DB().ExecContext(ctx, `
			UPDATE jobs SET status = ?, completion_reason = NULL, completion_msg = NULL,
			                worker_completion_reason = NULL, worker_completion_msg = NULL,
			                end_time = NULL, cancel = 0, _eng_last_update_time = ?,
			                _eng_allocate_new_workers = 0, _eng_untended_dead_workers = 0,
			                num_failed_workers = 0, last_failed_worker_error_msg = NULL,
			                _eng_cleaning_status = ?, _eng_cjm_conn_id = ?, start_time = ?
			WHERE job_id = ? AND status = ?`,
			string(initStatus), nowUnix(), string(CleaningStatusNotDone),
			h.session.ConnID(), nowUnix(), jobID, string(JobStatusCompleted))
	} else {
		res, err = h.session.DB().ExecContext(ctx, `
			UPDATE jobs SET status = ?, completion_reason = NULL, completion_msg = NULL,
			                worker_completion_reason = NULL, worker_completion_msg = NULL,
			                end_time = NULL, cancel = 0, _eng_last_update_time = ?,
			                _eng_allocate_new_workers = 0, _eng_untended_dead_workers = 0,
			                num_failed_workers = 0, last_failed_worker_error_msg = NULL,
			                _eng_cleaning_status = ?, _eng_cjm_conn_id = NULL, start_time = NULL
			WHERE job_id = ? AND status = ?`,
			string(initStatus), nowUnix(), string(CleaningStatusNotDone),
			jobID, string(JobStatusCompleted))
	}
	if err != nil {
		return fmt.Errorf("failed to resume job %d: %w", jobID, err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		h.logger.Info().Int64("jobId", jobID).
			Msg("redundant job-resume update: job was not suspended or was resumed concurrently")
	}
	return nil
}

// StartNext claims any one notStarted job, atomically transitioning it
// to running and recording this process as its owner. Returns (0,
// false, nil) when there was no work.
func (h *Handle) StartNext(ctx context.Context) (int64, bool, error) {
	var jobID int64
	var found bool

	err := h.retry.Do(ctx, func() error {
		row := h.session.DB().QueryRowContext(ctx,
			`SELECT job_id FROM jobs WHERE status = ? LIMIT 1`, string(JobStatusNotStarted))
		var id int64
		if scanErr := row.Scan(&id); scanErr != nil {
			if errors.Is(scanErr, sql.ErrNoRows) {
				found = false
				return nil
			}
			return scanErr
		}

		res, updErr := h.session.DB().ExecContext(ctx, `
			UPDATE jobs SET status = ?, _eng_cjm_conn_id = ?, start_time = ?,
			                _eng_last_update_time = ?
			WHERE job_id = ? AND status = ?`,
			string(JobStatusRunning), h.session.ConnID(), nowUnix(), nowUnix(),
			id, string(JobStatusNotStarted))
		if updErr != nil {
			return updErr
		}
		if n, _ := res.RowsAffected(); n != 1 {
			h.logger.Warn().Int64("jobId", id).Msg("startNext predicate missed, likely lost the race")
			found = false
			return nil
		}
		jobID = id
		found = true
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return jobID, found, nil
}

// ReactivateRunning marks every running job as owned by this process and
// due for worker reallocation, used after a supervisor restart.
func (h *Handle) ReactivateRunning(ctx context.Context) error {
	return h.retry.Do(ctx, func() error {
		_, err := h.session.DB().ExecContext(ctx, `
			UPDATE jobs SET _eng_cjm_conn_id = ?, _eng_allocate_new_workers = 1
			WHERE status = ?`,
			h.session.ConnID(), string(JobStatusRunning))
		return err
	})
}

// GetDemand returns the scheduling tuple for every running job.
func (h *Handle) GetDemand(ctx context.Context) ([]JobDemand, error) {
	var out []JobDemand
	err := h.retry.Do(ctx, func() error {
		out = nil
		rows, qErr := h.session.DB().QueryContext(ctx, `
			SELECT job_id, minimum_workers, maximum_workers, priority,
			       _eng_allocate_new_workers, _eng_untended_dead_workers,
			       num_failed_workers, _eng_job_type
			FROM jobs WHERE status = ?`, string(JobStatusRunning))
		if qErr != nil {
			return qErr
		}
		defer rows.Close()

		for rows.Next() {
			var d JobDemand
			var jobType string
			if scanErr := rows.Scan(&d.JobID, &d.MinimumWorkers, &d.MaximumWorkers,
				&d.Priority, &d.EngAllocateNewWorkers, &d.EngUntendedDeadWorkers,
				&d.NumFailedWorkers, &jobType); scanErr != nil {
				return scanErr
			}
			d.EngJobType = JobType(jobType)
			out = append(out, d)
		}
		return rows.Err()
	})
	return out, err
}

// Cancel sets cancel = true for one job. Not ownership-gated: any client
// may request cancellation.
func (h *Handle) Cancel(ctx context.Context, jobID int64) error {
	return h.retry.Do(ctx, func() error {
		_, err := h.session.DB().ExecContext(ctx,
			`UPDATE jobs SET cancel = 1 WHERE job_id = ?`, jobID)
		return err
	})
}

// CancelAllRunning sets cancel = true for every non-completed job.
func (h *Handle) CancelAllRunning(ctx context.Context) error {
	return h.retry.Do(ctx, func() error {
		_, err := h.session.DB().ExecContext(ctx,
			`UPDATE jobs SET cancel = 1 WHERE status != ?`, string(JobStatusCompleted))
		return err
	})
}

// CountCancelling counts non-completed jobs with cancel = true.
func (h *Handle) CountCancelling(ctx context.Context) (int, error) {
	var count int
	err := h.retry.Do(ctx, func() error {
		row := h.session.DB().QueryRowContext(ctx,
			`SELECT COUNT(job_id) FROM jobs WHERE status != ? AND cancel = 1`,
			string(JobStatusCompleted))
		return row.Scan(&count)
	})
	return count, err
}

// GetCancelling returns the job IDs of non-completed jobs with
// cancel = true.
func (h *Handle) GetCancelling(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := h.retry.Do(ctx, func() error {
		ids = nil
		rows, qErr := h.session.DB().QueryContext(ctx,
			`SELECT job_id FROM jobs WHERE status != ? AND cancel = 1`,
			string(JobStatusCompleted))
		if qErr != nil {
			return qErr
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			if scanErr := rows.Scan(&id); scanErr != nil {
				return scanErr
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	return ids, err
}

// SetStatus changes a job's status. If useConn, the write is gated on
// this process owning engCjmConnId. A non-single-row outcome is fatal:
// it indicates the job does not exist or belongs to another owner.
func (h *Handle) SetStatus(ctx context.Context, jobID int64, status JobStatus, useConn bool) error {
	return h.retry.Do(ctx, func() error {
		query := `UPDATE jobs SET status = ?, _eng_last_update_time = ? WHERE job_id = ?`
		args := []interface{}{string(status), nowUnix(), jobID}
		if useConn {
			query += ` AND _eng_cjm_conn_id = ?`
			args = append(args, h.session.ConnID())
		}
		res, err := h.session.DB().ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n != 1 {
			if useConn {
				return ErrInvalidOwnership
			}
			return ErrRowCountMismatch
		}
		return nil
	})
}

// SetCompleted transitions a job to completed with the given terminal
// annotations. Same ownership discipline and fatal-on-zero-rows policy
// as SetStatus.
func (h *Handle) SetCompleted(ctx context.Context, jobID int64, reason, msg string, useConn bool) error {
	return h.retry.Do(ctx, func() error {
		query := `
			UPDATE jobs SET status = ?, completion_reason = ?, completion_msg = ?,
			                end_time = ?, _eng_last_update_time = ?
			WHERE job_id = ?`
		now := nowUnix()
		args := []interface{}{string(JobStatusCompleted), reason, msg, now, now, jobID}
		if useConn {
			query += ` AND _eng_cjm_conn_id = ?`
			args = append(args, h.session.ConnID())
		}
		res, err := h.session.DB().ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n != 1 {
			if useConn {
				return ErrInvalidOwnership
			}
			return ErrRowCountMismatch
		}
		return nil
	})
}

// GetFields fetches the values of the named public fields for one job.
// Fatal (ErrNotFound) if the job does not exist.
func (h *Handle) GetFields(ctx context.Context, jobID int64, fields []string) ([]interface{}, error) {
	cols, err := dbColumnsFor(schemadb.JobPubToDB, fields)
	if err != nil {
		return nil, err
	}

	var values []interface{}
	err = h.retry.Do(ctx, func() error {
		query := fmt.Sprintf(`SELECT %s FROM jobs WHERE job_id = ?`, quoteIdents(cols))
		rows, qErr := h.session.DB().QueryContext(ctx, query, jobID)
		if qErr != nil {
			return qErr
		}
		defer rows.Close()

		if !rows.Next() {
			return ErrNotFound
		}
		v, scanErr := scanDynamicRow(rows, len(cols))
		if scanErr != nil {
			return scanErr
		}
		values = v
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

// SetFields bulk-updates named public fields on one job. A zero-row
// outcome is fatal unless ignoreUnchanged is set (the new values may
// already match the stored ones).
func (h *Handle) SetFields(ctx context.Context, jobID int64, fields map[string]interface{}, useConn, ignoreUnchanged bool) error {
	if len(fields) == 0 {
		return nil
	}
	return h.retry.Do(ctx, func() error {
		assignments := ""
		args := make([]interface{}, 0, len(fields)+2)
		first := true
		for pub, val := range fields {
			col, ok := schemadb.JobPubToDB[pub]
			if !ok {
				return fmt.Errorf("cjcs: unknown field %q", pub)
			}
			if !first {
				assignments += ", "
			}
			first = false
			assignments += fmt.Sprintf(`"%s" = ?`, col)
			args = append(args, val)
		}

		query := fmt.Sprintf(`UPDATE jobs SET %s WHERE job_id = ?`, assignments)
		args = append(args, jobID)
		if useConn {
			query += ` AND _eng_cjm_conn_id = ?`
			args = append(args, h.session.ConnID())
		}

		res, err := h.session.DB().ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n != 1 && !ignoreUnchanged {
			if useConn {
				return ErrInvalidOwnership
			}
			return ErrRowCountMismatch
		}
		return nil
	})
}

// SetFieldIfEqual atomically sets one field to newVal only if its stored
// value equals curVal. This is the CAS primitive that elects exactly one
// worker among many to perform a periodic sweep.
func (h *Handle) SetFieldIfEqual(ctx context.Context, jobID int64, field string, newVal, curVal interface{}) (bool, error) {
	col, ok := schemadb.JobPubToDB[field]
	if !ok {
		return false, fmt.Errorf("cjcs: unknown field %q", field)
	}

	var ok2 bool
	err := h.retry.Do(ctx, func() error {
		query := fmt.Sprintf(`UPDATE jobs SET _eng_last_update_time = ?, "%s" = ? WHERE job_id = ?`, col)
		args := []interface{}{nowUnix(), newVal, jobID}
		if curVal == nil {
			query += fmt.Sprintf(` AND "%s" IS NULL`, col)
		} else {
			query += fmt.Sprintf(` AND "%s" = ?`, col)
			args = append(args, curVal)
		}
		res, err := h.session.DB().ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		ok2 = n == 1
		return nil
	})
	return ok2, err
}

// IncrementIntField atomically increments an integer field by delta.
func (h *Handle) IncrementIntField(ctx context.Context, jobID int64, field string, delta int64, useConn bool) error {
	col, ok := schemadb.JobPubToDB[field]
	if !ok {
		return fmt.Errorf("cjcs: unknown field %q", field)
	}
	return h.retry.Do(ctx, func() error {
		query := fmt.Sprintf(`UPDATE jobs SET "%s" = "%s" + ? WHERE job_id = ?`, col, col)
		args := []interface{}{delta, jobID}
		if useConn {
			query += ` AND _eng_cjm_conn_id = ?`
			args = append(args, h.session.ConnID())
		}
		res, err := h.session.DB().ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return ErrRowCountMismatch
		}
		return nil
	})
}

// UpdateResults refreshes a job's results text and liveness timestamp.
func (h *Handle) UpdateResults(ctx context.Context, jobID int64, results string) error {
	return h.retry.Do(ctx, func() error {
		_, err := h.session.DB().ExecContext(ctx,
			`UPDATE jobs SET _eng_last_update_time = ?, results = ? WHERE job_id = ?`,
			nowUnix(), results, jobID)
		return err
	})
}

// Info returns every public field for one job.
func (h *Handle) Info(ctx context.Context, jobID int64) (*JobInfo, error) {
	var info JobInfo
	err := h.retry.Do(ctx, func() error {
		row := h.session.DB().QueryRowContext(ctx,
			fmt.Sprintf(`SELECT %s FROM jobs WHERE job_id = ?`, quoteIdents(schemadb.JobColumns)), jobID)
		return scanJobInfo(row, &info)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &info, nil
}

// InfoWithModels returns the cross-product of the job row with every
// model row owned by it, via a single LEFT JOIN; one row with
// Model == nil is returned when there are no models.
func (h *Handle) InfoWithModels(ctx context.Context, jobID int64) ([]JobModelInfo, error) {
	// Both tables share column names (params, status, results, ...), so
	// every selected column is qualified by its table.
	selectList := ""
	for _, c := range schemadb.JobColumns {
		selectList += `jobs."` + c + `", `
	}
	for i, c := range schemadb.ModelColumns {
		if i > 0 {
			selectList += ", "
		}
		selectList += `models."` + c + `"`
	}

	var out []JobModelInfo
	err := h.retry.Do(ctx, func() error {
		out = nil
		query := fmt.Sprintf(`
			SELECT %s
			FROM jobs LEFT JOIN models USING(job_id)
			WHERE jobs.job_id = ?`, selectList)

		rows, qErr := h.session.DB().QueryContext(ctx, query, jobID)
		if qErr != nil {
			return qErr
		}
		defer rows.Close()

		any := false
		for rows.Next() {
			any = true
			var jr jobRowScan
			var mr nullableModelRowScan

			dest := append(jr.ptrs(), mr.ptrs()...)
			if scanErr := rows.Scan(dest...); scanErr != nil {
				return scanErr
			}
			out = append(out, JobModelInfo{Job: jr.toInfo(), Model: mr.toInfo()})
		}
		if !any {
			return ErrNotFound
		}
		return rows.Err()
	})
	return out, err
}

// GetActiveJobsForClientInfo returns (jobId, requested field values) for
// every non-completed job with the given clientInfo.
func (h *Handle) GetActiveJobsForClientInfo(ctx context.Context, clientInfo string, fields []string) ([]FieldRow, error) {
	return h.activeJobsBy(ctx, "client_info", clientInfo, fields)
}

// GetActiveJobsForClientKey returns (jobId, requested field values) for
// every non-completed job with the given clientKey.
func (h *Handle) GetActiveJobsForClientKey(ctx context.Context, clientKey string, fields []string) ([]FieldRow, error) {
	return h.activeJobsBy(ctx, "client_key", clientKey, fields)
}

func (h *Handle) activeJobsBy(ctx context.Context, column, value string, fields []string) ([]FieldRow, error) {
	cols, err := dbColumnsFor(schemadb.JobPubToDB, fields)
	if err != nil {
		return nil, err
	}
	var out []FieldRow
	err = h.retry.Do(ctx, func() error {
		out = nil
		query := fmt.Sprintf(`SELECT job_id, %s FROM jobs WHERE %s = ? AND status != ?`,
			quoteIdents(cols), column)
		rows, qErr := h.session.DB().QueryContext(ctx, query, value, string(JobStatusCompleted))
		if qErr != nil {
			return qErr
		}
		defer rows.Close()
		for rows.Next() {
			var fr FieldRow
			vals, scanErr := scanRowWithID(rows, len(cols))
			if scanErr != nil {
				return scanErr
			}
			fr.ID = vals.id
			fr.Values = vals.values
			out = append(out, fr)
		}
		return rows.Err()
	})
	return out, err
}

// GetActiveJobCountForClientInfo counts non-completed jobs with the
// given clientInfo.
func (h *Handle) GetActiveJobCountForClientInfo(ctx context.Context, clientInfo string) (int, error) {
	return h.activeJobCountBy(ctx, "client_info", clientInfo)
}

// GetActiveJobCountForClientKey counts non-completed jobs with the
// given clientKey.
func (h *Handle) GetActiveJobCountForClientKey(ctx context.Context, clientKey string) (int, error) {
	return h.activeJobCountBy(ctx, "client_key", clientKey)
}

func (h *Handle) activeJobCountBy(ctx context.Context, column, value string) (int, error) {
	var count int
	err := h.retry.Do(ctx, func() error {
		query := fmt.Sprintf(`SELECT COUNT(job_id) FROM jobs WHERE %s = ? AND status != ?`, column)
		row := h.session.DB().QueryRowContext(ctx, query, value, string(JobStatusCompleted))
		return row.Scan(&count)
	})
	return count, err
}

// GetFieldsForActiveJobsOfType returns distinct (jobId, field values)
// rows for every non-completed job of the given type, joined against
// the models table.
func (h *Handle) GetFieldsForActiveJobsOfType(ctx context.Context, jobType JobType, fields []string) ([]FieldRow, error) {
	cols, err := dbColumnsFor(schemadb.JobPubToDB, fields)
	if err != nil {
		return nil, err
	}
	qualified := ""
	for i, c := range cols {
		if i > 0 {
			qualified += ", "
		}
		qualified += `j."` + c + `"`
	}
	var out []FieldRow
	err = h.retry.Do(ctx, func() error {
		out = nil
		query := fmt.Sprintf(`
			SELECT DISTINCT j.job_id, %s
			FROM jobs j LEFT JOIN models m USING(job_id)
			WHERE j.status != ? AND j._eng_job_type = ?`, qualified)
		rows, qErr := h.session.DB().QueryContext(ctx, query, string(JobStatusCompleted), string(jobType))
		if qErr != nil {
			return qErr
		}
		defer rows.Close()
		for rows.Next() {
			vals, scanErr := scanRowWithID(rows, len(cols))
			if scanErr != nil {
				return scanErr
			}
			out = append(out, FieldRow{ID: vals.id, Values: vals.values})
		}
		return rows.Err()
	})
	return out, err
}

// ListJobs returns (jobId, requested field values) for every job in the
// table, unfiltered.
func (h *Handle) ListJobs(ctx context.Context, fields []string) ([]FieldRow, error) {
	cols, err := dbColumnsFor(schemadb.JobPubToDB, fields)
	if err != nil {
		return nil, err
	}
	var out []FieldRow
	err = h.retry.Do(ctx, func() error {
		out = nil
		query := fmt.Sprintf(`SELECT job_id, %s FROM jobs`, quoteIdents(cols))
		rows, qErr := h.session.DB().QueryContext(ctx, query)
		if qErr != nil {
			return qErr
		}
		defer rows.Close()
		for rows.Next() {
			vals, scanErr := scanRowWithID(rows, len(cols))
			if scanErr != nil {
				return scanErr
			}
			out = append(out, FieldRow{ID: vals.id, Values: vals.values})
		}
		return rows.Err()
	})
	return out, err
}

func nowUnix() int64 {
	return time.Now().UTC().Unix()
}
