package cjcs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/ternarybob/cjcs/internal/retry"
	"github.com/ternarybob/cjcs/internal/schemadb"
)

// InsertAndStart inserts a new model row in the running state, owned by
// this process, unless a model already exists for either hash within
// the job — in which case the existing modelId is returned and ours is
// false. particleHash defaults to paramsHash when nil.
//
// The protocol is composed as a single retry-enveloped closure around
// the entire pre-check/insert/reconcile sequence, never around the bare
// INSERT: a lost connection during insertion must not be blindly
// re-driven since that would risk a second row for the same
// parameterization.
func (h *Handle) InsertAndStart(ctx context.Context, jobID int64, params string, paramsHash, particleHash []byte) (int64, bool, error) {
	if particleHash == nil {
		particleHash = paramsHash
	}
	pHash, err := normalizeJobHash(paramsHash)
	if err != nil {
		return 0, false, err
	}
	qHash, err := normalizeJobHash(particleHash)
	if err != nil {
		return 0, false, err
	}

	var modelID int64
	var ours bool

	err = h.retry.Do(ctx, func() error {
		// 1. Pre-check: another retry attempt, or another process, may
		// already have claimed this parameterization.
		if id, found, findErr := h.findModelByHashes(ctx, jobID, pHash, qHash); findErr != nil {
			return findErr
		} else if found {
			modelID = id
			ours = false
			return nil
		}

		// 2/3. Insert; a uniqueness violation here is the tolerated
		// duplicate-key race, not a fatal error.
		res, insErr := h.session.DB().ExecContext(ctx, `
			INSERT INTO models
				(job_id, params, status, _eng_params_hash, _eng_particle_hash,
				 start_time, _eng_last_update_time, _eng_worker_conn_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			jobID, params, string(ModelStatusRunning), pHash, qHash,
			nowUnix(), nowUnix(), h.session.ConnID())

		dup := false
		if insErr != nil {
			if !retry.IsDuplicateKey(insErr) {
				return insErr
			}
			dup = true
		}

		if !dup {
			// 4. Success path.
			if n, _ := res.RowsAffected(); n == 1 {
				if id, idErr := res.LastInsertId(); idErr == nil && id != 0 {
					modelID = id
					ours = true
					return nil
				}
				h.logger.Warn().Int64("jobId", jobID).
					Msg("model insert lost its assigned id, reconciling by hash lookup")
			} else {
				h.logger.Error().Int64("jobId", jobID).
					Msg("model insert affected an unexpected number of rows, reconciling by hash lookup")
			}
		}

		// 5. Post-hoc reconciliation, without retry: look up by the exact
		// hash pair first, then fall back to an either-hash match.
		id, ownerConn, found, findErr := h.findModelWithOwner(ctx, jobID, pHash, qHash)
		if findErr != nil {
			return findErr
		}
		if found {
			modelID = id
			ours = ownerConn == h.session.ConnID()
			return nil
		}

		id, findErr = h.findModelByEitherHash(ctx, jobID, pHash, qHash)
		if findErr != nil {
			return findErr
		}
		modelID = id
		ours = false
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return modelID, ours, nil
}

func (h *Handle) findModelByHashes(ctx context.Context, jobID int64, pHash, qHash []byte) (int64, bool, error) {
	row := h.session.DB().QueryRowContext(ctx, `
		SELECT model_id FROM models
		WHERE job_id = ? AND _eng_params_hash = ? AND _eng_particle_hash = ?`,
		jobID, pHash, qHash)
	var id int64
	switch err := row.Scan(&id); err {
	case nil:
		return id, true, nil
	case sql.ErrNoRows:
		return 0, false, nil
	default:
		return 0, false, err
	}
}

func (h *Handle) findModelWithOwner(ctx context.Context, jobID int64, pHash, qHash []byte) (int64, string, bool, error) {
	row := h.session.DB().QueryRowContext(ctx, `
		SELECT model_id, _eng_worker_conn_id FROM models
		WHERE job_id = ? AND _eng_params_hash = ? AND _eng_particle_hash = ?`,
		jobID, pHash, qHash)
	var id int64
	var conn sql.NullString
	switch err := row.Scan(&id, &conn); err {
	case nil:
		return id, conn.String, true, nil
	case sql.ErrNoRows:
		return 0, "", false, nil
	default:
		return 0, "", false, err
	}
}

func (h *Handle) findModelByEitherHash(ctx context.Context, jobID int64, pHash, qHash []byte) (int64, error) {
	row := h.session.DB().QueryRowContext(ctx, `
		SELECT model_id FROM models
		WHERE job_id = ? AND (_eng_params_hash = ? OR _eng_particle_hash = ?)
		LIMIT 1`, jobID, pHash, qHash)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to reconcile model insert for job %d: %w", jobID, err)
	}
	return id, nil
}

// ModelsInfo returns every public field for each model. Ordering is not
// preserved; a short result set means one or more ids do not exist.
func (h *Handle) ModelsInfo(ctx context.Context, ids []int64) ([]ModelInfo, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("cjcs: modelIDs is empty")
	}
	if hasDuplicates(ids) {
		return nil, ErrDuplicateIDs
	}

	var out []ModelInfo
	err := h.retry.Do(ctx, func() error {
		out = nil
		query := fmt.Sprintf(`SELECT %s FROM models WHERE model_id IN (%s)`,
			quoteIdents(schemadb.ModelColumns), placeholders(len(ids)))
		rows, qErr := h.session.DB().QueryContext(ctx, query, int64SliceToArgs(ids)...)
		if qErr != nil {
			return qErr
		}
		defer rows.Close()
		for rows.Next() {
			var mi ModelInfo
			if scanErr := scanModelInfo(rows, &mi); scanErr != nil {
				return scanErr
			}
			out = append(out, mi)
		}
		if rErr := rows.Err(); rErr != nil {
			return rErr
		}
		if len(out) != len(ids) {
			return ErrNotFound
		}
		return nil
	})
	return out, err
}

// ModelsGetFields fetches the named public fields for each requested
// model. A short result set is fatal.
func (h *Handle) ModelsGetFields(ctx context.Context, ids []int64, fields []string) ([]FieldRow, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("cjcs: modelIDs is empty")
	}
	if hasDuplicates(ids) {
		return nil, ErrDuplicateIDs
	}
	cols, err := dbColumnsFor(schemadb.ModelPubToDB, fields)
	if err != nil {
		return nil, err
	}

	var out []FieldRow
	err = h.retry.Do(ctx, func() error {
		out = nil
		query := fmt.Sprintf(`SELECT model_id, %s FROM models WHERE model_id IN (%s)`,
			quoteIdents(cols), placeholders(len(ids)))
		rows, qErr := h.session.DB().QueryContext(ctx, query, int64SliceToArgs(ids)...)
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
		if rErr := rows.Err(); rErr != nil {
			return rErr
		}
		if len(out) < len(ids) {
			return ErrNotFound
		}
		return nil
	})
	return out, err
}

// ModelsGetParams returns (modelId, params, engParamsHash) for each model.
func (h *Handle) ModelsGetParams(ctx context.Context, ids []int64) ([]FieldRow, error) {
	return h.ModelsGetFields(ctx, ids, []string{"params", "engParamsHash"})
}

// ModelsGetResultAndStatus returns (modelId, results, status,
// updateCounter, numRecords, completionReason, engParamsHash) for each
// model.
func (h *Handle) ModelsGetResultAndStatus(ctx context.Context, ids []int64) ([]FieldRow, error) {
	return h.ModelsGetFields(ctx, ids, []string{
		"results", "status", "updateCounter", "numRecords", "completionReason", "engParamsHash",
	})
}

// ModelsGetUpdateCounters returns (modelId, updateCounter) for every
// model belonging to a job.
func (h *Handle) ModelsGetUpdateCounters(ctx context.Context, jobID int64) ([]FieldRow, error) {
	var out []FieldRow
	err := h.retry.Do(ctx, func() error {
		out = nil
		rows, qErr := h.session.DB().QueryContext(ctx,
			`SELECT model_id, update_counter FROM models WHERE job_id = ?`, jobID)
		if qErr != nil {
			return qErr
		}
		defer rows.Close()
		for rows.Next() {
			vals, scanErr := scanRowWithID(rows, 1)
			if scanErr != nil {
				return scanErr
			}
			out = append(out, FieldRow{ID: vals.id, Values: vals.values})
		}
		return rows.Err()
	})
	return out, err
}

// ModelsGetFieldsForJob returns the named fields for every model of a
// job, possibly empty. When ignoreKilled is set, models whose
// completionReason is "killed" are excluded.
func (h *Handle) ModelsGetFieldsForJob(ctx context.Context, jobID int64, fields []string, ignoreKilled bool) ([]FieldRow, error) {
	cols, err := dbColumnsFor(schemadb.ModelPubToDB, fields)
	if err != nil {
		return nil, err
	}
	var out []FieldRow
	err = h.retry.Do(ctx, func() error {
		out = nil
		query := fmt.Sprintf(`SELECT model_id, %s FROM models WHERE job_id = ?`, quoteIdents(cols))
		args := []interface{}{jobID}
		if ignoreKilled {
			query += ` AND (completion_reason IS NULL OR completion_reason != ?)`
			args = append(args, string(CompletionReasonKilled))
		}
		rows, qErr := h.session.DB().QueryContext(ctx, query, args...)
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

// ModelsGetFieldsForCheckpointed returns the named fields for every
// model of a job that has a non-null modelCheckpointId.
func (h *Handle) ModelsGetFieldsForCheckpointed(ctx context.Context, jobID int64, fields []string) ([]FieldRow, error) {
	cols, err := dbColumnsFor(schemadb.ModelPubToDB, fields)
	if err != nil {
		return nil, err
	}
	var out []FieldRow
	err = h.retry.Do(ctx, func() error {
		out = nil
		query := fmt.Sprintf(`
			SELECT model_id, %s FROM models
			WHERE job_id = ? AND model_checkpoint_id IS NOT NULL`, quoteIdents(cols))
		rows, qErr := h.session.DB().QueryContext(ctx, query, jobID)
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

// ModelSetFields bulk-updates named public fields on one model. Not
// ownership-gated: used by authoritative components that bypass the
// worker-ownership check. Every call increments updateCounter.
func (h *Handle) ModelSetFields(ctx context.Context, modelID int64, fields map[string]interface{}, ignoreUnchanged bool) error {
	if len(fields) == 0 {
		return nil
	}
	return h.retry.Do(ctx, func() error {
		assignments := ""
		args := make([]interface{}, 0, len(fields)+1)
		first := true
		for pub, val := range fields {
			col, ok := schemadb.ModelPubToDB[pub]
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
		query := fmt.Sprintf(`UPDATE models SET %s, update_counter = update_counter + 1 WHERE model_id = ?`, assignments)
		args = append(args, modelID)

		res, err := h.session.DB().ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n != 1 && !ignoreUnchanged {
			return ErrRowCountMismatch
		}
		return nil
	})
}

// ModelUpdateResults refreshes a model's progress fields, gated on this
// process owning engWorkerConnId. NaN metric values are filtered out.
// Zero rows affected is InvalidOwnership.
func (h *Handle) ModelUpdateResults(ctx context.Context, modelID int64, results *string, metricValue *float64, numRecords *int64) error {
	return h.retry.Do(ctx, func() error {
		assignments := []string{"_eng_last_update_time = ?", "update_counter = update_counter + 1"}
		args := []interface{}{nowUnix()}

		if results != nil {
			assignments = append(assignments, "results = ?")
			args = append(args, *results)
		}
		if numRecords != nil {
			assignments = append(assignments, "num_records = ?")
			args = append(args, *numRecords)
		}
		if metricValue != nil && !math.IsNaN(*metricValue) {
			assignments = append(assignments, "optimized_metric = ?")
			args = append(args, *metricValue)
		}

		query := "UPDATE models SET "
		for i, a := range assignments {
			if i > 0 {
				query += ", "
			}
			query += a
		}
		query += " WHERE model_id = ? AND _eng_worker_conn_id = ?"
		args = append(args, modelID, h.session.ConnID())

		res, err := h.session.DB().ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return ErrInvalidOwnership
		}
		return nil
	})
}

// ModelUpdateTimestamp is the zero-change form of ModelUpdateResults,
// used as a liveness heartbeat.
func (h *Handle) ModelUpdateTimestamp(ctx context.Context, modelID int64) error {
	return h.ModelUpdateResults(ctx, modelID, nil, nil, nil)
}

// ModelSetCompleted marks a model completed with the given terminal
// annotations. Same ownership discipline as ModelUpdateResults when
// useConn is set.
func (h *Handle) ModelSetCompleted(ctx context.Context, modelID int64, reason CompletionReason, msg string, cpuTime float64, useConn bool) error {
	return h.retry.Do(ctx, func() error {
		query := `
			UPDATE models SET status = ?, completion_reason = ?, completion_msg = ?,
			                  end_time = ?, cpu_time = ?, _eng_last_update_time = ?,
			                  update_counter = update_counter + 1
			WHERE model_id = ?`
		now := nowUnix()
		args := []interface{}{string(ModelStatusCompleted), string(reason), msg, now, cpuTime, now, modelID}
		if useConn {
			query += ` AND _eng_worker_conn_id = ?`
			args = append(args, h.session.ConnID())
		}
		res, err := h.session.DB().ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return ErrInvalidOwnership
		}
		return nil
	})
}

// AdoptNextOrphan searches for a model whose owner has not heartbeat
// within maxUpdateIntervalSeconds and reassigns it to this process. It
// loops until an adoption succeeds or no candidate remains, since a
// candidate may be adopted by a competing worker between the find and
// the claim.
func (h *Handle) AdoptNextOrphan(ctx context.Context, jobID int64, maxUpdateIntervalSeconds int64) (int64, bool, error) {
	var adopted int64
	var found bool

	for {
		var candidateID int64
		err := h.retry.Do(ctx, func() error {
			row := h.session.DB().QueryRowContext(ctx, `
				SELECT model_id FROM models
				WHERE status = ? AND job_id = ? AND (? - _eng_last_update_time) > ?
				LIMIT 1`,
				string(ModelStatusRunning), jobID, nowUnix(), maxUpdateIntervalSeconds)
			return row.Scan(&candidateID)
		})
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		if err != nil {
			return 0, false, err
		}

		claimed, claimErr := h.tryAdoptModel(ctx, candidateID, maxUpdateIntervalSeconds)
		if claimErr != nil {
			return 0, false, claimErr
		}
		if claimed {
			adopted = candidateID
			found = true
			break
		}
	}
	return adopted, found, nil
}

func (h *Handle) tryAdoptModel(ctx context.Context, modelID, maxUpdateIntervalSeconds int64) (bool, error) {
	var claimed bool
	err := h.retry.Do(ctx, func() error {
		res, err := h.session.DB().ExecContext(ctx, `
			UPDATE models SET _eng_worker_conn_id = ?, _eng_last_update_time = ?
			WHERE model_id = ? AND status = ? AND (? - _eng_last_update_time) > ?`,
			h.session.ConnID(), nowUnix(), modelID, string(ModelStatusRunning),
			nowUnix(), maxUpdateIntervalSeconds)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 1 {
			claimed = true
			return nil
		}

		// Discern transient failure (we actually own it) from loss (someone
		// else claimed it) by re-reading the row.
		row := h.session.DB().QueryRowContext(ctx,
			`SELECT status, _eng_worker_conn_id FROM models WHERE model_id = ?`, modelID)
		var status string
		var conn sql.NullString
		if scanErr := row.Scan(&status, &conn); scanErr != nil {
			if errors.Is(scanErr, sql.ErrNoRows) {
				claimed = false
				return nil
			}
			return scanErr
		}
		claimed = status == string(ModelStatusRunning) && conn.String == h.session.ConnID()
		return nil
	})
	return claimed, err
}

// ModelsClearAll deletes every row from the models table.
func (h *Handle) ModelsClearAll(ctx context.Context) error {
	return h.retry.Do(ctx, func() error {
		_, err := h.session.DB().ExecContext(ctx, `DELETE FROM models`)
		return err
	})
}

// GetModelIDsForJob returns every modelId belonging to a job, possibly
// empty.
func (h *Handle) GetModelIDsForJob(ctx context.Context, jobID int64) ([]int64, error) {
	var ids []int64
	err := h.retry.Do(ctx, func() error {
		ids = nil
		rows, qErr := h.session.DB().QueryContext(ctx,
			`SELECT model_id FROM models WHERE job_id = ?`, jobID)
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

func int64SliceToArgs(ids []int64) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
