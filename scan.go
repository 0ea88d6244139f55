package cjcs

import (
	"database/sql"
	"time"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows, letting the
// same scan helper serve single-row and multi-row queries.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// jobRowScan mirrors schemadb.JobColumns order with nullable
// intermediates for the columns that may hold NULL.
type jobRowScan struct {
	jobID                    int64
	client                   string
	clientInfo               string
	clientKey                string
	cmdLine                  string
	params                   string
	jobHash                  []byte
	status                   string
	completionReason         sql.NullString
	completionMsg            sql.NullString
	workerCompletionReason   sql.NullString
	workerCompletionMsg      sql.NullString
	cancel                   int64
	startTime                sql.NullInt64
	endTime                  sql.NullInt64
	engLastUpdateTime        int64
	results                  sql.NullString
	engCjmConnID             sql.NullString
	engWorkerState           sql.NullString
	engStatus                sql.NullString
	engModelMilestones       sql.NullString
	minimumWorkers           int64
	maximumWorkers           int64
	priority                 int64
	engAllocateNewWorkers    int64
	engUntendedDeadWorkers   int64
	numFailedWorkers         int64
	lastFailedWorkerErrorMsg sql.NullString
	engJobType               string
	engCleaningStatus        string
}

func (r *jobRowScan) ptrs() []interface{} {
	return []interface{}{
		&r.jobID, &r.client, &r.clientInfo, &r.clientKey, &r.cmdLine, &r.params,
		&r.jobHash, &r.status, &r.completionReason, &r.completionMsg,
		&r.workerCompletionReason, &r.workerCompletionMsg, &r.cancel,
		&r.startTime, &r.endTime, &r.engLastUpdateTime, &r.results,
		&r.engCjmConnID, &r.engWorkerState, &r.engStatus, &r.engModelMilestones,
		&r.minimumWorkers, &r.maximumWorkers, &r.priority,
		&r.engAllocateNewWorkers, &r.engUntendedDeadWorkers, &r.numFailedWorkers,
		&r.lastFailedWorkerErrorMsg, &r.engJobType, &r.engCleaningStatus,
	}
}

func unixToTimePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(n.Int64, 0).UTC()
	return &t
}

func (r *jobRowScan) toInfo() JobInfo {
	return JobInfo{
		JobID:                    r.jobID,
		Client:                   r.client,
		ClientInfo:               r.clientInfo,
		ClientKey:                r.clientKey,
		CmdLine:                  r.cmdLine,
		Params:                   r.params,
		JobHash:                  r.jobHash,
		Status:                   JobStatus(r.status),
		CompletionReason:         r.completionReason.String,
		CompletionMsg:            r.completionMsg.String,
		WorkerCompletionReason:   r.workerCompletionReason.String,
		WorkerCompletionMsg:      r.workerCompletionMsg.String,
		Cancel:                   r.cancel != 0,
		StartTime:                unixToTimePtr(r.startTime),
		EndTime:                  unixToTimePtr(r.endTime),
		EngLastUpdateTime:        time.Unix(r.engLastUpdateTime, 0).UTC(),
		Results:                  r.results.String,
		EngCjmConnID:             r.engCjmConnID.String,
		EngWorkerState:           r.engWorkerState.String,
		EngStatus:                r.engStatus.String,
		EngModelMilestones:       r.engModelMilestones.String,
		MinimumWorkers:           int(r.minimumWorkers),
		MaximumWorkers:           int(r.maximumWorkers),
		Priority:                 int(r.priority),
		EngAllocateNewWorkers:    r.engAllocateNewWorkers != 0,
		EngUntendedDeadWorkers:   int(r.engUntendedDeadWorkers),
		NumFailedWorkers:         int(r.numFailedWorkers),
		LastFailedWorkerErrorMsg: r.lastFailedWorkerErrorMsg.String,
		EngJobType:               JobType(r.engJobType),
		EngCleaningStatus:        CleaningStatus(r.engCleaningStatus),
	}
}

func scanJobInfo(row rowScanner, info *JobInfo) error {
	var r jobRowScan
	if err := row.Scan(r.ptrs()...); err != nil {
		return err
	}
	*info = r.toInfo()
	return nil
}

// modelRowScan mirrors schemadb.ModelColumns order.
type modelRowScan struct {
	modelID           int64
	jobID             int64
	params            string
	engParamsHash     []byte
	engParticleHash   []byte
	status            string
	completionReason  sql.NullString
	results           sql.NullString
	optimizedMetric   sql.NullFloat64
	updateCounter     int64
	numRecords        int64
	cpuTime           float64
	modelCheckpointID sql.NullString
	engStop           sql.NullString
	engMatured        int64
	engLastUpdateTime int64
	engWorkerConnID   sql.NullString
	startTime         sql.NullInt64
	endTime           sql.NullInt64
}

func (r *modelRowScan) ptrs() []interface{} {
	return []interface{}{
		&r.modelID, &r.jobID, &r.params, &r.engParamsHash, &r.engParticleHash,
		&r.status, &r.completionReason, &r.results, &r.optimizedMetric,
		&r.updateCounter, &r.numRecords, &r.cpuTime, &r.modelCheckpointID,
		&r.engStop, &r.engMatured, &r.engLastUpdateTime, &r.engWorkerConnID,
		&r.startTime, &r.endTime,
	}
}

func (r *modelRowScan) toInfo() ModelInfo {
	var metric *float64
	if r.optimizedMetric.Valid {
		v := r.optimizedMetric.Float64
		metric = &v
	}
	return ModelInfo{
		ModelID:           r.modelID,
		JobID:             r.jobID,
		Params:            r.params,
		EngParamsHash:     r.engParamsHash,
		EngParticleHash:   r.engParticleHash,
		Status:            ModelStatus(r.status),
		CompletionReason:  r.completionReason.String,
		Results:           r.results.String,
		OptimizedMetric:   metric,
		UpdateCounter:     r.updateCounter,
		NumRecords:        r.numRecords,
		CPUTime:           r.cpuTime,
		ModelCheckpointID: r.modelCheckpointID.String,
		EngStop:           r.engStop.String,
		EngMatured:        r.engMatured != 0,
		EngLastUpdateTime: time.Unix(r.engLastUpdateTime, 0).UTC(),
		EngWorkerConnID:   r.engWorkerConnID.String,
		StartTime:         unixToTimePtr(r.startTime),
		EndTime:           unixToTimePtr(r.endTime),
	}
}

func scanModelInfo(row rowScanner, info *ModelInfo) error {
	var r modelRowScan
	if err := row.Scan(r.ptrs()...); err != nil {
		return err
	}
	*info = r.toInfo()
	return nil
}

// nullableModelRowScan mirrors schemadb.ModelColumns order with every
// field nullable, for a LEFT JOIN where the model side may be entirely
// absent.
type nullableModelRowScan struct {
	modelID           sql.NullInt64
	jobID             sql.NullInt64
	params            sql.NullString
	engParamsHash     []byte
	engParticleHash   []byte
	status            sql.NullString
	completionReason  sql.NullString
	results           sql.NullString
	optimizedMetric   sql.NullFloat64
	updateCounter     sql.NullInt64
	numRecords        sql.NullInt64
	cpuTime           sql.NullFloat64
	modelCheckpointID sql.NullString
	engStop           sql.NullString
	engMatured        sql.NullInt64
	engLastUpdateTime sql.NullInt64
	engWorkerConnID   sql.NullString
	startTime         sql.NullInt64
	endTime           sql.NullInt64
}

func (r *nullableModelRowScan) ptrs() []interface{} {
	return []interface{}{
		&r.modelID, &r.jobID, &r.params, &r.engParamsHash, &r.engParticleHash,
		&r.status, &r.completionReason, &r.results, &r.optimizedMetric,
		&r.updateCounter, &r.numRecords, &r.cpuTime, &r.modelCheckpointID,
		&r.engStop, &r.engMatured, &r.engLastUpdateTime, &r.engWorkerConnID,
		&r.startTime, &r.endTime,
	}
}

// toInfo returns nil when the join found no matching model row.
func (r *nullableModelRowScan) toInfo() *ModelInfo {
	if !r.modelID.Valid {
		return nil
	}
	var metric *float64
	if r.optimizedMetric.Valid {
		v := r.optimizedMetric.Float64
		metric = &v
	}
	return &ModelInfo{
		ModelID:           r.modelID.Int64,
		JobID:             r.jobID.Int64,
		Params:            r.params.String,
		EngParamsHash:     r.engParamsHash,
		EngParticleHash:   r.engParticleHash,
		Status:            ModelStatus(r.status.String),
		CompletionReason:  r.completionReason.String,
		Results:           r.results.String,
		OptimizedMetric:   metric,
		UpdateCounter:     r.updateCounter.Int64,
		NumRecords:        r.numRecords.Int64,
		CPUTime:           r.cpuTime.Float64,
		ModelCheckpointID: r.modelCheckpointID.String,
		EngStop:           r.engStop.String,
		EngMatured:        r.engMatured.Int64 != 0,
		EngLastUpdateTime: time.Unix(r.engLastUpdateTime.Int64, 0).UTC(),
		EngWorkerConnID:   r.engWorkerConnID.String,
		StartTime:         unixToTimePtr(r.startTime),
		EndTime:           unixToTimePtr(r.endTime),
	}
}

// idAndValues is the intermediate result of a (id, dynamic field...) scan.
type idAndValues struct {
	id     int64
	values []interface{}
}

func scanRowWithID(rows *sql.Rows, n int) (idAndValues, error) {
	var id int64
	values := make([]interface{}, n)
	ptrs := make([]interface{}, n)
	for i := range values {
		ptrs[i] = &values[i]
	}
	dest := append([]interface{}{&id}, ptrs...)
	if err := rows.Scan(dest...); err != nil {
		return idAndValues{}, err
	}
	return idAndValues{id: id, values: values}, nil
}
