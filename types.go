package cjcs

import "time"

// JobInfo is the full public-field record for a job, returned by Info.
type JobInfo struct {
	JobID                    int64
	Client                   string
	ClientInfo               string
	ClientKey                string
	CmdLine                  string
	Params                   string
	JobHash                  []byte
	Status                   JobStatus
	CompletionReason         string
	CompletionMsg            string
	WorkerCompletionReason   string
	WorkerCompletionMsg      string
	Cancel                   bool
	StartTime                *time.Time
	EndTime                  *time.Time
	EngLastUpdateTime        time.Time
	Results                  string
	EngCjmConnID             string
	EngWorkerState           string
	EngStatus                string
	EngModelMilestones       string
	MinimumWorkers           int
	MaximumWorkers           int
	Priority                 int
	EngAllocateNewWorkers    bool
	EngUntendedDeadWorkers   int
	NumFailedWorkers         int
	LastFailedWorkerErrorMsg string
	EngJobType               JobType
	EngCleaningStatus        CleaningStatus
}

// ModelInfo is the full public-field record for a model.
type ModelInfo struct {
	ModelID           int64
	JobID             int64
	Params            string
	EngParamsHash     []byte
	EngParticleHash   []byte
	Status            ModelStatus
	CompletionReason  string
	Results           string
	OptimizedMetric   *float64
	UpdateCounter     int64
	NumRecords        int64
	CPUTime           float64
	ModelCheckpointID string
	EngStop           string
	EngMatured        bool
	EngLastUpdateTime time.Time
	EngWorkerConnID   string
	StartTime         *time.Time
	EndTime           *time.Time
}

// JobModelInfo is one row of the job/model cross-product returned by
// InfoWithModels: the job's fields paired with one model's fields, or
// with Model == nil when the job has no models.
type JobModelInfo struct {
	Job   JobInfo
	Model *ModelInfo
}

// JobDemand is the scheduling tuple GetDemand returns for each running job.
type JobDemand struct {
	JobID                  int64
	MinimumWorkers         int
	MaximumWorkers         int
	Priority               int
	EngAllocateNewWorkers  bool
	EngUntendedDeadWorkers int
	NumFailedWorkers       int
	EngJobType             JobType
}

// FieldRow is one row of a dynamic field-list read: an owning
// identifier paired with the requested column values in request order.
type FieldRow struct {
	ID     int64
	Values []interface{}
}

// InsertParams bundles the fields an admission call accepts.
type InsertParams struct {
	Client     string `validate:"max=8"`
	ClientInfo string
	ClientKey  string
	CmdLine    string `validate:"required"`
	Params     string
	MinWorkers int `validate:"gte=0"`
	MaxWorkers int `validate:"gte=0"`
	Priority   int
	JobType    JobType
}
