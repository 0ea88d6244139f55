package cjcs

// Size limits for client-supplied identity fields. Bit-exact across
// implementations of this protocol.
const (
	// HashMaxLen is the fixed width, in bytes, of jobHash/engParamsHash/
	// engParticleHash. Shorter values are right-padded with NUL; longer
	// values are rejected.
	HashMaxLen = 16

	// ClientMaxLen is the maximum length, in characters, of the job's
	// client tag.
	ClientMaxLen = 8
)

// Scheduling priority bounds. Not enforced by CJCS (see DESIGN.md,
// Open Questions) — kept here so callers can validate on the way in if
// they choose to.
const (
	MinJobPriority     = -100
	DefaultJobPriority = 0
	MaxJobPriority     = 100
)

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobStatusNotStarted JobStatus = "notStarted"
	JobStatusStarting   JobStatus = "starting"
	JobStatusRunning    JobStatus = "running"
	JobStatusTestMode   JobStatus = "testMode"
	JobStatusCompleted  JobStatus = "completed"
)

// ModelStatus is the lifecycle state of a model.
type ModelStatus string

const (
	ModelStatusNotStarted ModelStatus = "notStarted"
	ModelStatusRunning    ModelStatus = "running"
	ModelStatusCompleted  ModelStatus = "completed"
)

// CompletionReason annotates why a model reached a terminal state.
// CMPL_REASON_CANCELLED is never set by any operation in this package;
// it is kept enumerated for forward compatibility, matching source
// behavior (see DESIGN.md Open Questions).
type CompletionReason string

const (
	CompletionReasonEOF       CompletionReason = "eof"
	CompletionReasonStopped   CompletionReason = "stopped"
	CompletionReasonKilled    CompletionReason = "killed"
	CompletionReasonError     CompletionReason = "error"
	CompletionReasonOrphan    CompletionReason = "orphan"
	CompletionReasonCancelled CompletionReason = "cancelled"
)

// StopReason is the cross-worker advisory signal stored in engStop.
type StopReason string

const (
	StopReasonKilled  StopReason = "killed"
	StopReasonStopped StopReason = "stopped"
)

// CleaningStatus tracks per-job post-completion cleanup.
type CleaningStatus string

const (
	CleaningStatusNotDone CleaningStatus = "notdone"
	CleaningStatusDone    CleaningStatus = "done"
)

// JobType tags the kind of work a job represents.
type JobType string

const (
	JobTypeHyperSearch     JobType = "hypersearch"
	JobTypeProductionModel JobType = "production-model"
	JobTypeStreamManager   JobType = "stream-manager"
	JobTypeTest            JobType = "test"
)

// schemaVersion is bumped on any incompatible change to the table layout.
// It is compiled in, never read from configuration.
const schemaVersion = 1

// dbRootName is the root of the namespace: <root>_v<version>_<suffix>.
const dbRootName = "client_jobs"
