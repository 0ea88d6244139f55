package schemadb

// JobColumns and ModelColumns are the single declaration shared between
// DDL emission (schema.go) and the public name-mapping tables: one
// schema declaration instead of runtime introspection. Order matches
// the CREATE TABLE column order so SELECT * FROM <table> can be zipped
// positionally with these names when a caller needs a dynamic field
// list (GetFields/SetFields).
var JobColumns = []string{
	"job_id",
	"client",
	"client_info",
	"client_key",
	"cmd_line",
	"params",
	"job_hash",
	"status",
	"completion_reason",
	"completion_msg",
	"worker_completion_reason",
	"worker_completion_msg",
	"cancel",
	"start_time",
	"end_time",
	"_eng_last_update_time",
	"results",
	"_eng_cjm_conn_id",
	"_eng_worker_state",
	"_eng_status",
	"_eng_model_milestones",
	"minimum_workers",
	"maximum_workers",
	"priority",
	"_eng_allocate_new_workers",
	"_eng_untended_dead_workers",
	"num_failed_workers",
	"last_failed_worker_error_msg",
	"_eng_job_type",
	"_eng_cleaning_status",
}

var ModelColumns = []string{
	"model_id",
	"job_id",
	"params",
	"_eng_params_hash",
	"_eng_particle_hash",
	"status",
	"completion_reason",
	"results",
	"optimized_metric",
	"update_counter",
	"num_records",
	"cpu_time",
	"model_checkpoint_id",
	"_eng_stop",
	"_eng_matured",
	"_eng_last_update_time",
	"_eng_worker_conn_id",
	"start_time",
	"end_time",
}

// JobPubToDB / JobDBToPub and ModelPubToDB / ModelDBToPub are computed
// once at package init.
var (
	JobPubToDB, JobDBToPub     = BuildNameMaps(JobColumns)
	ModelPubToDB, ModelDBToPub = BuildNameMaps(ModelColumns)
)
