package types

// JobView is the read-only projection of a job returned by GET /api/jobs/{id}.
type JobView struct {
	// Opaque job token assigned at submission.
	// example: 3f2a9c1e4b5d4f60a7c8d9e0f1a2b3c4
	JobID string `json:"job_id" example:"3f2a9c1e4b5d4f60a7c8d9e0f1a2b3c4"`
	// Current lifecycle state.
	// example: processing
	Status JobStatus `json:"status" example:"processing"`
	// Completion percentage in [0,100]; monotonically non-decreasing.
	// example: 45
	Progress int `json:"progress" example:"45"`
	// Short human-readable stage description.
	// example: upscaling tile 3/8
	Message string `json:"message" example:"upscaling tile 3/8"`
	// Backend the job was submitted against.
	// example: esrgan-x4
	Backend string `json:"backend" example:"esrgan-x4"`
	// Path of the reconstructed artifact; set only once the job completed.
	// example: /var/lib/reconstructd/data/outputs/3f2a9c1e.png
	OutputPath string `json:"output_path,omitempty" example:"/var/lib/reconstructd/data/outputs/3f2a9c1e.png"`
	// Sanitized failure detail; set only when status is failed.
	Error string `json:"error,omitempty"`
	// Submission time in unix seconds.
	// example: 1700000000
	CreatedUnix int64 `json:"created_unix" example:"1700000000"`
	// Time the job reached a terminal state, unix seconds; 0 while live.
	FinishedUnix int64 `json:"finished_unix,omitempty"`
}

// SubmitResponse is returned by POST /api/jobs.
type SubmitResponse struct {
	// Token identifying the newly created job.
	// example: 3f2a9c1e4b5d4f60a7c8d9e0f1a2b3c4
	JobID string `json:"job_id" example:"3f2a9c1e4b5d4f60a7c8d9e0f1a2b3c4"`
}

// CancelResponse is returned by DELETE /api/jobs/{id}.
type CancelResponse struct {
	// True when the cancellation request was accepted; false when the job
	// was already in a terminal state.
	// example: true
	Cancelled bool `json:"cancelled" example:"true"`
}

// BackendsResponse wraps the list returned by GET /api/backends.
type BackendsResponse struct {
	Backends []Backend `json:"backends"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: job not found
	Error string `json:"error" example:"job not found"`
	// HTTP status code.
	// example: 404
	Code int `json:"code" example:"404"`
}

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	// Overall service status: "ok" or "degraded".
	// example: ok
	Status string `json:"status" example:"ok"`
	// ID of the currently loaded backend, empty when nothing is loaded yet.
	// example: esrgan-x4
	CurrentBackend string `json:"current_backend,omitempty" example:"esrgan-x4"`
	// Execution device resolved at startup.
	// example: cpu
	Device string `json:"device" example:"cpu"`
	// Backends whose last load attempt failed, with sanitized reasons.
	Degraded map[string]string `json:"degraded,omitempty"`
}

// StatusResponse is the operational snapshot returned by GET /status.
type StatusResponse struct {
	// Number of jobs waiting for a concurrency slot.
	// example: 3
	QueueLen int `json:"queue_len" example:"3"`
	// Number of jobs currently executing.
	// example: 2
	Running int `json:"running" example:"2"`
	// Configured concurrency bound.
	// example: 2
	MaxConcurrent int `json:"max_concurrent" example:"2"`
	// Total jobs submitted since process start.
	// example: 120
	SubmittedTotal uint64 `json:"submitted_total" example:"120"`
	// Jobs finished per terminal status since process start.
	CompletedTotal map[string]uint64 `json:"completed_total"`
	// ID of the currently loaded backend.
	// example: esrgan-x4
	CurrentBackend string `json:"current_backend,omitempty" example:"esrgan-x4"`
	// Total backend loads performed.
	// example: 4
	LoadsTotal uint64 `json:"loads_total" example:"4"`
	// Total backend swaps (a load replacing a different loaded backend).
	// example: 3
	SwapsTotal uint64 `json:"swaps_total" example:"3"`
	// Execution device resolved at startup.
	// example: cpu
	Device string `json:"device" example:"cpu"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
