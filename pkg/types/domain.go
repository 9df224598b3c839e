package types

// Backend represents a discoverable super-resolution model on disk.
type Backend struct {
	// Stable identifier for the backend.
	// example: esrgan-x4
	ID string `json:"id" example:"esrgan-x4"`
	// Human-friendly name.
	// example: ESRGAN (x4)
	Name string `json:"name" example:"ESRGAN (x4)"`
	// Absolute path to the model artifact on disk.
	// example: /var/lib/reconstructd/models/esrgan-x4.pth
	Path string `json:"path" example:"/var/lib/reconstructd/models/esrgan-x4.pth"`
	// Upscaling factor applied by this backend.
	// example: 4
	Scale int `json:"scale" example:"4"`
}

// JobStatus is the lifecycle state of a reconstruction job.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}
