package domain

// JobStats holds aggregate counts over recorded jobs
type JobStats struct {
	Total     int64 `json:"total"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// JobRepository persists job records. Artifacts themselves are transient
// disk files; only the job rows survive for history and stats.
type JobRepository interface {
	Create(job *Job) error
	Update(job *Job) error
	Delete(id string) error
	FindByID(id string) (*Job, error)
	FindAll(filters map[string]interface{}) ([]*Job, error)
	GetStats() (*JobStats, error)
	Close() error
}
