package domain

// ProgressEvent is an immutable progress record pushed to subscribers.
// For a given job, events are delivered in the order they were produced and
// Progress never regresses.
type ProgressEvent struct {
	JobID           string  `json:"job_id"`
	Kind            JobKind `json:"kind"`
	Stage           Stage   `json:"stage"`
	Progress        float64 `json:"progress"`
	Message         string  `json:"message,omitempty"`
	CurrentTrack    string  `json:"current_track,omitempty"`
	TotalTracks     int     `json:"total_tracks,omitempty"`
	CompletedTracks int     `json:"completed_tracks,omitempty"`
}
