package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Stage represents the coarse phase a job is in
type Stage string

const (
	StageInfo     Stage = "info"
	StageDownload Stage = "download"
	StageConvert  Stage = "convert"
	StageZip      Stage = "zip"
	StageComplete Stage = "complete"
	StageError    Stage = "error"
)

// JobKind distinguishes single-track jobs from playlist jobs
type JobKind string

const (
	KindSingle   JobKind = "single"
	KindPlaylist JobKind = "playlist"
)

// Job represents one user-initiated fetch-and-convert request
type Job struct {
	ID              string    `json:"id" gorm:"primaryKey"`
	URL             string    `json:"url" gorm:"not null"`
	Kind            JobKind   `json:"kind" gorm:"not null"`
	Quality         string    `json:"quality"`
	Stage           Stage     `json:"stage" gorm:"index"`
	Progress        float64   `json:"progress"`
	Title           string    `json:"title,omitempty"`
	CurrentTrack    string    `json:"current_track,omitempty"`
	TotalTracks     int       `json:"total_tracks,omitempty"`
	CompletedTracks int       `json:"completed_tracks,omitempty"`
	ArtifactPath    string    `json:"-" gorm:"column:artifact_path"`
	DisplayName     string    `json:"display_name,omitempty"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	CreatedAt       time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time `json:"updated_at" gorm:"autoUpdateTime"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// NewJob creates a new job for a source URL. The kind is derived from the URL.
func NewJob(url, quality string) *Job {
	return &Job{
		ID:        uuid.New().String(),
		URL:       url,
		Kind:      DetectKind(url),
		Quality:   quality,
		Stage:     StageInfo,
		Progress:  0,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

// SetStage moves the job to a new stage
func (j *Job) SetStage(stage Stage) {
	j.Stage = stage
	j.UpdatedAt = time.Now()
}

// AdvanceProgress raises the job's progress. Progress is cumulative for the
// whole job and never regresses; lower values are ignored.
func (j *Job) AdvanceProgress(progress float64) {
	if progress > 100 {
		progress = 100
	}
	if progress > j.Progress {
		j.Progress = progress
		j.UpdatedAt = time.Now()
	}
}

// MarkComplete records the final artifact and moves the job to the terminal
// complete state.
func (j *Job) MarkComplete(artifactPath, displayName string) {
	j.Stage = StageComplete
	j.Progress = 100
	j.ArtifactPath = artifactPath
	j.DisplayName = displayName
	now := time.Now()
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// MarkFailed moves the job to the terminal error state
func (j *Job) MarkFailed(err error) {
	j.Stage = StageError
	j.ErrorMessage = err.Error()
	now := time.Now()
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// IsTerminal reports whether the job has finished, successfully or not
func (j *Job) IsTerminal() bool {
	return j.Stage == StageComplete || j.Stage == StageError
}

// Event builds a progress event snapshot of the job's current state
func (j *Job) Event(message string) ProgressEvent {
	return ProgressEvent{
		JobID:           j.ID,
		Kind:            j.Kind,
		Stage:           j.Stage,
		Progress:        j.Progress,
		Message:         message,
		CurrentTrack:    j.CurrentTrack,
		TotalTracks:     j.TotalTracks,
		CompletedTracks: j.CompletedTracks,
	}
}

// sourceURLPattern matches track and playlist pages on soundcloud.com.
// Playlist pages carry a "/sets/" path segment.
var sourceURLPattern = regexp.MustCompile(`^https?://(www\.|m\.)?soundcloud\.com/[\w-]+/[^/?#\s]+`)

const playlistMarker = "/sets/"

// ValidateSourceURL rejects URLs that do not point at the platform. It runs
// before any subprocess is spawned.
func ValidateSourceURL(url string) error {
	if !sourceURLPattern.MatchString(url) {
		return ErrInvalidURL
	}
	return nil
}

// DetectKind classifies a source URL as a single track or a playlist
func DetectKind(url string) JobKind {
	if strings.Contains(url, playlistMarker) {
		return KindPlaylist
	}
	return KindSingle
}
