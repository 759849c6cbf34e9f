package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/sc-fetch-go/internal/domain"
	"github.com/yourusername/sc-fetch-go/internal/infrastructure"
)

// Progress ranges. Progress is cumulative across the whole job: the info
// phase ends at 10 (5 for playlists), downloading spans up to 80 (75 for
// playlists, divided per track), conversion and archiving fill the rest.
const (
	singleInfoEnd       = 10.0
	singleDownloadEnd   = 80.0
	singleConvertMark   = 85.0
	singleConvertedMark = 90.0
	singleCleanupMark   = 95.0

	playlistInfoEnd     = 5.0
	playlistDownloadEnd = 75.0
	zipEnd              = 95.0
)

var qualityPattern = regexp.MustCompile(`^([0-9]|10)$`)

// JobManager orchestrates the two-phase extraction flow per job: metadata
// fetch, then download+convert, then an optional archive for playlists.
// Each job is driven by a single goroutine; shared state is limited to the
// job registry and the broadcaster, both keyed by job id.
type JobManager struct {
	repo        domain.JobRepository
	invoker     *infrastructure.Invoker
	parser      *infrastructure.OutputParser
	archiver    *infrastructure.Archiver
	broadcaster *Broadcaster
	notifier    *infrastructure.NotificationService
	config      *domain.Config
	logger      *zap.Logger

	mu   sync.RWMutex
	jobs map[string]*domain.Job

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewJobManager creates a new job orchestrator
func NewJobManager(
	repo domain.JobRepository,
	invoker *infrastructure.Invoker,
	archiver *infrastructure.Archiver,
	broadcaster *Broadcaster,
	notifier *infrastructure.NotificationService,
	config *domain.Config,
	logger *zap.Logger,
) *JobManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &JobManager{
		repo:        repo,
		invoker:     invoker,
		parser:      infrastructure.NewOutputParser(),
		archiver:    archiver,
		broadcaster: broadcaster,
		notifier:    notifier,
		config:      config,
		logger:      logger,
		jobs:        make(map[string]*domain.Job),
		baseCtx:     ctx,
		cancel:      cancel,
	}
}

// Submit validates the request, records the job and starts it. Validation
// failures are returned before any subprocess is spawned.
func (m *JobManager) Submit(url, quality string) (*domain.Job, error) {
	if err := domain.ValidateSourceURL(url); err != nil {
		return nil, err
	}

	if quality == "" {
		quality = m.config.Extractor.AudioQuality
	}
	if !qualityPattern.MatchString(quality) {
		return nil, fmt.Errorf("%w: quality must be 0-10, got %q", domain.ErrInvalidURL, quality)
	}

	job := domain.NewJob(url, quality)

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	if err := m.repo.Create(job); err != nil {
		return nil, fmt.Errorf("failed to record job: %w", err)
	}

	m.logger.Info("Job submitted",
		zap.String("id", job.ID),
		zap.String("url", url),
		zap.String("kind", string(job.Kind)))

	m.wg.Add(1)
	go m.run(job)

	return m.snapshot(job), nil
}

// GetJob returns a snapshot of a live job, falling back to the history
// repository for jobs no longer in memory
func (m *JobManager) GetJob(id string) (*domain.Job, error) {
	m.mu.RLock()
	job, ok := m.jobs[id]
	m.mu.RUnlock()
	if ok {
		return m.snapshot(job), nil
	}
	return m.repo.FindByID(id)
}

// ListJobs lists recorded jobs with optional filters
func (m *JobManager) ListJobs(filters map[string]interface{}) ([]*domain.Job, error) {
	return m.repo.FindAll(filters)
}

// GetStats returns aggregate job statistics
func (m *JobManager) GetStats() (*domain.JobStats, error) {
	return m.repo.GetStats()
}

// ActiveCount returns the number of in-flight jobs
func (m *JobManager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, job := range m.jobs {
		if !job.IsTerminal() {
			count++
		}
	}
	return count
}

// Stop cancels all in-flight subprocesses and waits for job goroutines
func (m *JobManager) Stop() {
	m.cancel()
	m.wg.Wait()
}

// Wait blocks until all running jobs have finished
func (m *JobManager) Wait() {
	m.wg.Wait()
}

func (m *JobManager) run(job *domain.Job) {
	defer m.wg.Done()

	if err := m.execute(m.baseCtx, job); err != nil {
		m.logger.Error("Job failed",
			zap.String("id", job.ID),
			zap.String("url", job.URL),
			zap.Error(err))

		m.transition(job, err.Error(), func() {
			job.MarkFailed(err)
		})
		m.persist(job)
		m.notifier.NotifyJobFailed(m.snapshot(job))
		return
	}

	m.logger.Info("Job complete",
		zap.String("id", job.ID),
		zap.String("artifact", m.snapshot(job).ArtifactPath))

	m.persist(job)
	m.notifier.NotifyJobCompleted(m.snapshot(job))
}

func (m *JobManager) execute(ctx context.Context, job *domain.Job) error {
	title, err := m.fetchTitle(ctx, job)
	if err != nil {
		return err
	}

	m.transition(job, fmt.Sprintf("resolved %q", title), func() {
		job.Title = title
		job.AdvanceProgress(infoEnd(job.Kind))
	})
	m.persist(job)

	workDir, err := m.prepareWorkDir(job)
	if err != nil {
		return err
	}

	ex, err := m.runExtraction(ctx, job, workDir)
	if err != nil {
		return err
	}

	if job.Kind == domain.KindSingle {
		artifact, err := m.resolveArtifact(ex, job, workDir)
		if err != nil {
			return err
		}
		m.transition(job, "done", func() {
			job.MarkComplete(artifact, job.Title+"."+m.config.Extractor.AudioFormat)
		})
		return nil
	}

	return m.finishPlaylist(job, workDir)
}

// fetchTitle runs the metadata-only first phase and returns the sanitized
// track or playlist title
func (m *JobManager) fetchTitle(ctx context.Context, job *domain.Job) (string, error) {
	args := []string{"--skip-download", "--no-warnings"}
	if job.Kind == domain.KindPlaylist {
		args = append(args, "--flat-playlist", "--print", "playlist:title")
	} else {
		args = append(args, "--no-playlist", "--print", "title")
	}
	args = m.appendCookieArgs(args)
	args = append(args, job.URL)

	proc, err := m.invoker.Start(ctx, m.config.Extractor.Binary, args...)
	if err != nil {
		return "", err
	}

	title := ""
	tail, status := drainProcess(proc, func(line string) {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			title = trimmed
		}
	})

	if status.Err != nil {
		return "", fmt.Errorf("metadata fetch did not finish: %w", status.Err)
	}
	if status.Code != 0 {
		return "", &domain.ProcessError{
			Binary:   m.config.Extractor.Binary,
			ExitCode: status.Code,
			Detail:   strings.Join(tail, "; "),
		}
	}

	return domain.SanitizeName(title), nil
}

func (m *JobManager) prepareWorkDir(job *domain.Job) (string, error) {
	dir := m.config.Download.BaseDir
	if job.Kind == domain.KindPlaylist {
		dir = filepath.Join(dir, m.snapshot(job).Title)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	return dir, nil
}

// extraction accumulates per-run parse state
type extraction struct {
	authoritativePath string // from the post-conversion destination line
	provisionalPath   string // from the pre-conversion destination line
	trackIndex        int
	convertSeen       bool
}

// runExtraction runs the download+convert phase, feeding every output line
// through the parser and publishing progress. Both line channels are drained
// before the exit status is read, so "last line parsed" cannot race with
// "process exited".
func (m *JobManager) runExtraction(ctx context.Context, job *domain.Job, workDir string) (*extraction, error) {
	args := []string{
		"-x",
		"--audio-format", m.config.Extractor.AudioFormat,
		"--audio-quality", job.Quality,
		"--newline",
		"-o", filepath.Join(workDir, "%(title)s.%(ext)s"),
	}
	if job.Kind == domain.KindPlaylist {
		args = append(args, "--yes-playlist")
	} else {
		args = append(args, "--no-playlist")
	}
	args = m.appendCookieArgs(args)
	args = append(args, job.URL)

	proc, err := m.invoker.Start(ctx, m.config.Extractor.Binary, args...)
	if err != nil {
		return nil, err
	}

	ex := &extraction{trackIndex: 1}
	tail, status := drainProcess(proc, func(line string) {
		if ev, ok := m.parser.ParseLine(line); ok {
			m.handleLineEvent(job, ex, ev)
		}
	})

	if status.Err != nil {
		return nil, fmt.Errorf("extraction did not finish: %w", status.Err)
	}
	if status.Code != 0 {
		return nil, &domain.ProcessError{
			Binary:   m.config.Extractor.Binary,
			ExitCode: status.Code,
			Detail:   strings.Join(tail, "; "),
		}
	}

	return ex, nil
}

func (m *JobManager) handleLineEvent(job *domain.Job, ex *extraction, ev infrastructure.LineEvent) {
	switch ev.Kind {
	case infrastructure.EventPlaylistItem:
		ex.trackIndex = ev.Index
		ex.convertSeen = false
		m.transition(job, fmt.Sprintf("track %d of %d", ev.Index, ev.Total), func() {
			job.TotalTracks = ev.Total
			job.SetStage(domain.StageDownload)
			job.AdvanceProgress(m.downloadProgress(job, ex, 0))
		})

	case infrastructure.EventDownloadDest:
		ex.provisionalPath = ev.Path
		name := strings.TrimSuffix(filepath.Base(ev.Path), filepath.Ext(ev.Path))
		m.transition(job, "downloading "+name, func() {
			job.CurrentTrack = name
			job.SetStage(domain.StageDownload)
		})

	case infrastructure.EventDownloadProgress:
		m.transition(job, "", func() {
			if job.Stage == domain.StageInfo {
				job.SetStage(domain.StageDownload)
			}
			job.AdvanceProgress(m.downloadProgress(job, ex, ev.Percent))
		})

	case infrastructure.EventConvertStart:
		// Repeated conversion markers before the paired destination line
		// are ignored
		if ex.convertSeen {
			return
		}
		ex.convertSeen = true
		m.transition(job, "converting", func() {
			job.SetStage(domain.StageConvert)
			if job.Kind == domain.KindSingle {
				job.AdvanceProgress(singleConvertMark)
			} else {
				job.AdvanceProgress(m.downloadProgress(job, ex, 100))
			}
		})

	case infrastructure.EventConvertDest:
		// The post-conversion path is authoritative, overriding whatever
		// the download destination line reported
		ex.authoritativePath = ev.Path
		ex.convertSeen = false
		m.transition(job, "converted "+filepath.Base(ev.Path), func() {
			job.SetStage(domain.StageConvert)
			if job.Kind == domain.KindSingle {
				job.AdvanceProgress(singleConvertedMark)
				return
			}
			if job.TotalTracks > 0 && job.CompletedTracks < job.TotalTracks {
				job.CompletedTracks++
			}
			span := playlistDownloadEnd - playlistInfoEnd
			total := job.TotalTracks
			if total < 1 {
				total = 1
			}
			job.AdvanceProgress(playlistInfoEnd + span*float64(job.CompletedTracks)/float64(total))
		})

	case infrastructure.EventDeleteOriginal:
		// Completion heuristic for single tracks only; playlists finish on
		// process exit plus archiving
		if job.Kind != domain.KindSingle {
			return
		}
		m.transition(job, "", func() {
			job.AdvanceProgress(singleCleanupMark)
		})
	}
}

// downloadProgress linearly remaps a per-download percentage into the job's
// overall progress range
func (m *JobManager) downloadProgress(job *domain.Job, ex *extraction, pct float64) float64 {
	if job.Kind == domain.KindSingle {
		return singleInfoEnd + (singleDownloadEnd-singleInfoEnd)*pct/100
	}

	total := job.TotalTracks
	if total < 1 {
		total = 1
	}
	idx := ex.trackIndex
	if idx < 1 {
		idx = 1
	}
	span := (playlistDownloadEnd - playlistInfoEnd) / float64(total)
	base := playlistInfoEnd + span*float64(idx-1)
	return base + span*pct/100
}

// resolveArtifact applies the three-tier fallback: the parser's
// authoritative destination, then the deterministically-expected path, then
// the newest audio file in the directory. The printed paths of the external
// tool are not reliable across versions, hence the tiers.
func (m *JobManager) resolveArtifact(ex *extraction, job *domain.Job, workDir string) (string, error) {
	if ex.authoritativePath != "" && fileExists(ex.authoritativePath) {
		return ex.authoritativePath, nil
	}

	ext := "." + m.config.Extractor.AudioFormat
	expected := filepath.Join(workDir, m.snapshot(job).Title+ext)
	if fileExists(expected) {
		return expected, nil
	}

	if newest := newestFileWithExt(workDir, ext); newest != "" {
		return newest, nil
	}

	return "", domain.ErrArtifactNotFound
}

func (m *JobManager) finishPlaylist(job *domain.Job, workDir string) error {
	ext := "." + m.config.Extractor.AudioFormat
	if newestFileWithExt(workDir, ext) == "" {
		return domain.ErrArtifactNotFound
	}

	m.repairPlaylistNames(workDir)

	title := m.snapshot(job).Title
	zipPath := filepath.Join(m.config.Download.BaseDir, title+".zip")

	m.transition(job, "archiving", func() {
		job.SetStage(domain.StageZip)
		job.AdvanceProgress(playlistDownloadEnd)
	})

	err := m.archiver.ArchiveDirectory(workDir, zipPath, func(done, total int) {
		m.transition(job, fmt.Sprintf("archived %d of %d", done, total), func() {
			job.AdvanceProgress(playlistDownloadEnd + (zipEnd-playlistDownloadEnd)*float64(done)/float64(total))
		})
	})
	if err != nil {
		return err
	}

	m.scheduleDirRemoval(workDir)

	m.transition(job, "done", func() {
		job.MarkComplete(zipPath, title+".zip")
	})
	return nil
}

// repairPlaylistNames renames produced files whose names carry known
// corruption markers (duplicated token runs, excessive length). Renames
// that would collide with an existing file are skipped.
func (m *JobManager) repairPlaylistNames(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		m.logger.Warn("Failed to scan playlist directory", zap.Error(err))
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		base := strings.TrimSuffix(name, ext)

		repaired := domain.SanitizeName(collapseDuplicateTokens(base))
		if repaired == base {
			continue
		}

		target := filepath.Join(dir, repaired+ext)
		if fileExists(target) {
			m.logger.Debug("Skipping rename, target exists", zap.String("target", target))
			continue
		}
		if err := os.Rename(filepath.Join(dir, name), target); err != nil {
			m.logger.Warn("Failed to repair filename",
				zap.String("name", name),
				zap.Error(err))
		}
	}
}

// ScheduleArtifactCleanup removes a delivered artifact after a grace delay.
// Called once the artifact has been fully streamed to the requester.
// Cleanup failures are logged, never escalated.
func (m *JobManager) ScheduleArtifactCleanup(id string) {
	job, err := m.GetJob(id)
	if err != nil || job.ArtifactPath == "" {
		return
	}
	path := job.ArtifactPath

	time.AfterFunc(m.config.Download.CleanupDelay, func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			m.logger.Warn("Failed to remove delivered artifact",
				zap.String("path", path),
				zap.Error(err))
		}
	})
}

func (m *JobManager) scheduleDirRemoval(dir string) {
	time.AfterFunc(m.config.Download.SourceRemoveDelay, func() {
		if err := os.RemoveAll(dir); err != nil {
			m.logger.Warn("Failed to remove playlist source directory",
				zap.String("dir", dir),
				zap.Error(err))
		}
	})
}

// transition applies a mutation and publishes the resulting event. The
// mutation runs under the registry lock; readers always see a consistent
// job.
func (m *JobManager) transition(job *domain.Job, message string, mutate func()) {
	m.mu.Lock()
	mutate()
	ev := job.Event(message)
	m.mu.Unlock()
	m.broadcaster.Publish(job.ID, ev)
}

func (m *JobManager) snapshot(job *domain.Job) *domain.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	copied := *job
	return &copied
}

func (m *JobManager) persist(job *domain.Job) {
	if err := m.repo.Update(m.snapshot(job)); err != nil {
		m.logger.Error("Failed to persist job", zap.String("id", job.ID), zap.Error(err))
	}
}

func (m *JobManager) appendCookieArgs(args []string) []string {
	if m.config.Extractor.CookieFile != "" && fileExists(m.config.Extractor.CookieFile) {
		return append(args, "--cookies", m.config.Extractor.CookieFile)
	}
	return args
}

func infoEnd(kind domain.JobKind) float64 {
	if kind == domain.KindPlaylist {
		return playlistInfoEnd
	}
	return singleInfoEnd
}

// drainProcess consumes both output streams until they close, then reads
// the exit status. It returns the last few stderr lines for error detail.
func drainProcess(proc *infrastructure.Process, handle func(string)) ([]string, infrastructure.ExitStatus) {
	const tailSize = 5

	stdout, stderr := proc.Stdout, proc.Stderr
	var tail []string

	for stdout != nil || stderr != nil {
		select {
		case line, ok := <-stdout:
			if !ok {
				stdout = nil
				continue
			}
			handle(line)
		case line, ok := <-stderr:
			if !ok {
				stderr = nil
				continue
			}
			handle(line)
			if strings.TrimSpace(line) != "" {
				tail = append(tail, strings.TrimSpace(line))
				if len(tail) > tailSize {
					tail = tail[1:]
				}
			}
		}
	}

	return tail, <-proc.Done
}

// collapseDuplicateTokens detects names where the token sequence is
// duplicated back to back ("Title Title") and keeps a single copy
func collapseDuplicateTokens(name string) string {
	tokens := strings.Fields(name)
	n := len(tokens)
	if n < 2 || n%2 != 0 {
		return name
	}
	for i := 0; i < n/2; i++ {
		if tokens[i] != tokens[n/2+i] {
			return name
		}
	}
	return strings.Join(tokens[:n/2], " ")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func newestFileWithExt(dir, ext string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	newest := ""
	var newestMod time.Time
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ext) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = filepath.Join(dir, entry.Name())
			newestMod = info.ModTime()
		}
	}
	return newest
}
