package app

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/sc-fetch-go/internal/domain"
	"github.com/yourusername/sc-fetch-go/internal/infrastructure"
)

// singleTrackScript mimics the extractor's two invocations for one track:
// the metadata pass prints the title, the extraction pass emits the usual
// console lines and produces the converted file.
const singleTrackScript = `#!/bin/sh
case "$*" in
*--skip-download*)
	echo "Test Track"
	exit 0
	;;
esac
out=""
prev=""
for a in "$@"; do
	if [ "$prev" = "-o" ]; then out="$a"; fi
	prev="$a"
done
dir=$(dirname "$out")
echo "[download] Destination: $dir/Test Track.webm"
echo "[download]  50.0% of 3.00MiB at 1.00MiB/s ETA 00:01"
echo "[download] 100% of 3.00MiB in 00:02"
echo "[ExtractAudio] Destination: $dir/Test Track.mp3"
printf audio > "$dir/Test Track.mp3"
echo "Deleting original file $dir/Test Track.webm (pass -k to keep)"
`

const playlistScript = `#!/bin/sh
case "$*" in
*--skip-download*)
	echo "My Mix"
	exit 0
	;;
esac
out=""
prev=""
for a in "$@"; do
	if [ "$prev" = "-o" ]; then out="$a"; fi
	prev="$a"
done
dir=$(dirname "$out")
echo "[download] Downloading item 1 of 2"
echo "[download] Destination: $dir/Track One.webm"
echo "[download] 100% of 1.00MiB in 00:01"
echo "[ExtractAudio] Destination: $dir/Track One.mp3"
printf one > "$dir/Track One.mp3"
echo "[download] Downloading item 2 of 2"
echo "[download] Destination: $dir/Track Two.webm"
echo "[download] 100% of 1.00MiB in 00:01"
echo "[ExtractAudio] Destination: $dir/Track Two.mp3"
printf two > "$dir/Track Two.mp3"
`

const extractionFailureScript = `#!/bin/sh
case "$*" in
*--skip-download*)
	echo "Test Track"
	exit 0
	;;
esac
echo "ERROR: unable to download video data" >&2
exit 1
`

const metadataFailureScript = `#!/bin/sh
echo "ERROR: unable to resolve url" >&2
exit 1
`

const noArtifactScript = `#!/bin/sh
case "$*" in
*--skip-download*)
	echo "Test Track"
	exit 0
	;;
esac
echo "[download] 100% of 1.00MiB in 00:01"
`

func writeStubExtractor(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-extractor")
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func newTestManager(t *testing.T, binary string) *JobManager {
	t.Helper()

	cfg := domain.DefaultConfig()
	cfg.Extractor.Binary = binary
	cfg.Download.BaseDir = t.TempDir()
	cfg.Download.CleanupDelay = 10 * time.Millisecond
	cfg.Download.SourceRemoveDelay = 10 * time.Millisecond
	cfg.Notification.Enabled = false

	repo, err := infrastructure.NewSQLiteJobRepository(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	log := zap.NewNop()
	m := NewJobManager(
		repo,
		infrastructure.NewInvoker(log),
		infrastructure.NewArchiver(log),
		NewBroadcaster(log),
		infrastructure.NewNotificationService(&cfg.Notification, log),
		cfg,
		log,
	)
	t.Cleanup(m.Stop)
	return m
}

// runJob drives a job through the manager synchronously so the collected
// event sequence is deterministic
func runJob(t *testing.T, m *JobManager, url string) (*domain.Job, []domain.ProgressEvent) {
	t.Helper()

	job := domain.NewJob(url, "0")
	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()
	require.NoError(t, m.repo.Create(job))

	collector := &collectorSink{}
	m.broadcaster.Subscribe(job.ID, collector)
	defer m.broadcaster.Unsubscribe(job.ID, collector)

	m.wg.Add(1)
	m.run(job)

	return m.snapshot(job), collector.Events()
}

func assertMonotonicProgress(t *testing.T, events []domain.ProgressEvent) {
	t.Helper()
	last := 0.0
	for i, ev := range events {
		assert.GreaterOrEqual(t, ev.Progress, last, "event %d regressed progress", i)
		last = ev.Progress
	}
}

func TestJobManager_SingleTrack(t *testing.T) {
	binary := writeStubExtractor(t, singleTrackScript)
	m := newTestManager(t, binary)

	job, events := runJob(t, m, "https://soundcloud.com/artist/test-track")

	assert.Equal(t, domain.StageComplete, job.Stage)
	assert.Equal(t, 100.0, job.Progress)
	assert.Equal(t, "Test Track", job.Title)
	assert.Equal(t, "Test Track.mp3", job.DisplayName)
	assert.Equal(t, filepath.Join(m.config.Download.BaseDir, "Test Track.mp3"), job.ArtifactPath)
	assert.FileExists(t, job.ArtifactPath)

	require.NotEmpty(t, events)
	assertMonotonicProgress(t, events)

	stagesSeen := make(map[domain.Stage]bool)
	for _, ev := range events {
		stagesSeen[ev.Stage] = true
	}
	assert.True(t, stagesSeen[domain.StageDownload])
	assert.True(t, stagesSeen[domain.StageConvert])
	assert.True(t, stagesSeen[domain.StageComplete])

	// Persisted state matches the live outcome
	saved, err := m.repo.FindByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageComplete, saved.Stage)
}

func TestJobManager_Playlist(t *testing.T) {
	binary := writeStubExtractor(t, playlistScript)
	m := newTestManager(t, binary)

	job, events := runJob(t, m, "https://soundcloud.com/artist/sets/my-mix")

	assert.Equal(t, domain.StageComplete, job.Stage)
	assert.Equal(t, 100.0, job.Progress)
	assert.Equal(t, "My Mix", job.Title)
	assert.Equal(t, "My Mix.zip", job.DisplayName)
	assert.Equal(t, 2, job.TotalTracks)
	assert.Equal(t, 2, job.CompletedTracks)

	zipPath := filepath.Join(m.config.Download.BaseDir, "My Mix.zip")
	assert.Equal(t, zipPath, job.ArtifactPath)
	require.FileExists(t, zipPath)

	zr, err := zip.OpenReader(zipPath)
	require.NoError(t, err)
	defer zr.Close()
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"Track One.mp3", "Track Two.mp3"}, names)

	assertMonotonicProgress(t, events)

	stagesSeen := make(map[domain.Stage]bool)
	for _, ev := range events {
		stagesSeen[ev.Stage] = true
	}
	assert.True(t, stagesSeen[domain.StageZip])

	// The per-track directory is removed after the grace delay
	workDir := filepath.Join(m.config.Download.BaseDir, "My Mix")
	require.Eventually(t, func() bool {
		_, err := os.Stat(workDir)
		return os.IsNotExist(err)
	}, 2*time.Second, 20*time.Millisecond)
}

func TestJobManager_ExtractionFailure(t *testing.T) {
	binary := writeStubExtractor(t, extractionFailureScript)
	m := newTestManager(t, binary)

	job, _ := runJob(t, m, "https://soundcloud.com/artist/test-track")

	assert.Equal(t, domain.StageError, job.Stage)
	assert.Contains(t, job.ErrorMessage, "exited with code 1")
	assert.Contains(t, job.ErrorMessage, "unable to download video data")
}

func TestJobManager_MetadataFailure(t *testing.T) {
	binary := writeStubExtractor(t, metadataFailureScript)
	m := newTestManager(t, binary)

	job, _ := runJob(t, m, "https://soundcloud.com/artist/test-track")

	assert.Equal(t, domain.StageError, job.Stage)
	assert.Contains(t, job.ErrorMessage, "unable to resolve url")
}

func TestJobManager_MissingArtifact(t *testing.T) {
	binary := writeStubExtractor(t, noArtifactScript)
	m := newTestManager(t, binary)

	job, _ := runJob(t, m, "https://soundcloud.com/artist/test-track")

	assert.Equal(t, domain.StageError, job.Stage)
	assert.Equal(t, domain.ErrArtifactNotFound.Error(), job.ErrorMessage)
}

func TestJobManager_MissingBinary(t *testing.T) {
	m := newTestManager(t, filepath.Join(t.TempDir(), "does-not-exist"))

	job, _ := runJob(t, m, "https://soundcloud.com/artist/test-track")

	assert.Equal(t, domain.StageError, job.Stage)
	assert.Contains(t, job.ErrorMessage, "failed to launch")
}

func TestJobManager_Submit(t *testing.T) {
	binary := writeStubExtractor(t, singleTrackScript)
	m := newTestManager(t, binary)

	job, err := m.Submit("https://soundcloud.com/artist/test-track", "")
	require.NoError(t, err)
	assert.Equal(t, domain.KindSingle, job.Kind)
	assert.Equal(t, "0", job.Quality, "empty quality falls back to the configured default")

	m.Wait()

	final, err := m.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageComplete, final.Stage)
	assert.Equal(t, 0, m.ActiveCount())
}

func TestJobManager_Submit_InvalidURL(t *testing.T) {
	m := newTestManager(t, "unused")

	_, err := m.Submit("https://example.com/not-soundcloud", "0")
	assert.ErrorIs(t, err, domain.ErrInvalidURL)
}

func TestJobManager_Submit_InvalidQuality(t *testing.T) {
	m := newTestManager(t, "unused")

	for _, quality := range []string{"11", "-1", "best", "3.5"} {
		_, err := m.Submit("https://soundcloud.com/artist/track", quality)
		assert.ErrorIs(t, err, domain.ErrInvalidURL, "quality %q must be rejected", quality)
	}
}

func TestJobManager_DanglingConvertStart(t *testing.T) {
	m := newTestManager(t, "unused")

	job := domain.NewJob("https://soundcloud.com/artist/sets/mix", "0")
	ex := &extraction{trackIndex: 1}

	m.handleLineEvent(job, ex, infrastructure.LineEvent{Kind: infrastructure.EventPlaylistItem, Index: 1, Total: 2})
	m.handleLineEvent(job, ex, infrastructure.LineEvent{Kind: infrastructure.EventDownloadDest, Path: "/tmp/a.webm"})
	m.handleLineEvent(job, ex, infrastructure.LineEvent{Kind: infrastructure.EventConvertStart})
	m.handleLineEvent(job, ex, infrastructure.LineEvent{Kind: infrastructure.EventConvertStart})

	// A conversion marker with no destination line must not count a track
	assert.Equal(t, 0, job.CompletedTracks)

	m.handleLineEvent(job, ex, infrastructure.LineEvent{Kind: infrastructure.EventPlaylistItem, Index: 2, Total: 2})
	assert.Equal(t, 0, job.CompletedTracks)

	m.handleLineEvent(job, ex, infrastructure.LineEvent{Kind: infrastructure.EventConvertDest, Path: "/tmp/b.mp3"})
	assert.Equal(t, 1, job.CompletedTracks)
}

func TestJobManager_CompletedTracksClamped(t *testing.T) {
	m := newTestManager(t, "unused")

	job := domain.NewJob("https://soundcloud.com/artist/sets/mix", "0")
	ex := &extraction{trackIndex: 1}

	m.handleLineEvent(job, ex, infrastructure.LineEvent{Kind: infrastructure.EventPlaylistItem, Index: 1, Total: 1})
	m.handleLineEvent(job, ex, infrastructure.LineEvent{Kind: infrastructure.EventConvertDest, Path: "/tmp/a.mp3"})
	m.handleLineEvent(job, ex, infrastructure.LineEvent{Kind: infrastructure.EventConvertDest, Path: "/tmp/a2.mp3"})

	assert.Equal(t, 1, job.CompletedTracks)
}

func TestJobManager_ResolveArtifactTiers(t *testing.T) {
	m := newTestManager(t, "unused")

	workDir := t.TempDir()
	job := domain.NewJob("https://soundcloud.com/artist/track", "0")
	job.Title = "Wanted Track"

	// No file at all
	_, err := m.resolveArtifact(&extraction{}, job, workDir)
	assert.ErrorIs(t, err, domain.ErrArtifactNotFound)

	// Fallback tier: newest file with the right extension
	other := filepath.Join(workDir, "Something Else.mp3")
	require.NoError(t, os.WriteFile(other, []byte("x"), 0644))
	got, err := m.resolveArtifact(&extraction{}, job, workDir)
	require.NoError(t, err)
	assert.Equal(t, other, got)

	// Expected-path tier beats the newest file
	expected := filepath.Join(workDir, "Wanted Track.mp3")
	require.NoError(t, os.WriteFile(expected, []byte("x"), 0644))
	got, err = m.resolveArtifact(&extraction{}, job, workDir)
	require.NoError(t, err)
	assert.Equal(t, expected, got)

	// The parser's post-conversion destination wins over everything
	auth := filepath.Join(workDir, "Authoritative.mp3")
	require.NoError(t, os.WriteFile(auth, []byte("x"), 0644))
	got, err = m.resolveArtifact(&extraction{authoritativePath: auth}, job, workDir)
	require.NoError(t, err)
	assert.Equal(t, auth, got)

	// A stale destination that no longer exists falls through
	got, err = m.resolveArtifact(&extraction{authoritativePath: filepath.Join(workDir, "gone.mp3")}, job, workDir)
	require.NoError(t, err)
	assert.Equal(t, expected, got)
}

func TestCollapseDuplicateTokens(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"My Song My Song", "My Song"},
		{"Title Title", "Title"},
		{"My Song", "My Song"},
		{"A B C", "A B C"},
		{"A B A C", "A B A C"},
		{"One", "One"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, collapseDuplicateTokens(tt.input), "input %q", tt.input)
	}
}
