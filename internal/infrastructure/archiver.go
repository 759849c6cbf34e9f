package infrastructure

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/yourusername/sc-fetch-go/internal/domain"
)

// Archiver streams a directory of produced files into a zip archive
type Archiver struct {
	logger *zap.Logger
}

// NewArchiver creates a new archive builder
func NewArchiver(logger *zap.Logger) *Archiver {
	return &Archiver{logger: logger}
}

// ArchiveDirectory zips the immediate files of srcDir into destPath.
// Entries carry no parent-path prefix. The progress callback is invoked
// after each entry with (entries done, total entries). Any write or
// compression error aborts the whole operation and removes the partial
// archive, so destPath exists only once the archive is complete.
func (a *Archiver) ArchiveDirectory(srcDir, destPath string, progress func(done, total int)) error {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return &domain.ArchiveError{Path: destPath, Err: err}
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			a.logger.Debug("Skipping subdirectory in archive source",
				zap.String("dir", entry.Name()))
			continue
		}
		files = append(files, entry.Name())
	}

	out, err := os.Create(destPath)
	if err != nil {
		return &domain.ArchiveError{Path: destPath, Err: err}
	}

	zw := zip.NewWriter(out)

	fail := func(err error) error {
		zw.Close()
		out.Close()
		os.Remove(destPath)
		return &domain.ArchiveError{Path: destPath, Err: err}
	}

	total := len(files)
	for i, name := range files {
		src, err := os.Open(filepath.Join(srcDir, name))
		if err != nil {
			return fail(err)
		}

		w, err := zw.Create(name)
		if err != nil {
			src.Close()
			return fail(err)
		}

		_, err = io.Copy(w, src)
		src.Close()
		if err != nil {
			return fail(err)
		}

		if progress != nil {
			progress(i+1, total)
		}
	}

	// The archive is only valid once the writer has flushed its directory
	if err := zw.Close(); err != nil {
		out.Close()
		os.Remove(destPath)
		return &domain.ArchiveError{Path: destPath, Err: err}
	}
	if err := out.Close(); err != nil {
		os.Remove(destPath)
		return &domain.ArchiveError{Path: destPath, Err: err}
	}

	a.logger.Info("Archive built",
		zap.String("path", destPath),
		zap.Int("entries", total))

	return nil
}
