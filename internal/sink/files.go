package sink

import (
	"context"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/flarebyte/thoth-scribe/internal/logging"
	"github.com/flarebyte/thoth-scribe/internal/record"
	"github.com/flarebyte/thoth-scribe/internal/shard"
)

// FileOptions configures a FileSink.
type FileOptions struct {
	// SkipExisting leaves files that are already present untouched.
	SkipExisting bool
	// Flat writes every file directly into the output directory.
	Flat bool
	Log  logrus.FieldLogger
}

// FileSink writes each record body to its own file. It is safe for
// concurrent use.
type FileSink struct {
	dir  string
	opts FileOptions
	dirs *shard.DirSet
	log  logrus.FieldLogger
}

// NewFileSink creates dir if needed and returns a sink writing below it.
func NewFileSink(dir string, opts FileOptions) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileSink{dir: dir, opts: opts, dirs: shard.NewDirSet(), log: logging.OrDiscard(opts.Log)}, nil
}

// PathFor returns where rec would be written.
func (s *FileSink) PathFor(rec record.Record) string {
	if s.opts.Flat {
		return filepath.Join(s.dir, rec.Key)
	}
	return shard.Path(s.dir, rec.Key)
}

// Write stores rec. I/O failures are logged and reported as Failed; they do
// not stop the run, so the returned error is always nil.
func (s *FileSink) Write(_ context.Context, rec record.Record) (Outcome, error) {
	target := s.PathFor(rec)
	if err := s.dirs.Ensure(filepath.Dir(target)); err != nil {
		s.log.WithField("path", filepath.Dir(target)).WithError(err).Warn("unable to create directory")
		return Failed, nil
	}
	if s.opts.SkipExisting {
		if st, err := os.Stat(target); err == nil && st.Mode().IsRegular() {
			return Skipped, nil
		}
	}
	if err := os.WriteFile(target, rec.Body, 0o644); err != nil {
		s.log.WithField("path", target).WithError(err).Error("failed to write")
		return Failed, nil
	}
	s.log.WithFields(logrus.Fields{"name": rec.Name, "path": target}).Debug("extracted")
	return Written, nil
}

// Close is a no-op; files are closed as they are written.
func (s *FileSink) Close() error { return nil }
