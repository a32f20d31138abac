// Package index writes a name and url listing for every article archive.
package index

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/flarebyte/thoth-scribe/internal/logging"
	"github.com/flarebyte/thoth-scribe/internal/record"
)

// DefaultDir is used when no output directory is given.
const DefaultDir = "index"

const reportEvery = 500

// Entry is one line of an index file.
type Entry struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// FileName returns the index file name for input: "<stem>-index.json".
func FileName(input string) (string, error) {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		return "", fmt.Errorf("expected file name for %s", input)
	}
	return stem + "-index.json", nil
}

// Build indexes every input concurrently into outDir and returns the number
// of entries written. Unreadable elements are logged and skipped; failing to
// open an input or create its index stops the build.
func Build(ctx context.Context, inputs []string, outDir string, log logrus.FieldLogger) (uint64, error) {
	log = logging.OrDiscard(log)
	if outDir == "" {
		outDir = DefaultDir
	}
	if len(inputs) == 0 {
		return 0, errors.New("no input files")
	}
	targets := make([]string, len(inputs))
	for i, in := range inputs {
		name, err := FileName(in)
		if err != nil {
			return 0, err
		}
		targets[i] = filepath.Join(outDir, name)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return 0, err
	}

	var count atomic.Uint64
	g, ctx := errgroup.WithContext(ctx)
	for i, in := range inputs {
		in, out := in, targets[i]
		g.Go(func() error {
			return buildOne(ctx, in, out, &count, log.WithField("path", in))
		})
	}
	err := g.Wait()
	n := count.Load()
	log.WithField("count", n).Info("indexed articles")
	return n, err
}

func buildOne(ctx context.Context, in, out string, count *atomic.Uint64, log logrus.FieldLogger) (err error) {
	src, err := record.Open(in)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	f, err := os.CreateTemp(filepath.Dir(out), "."+filepath.Base(out)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create %s: %w", out, err)
	}
	// out only appears once the listing is complete
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	if _, err := w.WriteString("["); err != nil {
		return err
	}
	first := true
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		e, err := src.NextEntry()
		if err == io.EOF {
			break
		}
		if err != nil {
			var de *record.DecodeError
			if errors.As(err, &de) {
				log.WithError(err).Warn("unable to read element")
				continue
			}
			return err
		}
		if !first {
			if _, err := w.WriteString(","); err != nil {
				return err
			}
		}
		first = false
		// Encoder appends a newline, which keeps the array valid JSON.
		if err := enc.Encode(Entry{Name: e.Name, URL: e.URL}); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
		if n := count.Add(1); n%reportEvery == 0 {
			log.WithField("count", n).Info("indexed articles")
		}
	}
	if _, err := w.WriteString("]\n"); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", out, err)
	}
	return os.Rename(f.Name(), out)
}
