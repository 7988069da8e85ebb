package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/threadbox/internal/parser"
	"github.com/starford/threadbox/internal/storage"
)

// Sub-folders of the drop directory that receive handled files.
const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

var messageExts = []string{".md", ".eml"}

// FileCallback is called after a dropped file was handled. res is nil when
// the file failed or was a duplicate.
type FileCallback func(file string, res *Result, err error)

// Watcher feeds message files from a drop folder into an Ingestor. Handled
// files are moved to processed/ and unparseable ones to failed/.
type Watcher struct {
	ing      *Ingestor
	files    *storage.FS
	logger   *slog.Logger
	debounce time.Duration
	cb       FileCallback
}

// NewWatcher returns a watcher over the drop folder rooted at files.
func NewWatcher(ing *Ingestor, files *storage.FS, logger *slog.Logger, cb FileCallback) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		ing:      ing,
		files:    files,
		logger:   logger,
		debounce: 200 * time.Millisecond,
		cb:       cb,
	}
}

// Sync processes every message file already present at the top of the drop
// folder and returns how many notes were created.
func (w *Watcher) Sync(ctx context.Context) (int, error) {
	metas, err := w.files.List("", messageExts...)
	if err != nil {
		return 0, err
	}
	created := 0
	for _, m := range metas {
		if strings.Contains(m.Path, "/") {
			continue
		}
		if ctx.Err() != nil {
			return created, ctx.Err()
		}
		if res, err := w.ProcessFile(ctx, m.Path); err == nil && res != nil {
			created++
		}
	}
	return created, nil
}

// ProcessFile ingests one file relative to the drop folder and moves it out
// of the way. Duplicates are moved to processed/ and reported as errors.
func (w *Watcher) ProcessFile(ctx context.Context, rel string) (*Result, error) {
	data, err := w.files.Read(rel)
	if err != nil {
		return nil, err
	}

	var msg *parser.Message
	switch strings.ToLower(filepath.Ext(rel)) {
	case ".eml":
		msg, err = parser.ParseEmail(data)
	default:
		msg, err = parser.Parse(data)
	}
	if err != nil {
		w.logger.Warn("ingest: parse failed", slog.String("path", rel), slog.String("error", err.Error()))
		w.moveTo(FailedDir, rel)
		w.notify(rel, nil, err)
		return nil, err
	}

	env := FromMessage(msg)
	if env.From == "" {
		env.From = "unknown"
	}
	res, err := w.ing.Ingest(ctx, env)
	switch {
	case err == nil:
		w.logger.Info("ingest: file ingested", slog.String("path", rel), slog.String("note", res.Note.ID))
		w.moveTo(ProcessedDir, rel)
		w.notify(rel, &res, nil)
		return &res, nil
	case IsDuplicate(err):
		w.logger.Info("ingest: duplicate skipped", slog.String("path", rel))
		w.moveTo(ProcessedDir, rel)
	case errors.Is(err, context.Canceled):
		return nil, err
	default:
		w.logger.Warn("ingest: ingest failed", slog.String("path", rel), slog.String("error", err.Error()))
		w.moveTo(FailedDir, rel)
	}
	w.notify(rel, nil, err)
	return nil, err
}

func (w *Watcher) moveTo(dir, rel string) {
	dst := path.Join(dir, path.Base(rel))
	if err := w.files.Move(rel, dst); err != nil {
		w.logger.Warn("ingest: move failed", slog.String("path", rel), slog.String("to", dst), slog.String("error", err.Error()))
	}
}

func (w *Watcher) notify(rel string, res *Result, err error) {
	if w.cb != nil {
		w.cb(rel, res, err)
	}
}

// Watch runs Sync and then processes files as they appear until ctx is
// cancelled. Events are debounced per file so partially written files are
// read once the writer goes quiet.
func (w *Watcher) Watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	root := w.files.Root()
	if err := fw.Add(root); err != nil {
		return fmt.Errorf("ingest: watch %s: %w", root, err)
	}
	if n, err := w.Sync(ctx); err != nil {
		w.logger.Warn("ingest: initial sync failed", slog.String("error", err.Error()))
	} else {
		w.logger.Info("ingest: watcher started", slog.String("root", root), slog.Int("synced", n))
	}

	pending := make(map[string]struct{})
	var timer *time.Timer
	var timerCh <-chan time.Time

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(w.debounce)
			timerCh = timer.C
		} else {
			timer.Reset(w.debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			w.logger.Info("ingest: watcher stopped")
			return nil

		case <-timerCh:
			for rel := range pending {
				delete(pending, rel)
				if _, err := w.files.Read(rel); err != nil {
					continue
				}
				_, _ = w.ProcessFile(ctx, rel)
			}

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			name := filepath.Base(ev.Name)
			if strings.HasPrefix(name, ".") || !isMessageFile(name) {
				continue
			}
			pending[name] = struct{}{}
			schedule()

		case werr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("ingest: watcher error", slog.String("error", werr.Error()))
		}
	}
}

func isMessageFile(name string) bool {
	return slices.Contains(messageExts, strings.ToLower(filepath.Ext(name)))
}
