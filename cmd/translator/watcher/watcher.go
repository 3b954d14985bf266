// Package watcher implements a drop-directory mode: audio files placed into
// a watched directory are run through the pipeline and the results written
// alongside them.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"voice-translator/cmd/translator/pipeline"

	"github.com/fsnotify/fsnotify"
)

// settleDelay gives the producing process time to finish writing before the
// file is read. fsnotify reports creation, not completion.
const settleDelay = 500 * time.Millisecond

type Config struct {
	Dir    string
	Source pipeline.Language
	Target pipeline.Language
}

func (c Config) IsValid() error {
	if c.Dir == "" {
		return fmt.Errorf("invalid Dir: should not be empty")
	}

	if info, err := os.Stat(c.Dir); err != nil {
		return fmt.Errorf("invalid Dir: failed to stat: %w", err)
	} else if !info.IsDir() {
		return fmt.Errorf("invalid Dir: not a directory")
	}

	if !c.Source.IsValid() {
		return fmt.Errorf("invalid Source: unknown language %q", string(c.Source))
	}

	if !c.Target.IsValid() {
		return fmt.Errorf("invalid Target: unknown language %q", string(c.Target))
	}

	return nil
}

type Watcher struct {
	cfg Config
	pl  *pipeline.Pipeline
	fsw *fsnotify.Watcher
}

func New(cfg Config, pl *pipeline.Pipeline) (*Watcher, error) {
	if err := cfg.IsValid(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}

	if pl == nil {
		return nil, fmt.Errorf("pipeline should not be nil")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := fsw.Add(cfg.Dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", cfg.Dir, err)
	}

	return &Watcher{
		cfg: cfg,
		pl:  pl,
		fsw: fsw,
	}, nil
}

// Start processes events until ctx is canceled or the watcher is stopped.
func (w *Watcher) Start(ctx context.Context) error {
	slog.Info("watching for audio files", slog.String("dir", w.cfg.Dir))

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if !isAudioFile(ev.Name) {
				continue
			}
			time.Sleep(settleDelay)
			if err := w.ProcessFile(ctx, ev.Name); err != nil {
				slog.Error("failed to process file",
					slog.String("path", ev.Name),
					slog.String("err", err.Error()))
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			slog.Error("watcher error", slog.String("err", err.Error()))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *Watcher) Stop() error {
	return w.fsw.Close()
}

// ProcessFile runs one audio file through the pipeline and writes the
// transcript, translation and synthesized audio next to it.
func (w *Watcher) ProcessFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	format, err := pipeline.DetectFormat(data)
	if err != nil {
		return fmt.Errorf("failed to detect format: %w", err)
	}

	res, err := w.pl.Run(ctx, pipeline.Request{
		Audio:  pipeline.AudioBlob{Data: data, Format: format},
		Source: w.cfg.Source,
		Target: w.cfg.Target,
	})
	if err != nil {
		return fmt.Errorf("pipeline failed: %w", err)
	}

	base := strings.TrimSuffix(path, filepath.Ext(path))
	if err := os.WriteFile(base+".transcript.txt", []byte(res.Transcript+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	if err := os.WriteFile(base+".translation.txt", []byte(res.Translation+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write translation: %w", err)
	}
	if err := os.WriteFile(base+".translated."+string(res.Audio.Format), res.Audio.Data, 0600); err != nil {
		return fmt.Errorf("failed to write audio: %w", err)
	}

	slog.Info("processed audio file",
		slog.String("path", path),
		slog.String("invocationID", res.InvocationID),
		slog.Duration("took", res.Timings.Total))

	return nil
}

func isAudioFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".mp3", ".m4a", ".ogg":
		return true
	default:
		return false
	}
}
