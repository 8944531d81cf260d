package risk

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ============================================================
// Rules file watcher
// ============================================================

const defaultDebounce = 200 * time.Millisecond

// Watcher перечитывает файл правил при изменении и подменяет движок в
// Holder. Ошибочный файл логируется, действующие правила остаются.
type Watcher struct {
	path     string
	holder   *Holder
	logger   zerolog.Logger
	debounce time.Duration
	reloaded chan struct{}
}

func NewWatcher(path string, holder *Holder, logger zerolog.Logger) *Watcher {
	return &Watcher{
		path:     path,
		holder:   holder,
		logger:   logger.With().Str("component", "rules-watcher").Str("path", path).Logger(),
		debounce: defaultDebounce,
		reloaded: make(chan struct{}, 1),
	}
}

// Reloaded сигналит после каждой успешной перезагрузки.
func (w *Watcher) Reloaded() <-chan struct{} {
	return w.reloaded
}

// Run следит за каталогом файла (редакторы часто пишут через rename) до
// отмены ctx.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("rules watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("rules watcher: watch %s: %w", filepath.Dir(w.path), err)
	}
	target := filepath.Clean(w.path)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.reload()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("watch error")
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := LoadRules(w.path)
	if err != nil {
		w.logger.Error().Err(err).Msg("rules reload failed, keeping previous rules")
		return
	}
	next, err := w.holder.Load().WithRules(cfg)
	if err != nil {
		w.logger.Error().Err(err).Msg("rules rejected, keeping previous rules")
		return
	}
	w.holder.Store(next)
	w.logger.Info().Int("rules", len(cfg.Rules)).Float64("propagation_factor", cfg.Propagation.Factor).Msg("rules reloaded")

	select {
	case w.reloaded <- struct{}{}:
	default:
	}
}
