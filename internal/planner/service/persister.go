package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"safety-planner/internal/planner/repository"
	"safety-planner/internal/planner/snapshot"
)

// ============================================================
// Persister
// ============================================================

// Persister сохраняет снимки в фоне. Submit никогда не блокируется:
// в очереди держится только последний снимок, промежуточные
// перезаписываются.
type Persister struct {
	adapter  repository.Adapter
	logger   zerolog.Logger
	metrics  *Metrics
	debounce time.Duration
	retryMin time.Duration
	retryMax time.Duration

	mu      sync.Mutex
	pending *snapshot.Flat
	wake    chan struct{}
	saved   chan struct{}
}

const (
	DefaultRetryMin = 500 * time.Millisecond
	DefaultRetryMax = 30 * time.Second
)

type PersisterOption func(*Persister)

// WithRetryBackoff задает паузу перед повтором неудачного сохранения;
// пауза удваивается до hi.
func WithRetryBackoff(lo, hi time.Duration) PersisterOption {
	return func(p *Persister) {
		p.retryMin, p.retryMax = lo, hi
	}
}

func NewPersister(adapter repository.Adapter, debounce time.Duration, metrics *Metrics, logger zerolog.Logger, opts ...PersisterOption) *Persister {
	p := &Persister{
		adapter:  adapter,
		logger:   logger.With().Str("component", "persister").Logger(),
		metrics:  metrics,
		debounce: debounce,
		retryMin: DefaultRetryMin,
		retryMax: DefaultRetryMax,
		wake:     make(chan struct{}, 1),
		saved:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.retryMin <= 0 {
		p.retryMin = DefaultRetryMin
	}
	if p.retryMax < p.retryMin {
		p.retryMax = p.retryMin
	}
	return p
}

// Submit ставит снимок на сохранение вместо ранее поставленного.
func (p *Persister) Submit(f *snapshot.Flat) {
	p.mu.Lock()
	p.pending = f
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Saved сигналит после каждого успешного сохранения.
func (p *Persister) Saved() <-chan struct{} {
	return p.saved
}

// Run сохраняет снимки до отмены ctx; перед выходом сбрасывает
// последний несохраненный снимок. Неудачное сохранение повторяется с
// растущей паузой, даже если новых снимков не поступает.
func (p *Persister) Run(ctx context.Context) error {
	var retry <-chan time.Time
	backoff := p.retryMin

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := p.Flush(flushCtx)
			cancel()
			return err
		case <-p.wake:
		case <-retry:
		}
		retry = nil

		if p.debounce > 0 {
			timer := time.NewTimer(p.debounce)
			select {
			case <-ctx.Done():
				timer.Stop()
				continue
			case <-timer.C:
			}
		}

		if err := p.Flush(ctx); err != nil {
			p.logger.Error().Err(err).Dur("retry_in", backoff).Msg("save snapshot")
			retry = time.After(backoff)
			backoff = min(backoff*2, p.retryMax)
			continue
		}
		backoff = p.retryMin
	}
}

// Flush синхронно сохраняет ожидающий снимок, если он есть. При ошибке
// снимок возвращается в очередь, если его не вытеснил более новый.
func (p *Persister) Flush(ctx context.Context) error {
	p.mu.Lock()
	f := p.pending
	p.pending = nil
	p.mu.Unlock()
	if f == nil {
		return nil
	}

	start := time.Now()
	err := p.adapter.Save(ctx, f)
	if p.metrics != nil {
		p.metrics.SaveDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		p.mu.Lock()
		if p.pending == nil {
			p.pending = f
		}
		p.mu.Unlock()
		if p.metrics != nil {
			p.metrics.Saves.WithLabelValues("error").Inc()
		}
		return err
	}

	if p.metrics != nil {
		p.metrics.Saves.WithLabelValues("ok").Inc()
	}
	p.logger.Debug().Int("plans", len(f.Plans)).Int("commits", len(f.Commits)).Msg("snapshot saved")
	select {
	case p.saved <- struct{}{}:
	default:
	}
	return nil
}
