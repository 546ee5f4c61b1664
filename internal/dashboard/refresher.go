package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Auto-refresh periods used by the pages
const (
	DeviceRefresh = 30 * time.Second
	ChartsRefresh = 10 * time.Minute
)

// Refresher calls a fetch function on a fixed period until its context is
// cancelled. The period can change and refreshes can be paused or forced
// while it runs.
type Refresher struct {
	fetch   func(context.Context) error
	OnError func(error)
	log     zerolog.Logger

	mu          sync.Mutex
	interval    time.Duration
	enabled     bool
	lastUpdated time.Time
	lastErr     error

	kick  chan struct{}
	reset chan struct{}
}

func NewRefresher(interval time.Duration, fetch func(context.Context) error, log zerolog.Logger) *Refresher {
	if interval <= 0 {
		interval = DeviceRefresh
	}
	return &Refresher{
		fetch:    fetch,
		log:      log,
		interval: interval,
		enabled:  true,
		kick:     make(chan struct{}, 1),
		reset:    make(chan struct{}, 1),
	}
}

// Run fetches once immediately and then on every tick. It returns the
// context error when ctx is done.
func (r *Refresher) Run(ctx context.Context) error {
	r.refresh(ctx)
	for {
		timer := time.NewTimer(r.Interval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-r.reset:
			timer.Stop()
		case <-r.kick:
			timer.Stop()
			r.refresh(ctx)
		case <-timer.C:
			if r.Enabled() {
				r.refresh(ctx)
			}
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	err := r.fetch(ctx)

	r.mu.Lock()
	r.lastErr = err
	if err == nil {
		r.lastUpdated = time.Now()
	}
	r.mu.Unlock()

	if err != nil && ctx.Err() == nil {
		r.log.Warn().Err(err).Msg("refresh failed")
		if r.OnError != nil {
			r.OnError(err)
		}
	}
}

// Trigger forces a refresh without waiting for the next tick.
func (r *Refresher) Trigger() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// SetInterval changes the period and restarts the wait.
func (r *Refresher) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	r.mu.Lock()
	r.interval = d
	r.mu.Unlock()
	select {
	case r.reset <- struct{}{}:
	default:
	}
}

func (r *Refresher) Interval() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.interval
}

// SetEnabled pauses or resumes the periodic refresh. Trigger still works
// while paused.
func (r *Refresher) SetEnabled(on bool) {
	r.mu.Lock()
	r.enabled = on
	r.mu.Unlock()
}

func (r *Refresher) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// LastUpdated is the time of the last successful fetch, zero before one.
func (r *Refresher) LastUpdated() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastUpdated
}

func (r *Refresher) LastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}
