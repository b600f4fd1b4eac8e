package usecases

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Refresher is the single operation the poll loop drives.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Poller runs the perpetual refresh loop: an immediate first refresh so
// the map has data right away, then one refresh per tick. Cycles never
// overlap; a slow cycle simply delays the next tick.
type Poller struct {
	refresher Refresher
	interval  time.Duration

	once sync.Once
}

// NewPoller creates a poller. interval is the fixed delay between the
// end of one cycle and the start of the next.
func NewPoller(refresher Refresher, interval time.Duration) *Poller {
	return &Poller{refresher: refresher, interval: interval}
}

// Start launches the loop exactly once; further calls are no-ops. This
// keeps multi-path initialization (several workers racing through
// startup) from spawning duplicate loops. The loop runs until ctx is
// cancelled; there is no other terminal state.
func (p *Poller) Start(ctx context.Context) {
	p.once.Do(func() {
		go p.run(ctx)
	})
}

func (p *Poller) run(ctx context.Context) {
	slog.Info("refresh loop started", "interval", p.interval.String())

	for {
		// A failed cycle is logged and the loop proceeds; nothing in a
		// cycle may terminate the loop.
		if err := p.refresher.Refresh(ctx); err != nil {
			slog.Warn("refresh cycle failed", "error", err)
		}

		select {
		case <-time.After(p.interval):
		case <-ctx.Done():
			slog.Info("refresh loop stopped")
			return
		}
	}
}
