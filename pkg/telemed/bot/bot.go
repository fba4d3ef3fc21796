// Package bot runs the main orchestration loop: poll Telegram, dispatch each
// message in order, run the scheduled sweeps, sleep, repeat. Everything runs
// on a single goroutine, which is what makes the file-backed stores safe
// without locking.
package bot

import (
	"context"
	"log/slog"
	"time"

	"github.com/tecven/telemed/pkg/telemed/dispatch"
	"github.com/tecven/telemed/pkg/telemed/scheduler"
	"github.com/tecven/telemed/pkg/telemed/telegram"
)

// Poller is the inbound surface of the Telegram client.
type Poller interface {
	Poll(ctx context.Context) ([]telegram.Event, error)
}

// Handler processes one inbound event.
type Handler interface {
	Handle(ctx context.Context, ev telegram.Event)
}

// Config holds the loop cadence.
type Config struct {
	// IdleDelay is the pause between loop iterations.
	IdleDelay time.Duration

	// ErrorBackoff is the extra pause after a transport error.
	ErrorBackoff time.Duration
}

// Bot ties the transport, dispatcher and scheduler into the polling loop.
type Bot struct {
	cfg    Config
	poller Poller
	disp   Handler
	sched  *scheduler.Scheduler
	logger *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

// New creates a Bot.
func New(cfg Config, poller Poller, disp Handler, sched *scheduler.Scheduler, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		cfg:    cfg,
		poller: poller,
		disp:   disp,
		sched:  sched,
		logger: logger.With("component", "bot"),
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// Run executes the loop until ctx is cancelled. The current iteration always
// finishes before Run returns, so a message being handled is never dropped
// mid-flight.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("bot loop started",
		"idle_delay", b.cfg.IdleDelay,
		"error_backoff", b.cfg.ErrorBackoff)

	for {
		if err := ctx.Err(); err != nil {
			b.logger.Info("bot loop stopping")
			return nil
		}

		events, err := b.poller.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				b.logger.Info("bot loop stopping")
				return nil
			}
			b.logger.Warn("poll failed, backing off", "error", err)
			b.sleep(ctx, b.cfg.ErrorBackoff)
		}

		for _, ev := range events {
			b.disp.Handle(ctx, ev)
		}

		b.sched.Sweep(ctx, b.now())

		b.sleep(ctx, b.cfg.IdleDelay)
	}
}

// sleepCtx pauses for d but wakes immediately on cancellation.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

var _ Handler = (*dispatch.Dispatcher)(nil)
