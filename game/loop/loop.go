package loop

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const tickInterval = 50 * time.Millisecond

// Loop is the single game-update goroutine. All mutation of player mission
// state happens here: background timers and I/O callbacks hand their work to
// Defer and the loop drains the queue each tick. This keeps a single-writer
// invariant over per-player state without broad locks.
type Loop struct {
	tasks   chan func()
	stopCh  chan struct{}
	stopped sync.Once
	logger  *zap.Logger
}

// New creates a Loop but does not start it.
func New(logger *zap.Logger) *Loop {
	return &Loop{
		tasks:  make(chan func(), 1024),
		stopCh: make(chan struct{}),
		logger: logger,
	}
}

// Run drives the update loop. Call in a goroutine.
func (l *Loop) Run() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case fn := <-l.tasks:
			l.run(fn)
		case <-ticker.C:
			l.drain()
		case <-l.stopCh:
			l.drain()
			return
		}
	}
}

// Defer enqueues fn to run on the next loop tick. Safe from any goroutine.
func (l *Loop) Defer(fn func()) {
	select {
	case l.tasks <- fn:
	case <-l.stopCh:
	default:
		l.logger.Warn("loop task queue full, dropping deferred task")
	}
}

// Stop signals the loop to exit after draining pending tasks. Idempotent.
func (l *Loop) Stop() {
	l.stopped.Do(func() { close(l.stopCh) })
}

func (l *Loop) drain() {
	for {
		select {
		case fn := <-l.tasks:
			l.run(fn)
		default:
			return
		}
	}
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("deferred task panicked", zap.Any("recover", r))
		}
	}()
	fn()
}
