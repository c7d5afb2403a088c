// Package track drives the periodic capture-and-submit loops. Ticks run
// serially, so at most one submission is in flight per loop, and every tick
// is stamped with a generation number: stopping the loop bumps the
// generation, which invalidates any response still on the wire.
package track

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/okume/camassist/internal/camera"
	"github.com/okume/camassist/internal/logger"
)

const (
	// MinInterval and MaxInterval bound the configurable capture interval.
	MinInterval = 500 * time.Millisecond
	MaxInterval = 10 * time.Second
	// DefaultInterval is the capture interval when none is configured.
	DefaultInterval = 2 * time.Second
)

var (
	// ErrRunning means the operation needs the loop to be stopped first.
	ErrRunning = errors.New("capture loop is running")
	// ErrNotRunning means the loop is already stopped.
	ErrNotRunning = errors.New("capture loop is not running")
	// ErrIntervalRange means the requested interval is out of bounds.
	ErrIntervalRange = errors.New("capture interval out of range")
)

// CaptureFunc produces one JPEG frame for submission.
type CaptureFunc func() ([]byte, error)

// SubmitFunc submits one captured frame. gen names the loop generation the
// frame belongs to; implementations check Current(gen) before applying the
// response so a result that lands after Stop is discarded.
type SubmitFunc func(ctx context.Context, gen uint64, jpegData []byte)

// Loop is one timer-driven capture/submit cycle.
type Loop struct {
	name    string
	capture CaptureFunc
	submit  SubmitFunc

	mu         sync.Mutex
	interval   time.Duration
	running    bool
	generation uint64
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewLoop creates a stopped loop with the default interval.
func NewLoop(name string, capture CaptureFunc, submit SubmitFunc) *Loop {
	return &Loop{
		name:     name,
		capture:  capture,
		submit:   submit,
		interval: DefaultInterval,
	}
}

// SetInterval changes the capture interval. Only allowed while stopped.
func (l *Loop) SetInterval(d time.Duration) error {
	if d < MinInterval || d > MaxInterval {
		return ErrIntervalRange
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return ErrRunning
	}
	l.interval = d
	return nil
}

// Interval returns the configured capture interval.
func (l *Loop) Interval() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.interval
}

// Running reports whether the loop is active.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Current reports whether gen is still the live generation. Responses from
// older generations must be dropped, not applied.
func (l *Loop) Current(gen uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.generation == gen
}

// Start begins ticking. The first capture fires immediately.
func (l *Loop) Start() error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return ErrRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	l.running = true
	l.cancel = cancel
	l.done = done
	gen := l.generation
	interval := l.interval
	l.mu.Unlock()

	logger.Info("Track", "%s loop started (interval=%v)", l.name, interval)
	go l.run(ctx, gen, interval, done)
	return nil
}

// Stop halts the loop, waits for any in-flight tick to finish its call, and
// bumps the generation so a late response cannot mutate state. Stopping a
// stopped loop is a no-op.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	l.generation++
	cancel := l.cancel
	done := l.done
	l.cancel = nil
	l.done = nil
	l.mu.Unlock()

	cancel()
	if done != nil {
		<-done
	}
	logger.Info("Track", "%s loop stopped", l.name)
}

func (l *Loop) run(ctx context.Context, gen uint64, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		l.tick(ctx, gen)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (l *Loop) tick(ctx context.Context, gen uint64) {
	data, err := l.capture()
	if err != nil {
		// No frame yet is normal right after the camera starts; anything
		// else means the camera went away under us.
		if errors.Is(err, camera.ErrNoFrame) {
			logger.Debug("Track", "%s tick skipped: %v", l.name, err)
		} else {
			logger.Warn("Track", "%s capture failed: %v", l.name, err)
		}
		return
	}
	l.submit(ctx, gen, data)
}
