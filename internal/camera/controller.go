package camera

import (
	"context"
	"sync"
	"time"

	"github.com/okume/camassist/internal/logger"
	"github.com/okume/camassist/internal/metrics"
	"github.com/okume/camassist/pkg/types"
)

// DefaultSwitchDelay is how long the controller waits between releasing one
// device and acquiring the opposite one. The device needs the gap to free
// the camera.
const DefaultSwitchDelay = 300 * time.Millisecond

// Stats is a snapshot of the controller state.
type Stats struct {
	Active     bool   `json:"active"`
	Facing     Facing `json:"facing"`
	FramesRead uint64 `json:"frames_read"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
}

// Controller owns the exclusive camera device handle. It binds at most one
// Source at a time and keeps the most recent frame for capture.
type Controller struct {
	factory     SourceFactory
	metrics     *metrics.Metrics
	switchDelay time.Duration

	mu          sync.Mutex
	active      bool
	facing      Facing
	idealWidth  int
	idealHeight int
	cancel      context.CancelFunc
	done        chan struct{}
	latest      types.Frame
	haveFrame   bool
	framesRead  uint64
}

// NewController creates a controller over the given source factory.
func NewController(factory SourceFactory, m *metrics.Metrics) *Controller {
	return &Controller{
		factory:     factory,
		metrics:     m,
		switchDelay: DefaultSwitchDelay,
	}
}

// SetSwitchDelay overrides the facing-switch release delay (tests).
func (c *Controller) SetSwitchDelay(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.switchDelay = d
}

// Start acquires the camera for the given facing mode and binds its stream.
func (c *Controller) Start(facing Facing, idealWidth, idealHeight int) error {
	if !facing.Valid() {
		facing = FacingUser
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active {
		return ErrAlreadyActive
	}

	source, err := c.factory(facing, idealWidth, idealHeight)
	if err != nil {
		c.countCameraError()
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	frames, err := source.Frames(ctx)
	if err != nil {
		cancel()
		c.countCameraError()
		return err
	}

	done := make(chan struct{})
	c.active = true
	c.facing = facing
	c.idealWidth = idealWidth
	c.idealHeight = idealHeight
	c.cancel = cancel
	c.done = done
	c.latest = types.Frame{}
	c.haveFrame = false
	c.framesRead = 0

	go c.consume(frames, done)

	logger.Info("Camera", "Stream bound (facing=%s, ideal=%dx%d)", facing, idealWidth, idealHeight)
	return nil
}

func (c *Controller) consume(frames <-chan types.Frame, done chan struct{}) {
	defer close(done)
	for frame := range frames {
		c.mu.Lock()
		c.latest = frame
		c.haveFrame = true
		c.framesRead++
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.FramesRead.Add(1)
		}
	}
}

// Stop halts the bound stream and clears the frame buffer. Calling Stop on
// an inactive controller is a no-op.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	cancel := c.cancel
	done := c.done
	c.active = false
	c.cancel = nil
	c.done = nil
	c.latest = types.Frame{}
	c.haveFrame = false
	c.mu.Unlock()

	cancel()
	if done != nil {
		<-done
	}
	logger.Info("Camera", "Stream released")
}

// SwitchFacing stops the current stream and restarts with the opposite
// facing after a short release delay. If the restart fails the controller
// stays stopped and the error is returned.
func (c *Controller) SwitchFacing() error {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return ErrNotActive
	}
	next := c.facing.Opposite()
	width, height := c.idealWidth, c.idealHeight
	delay := c.switchDelay
	c.mu.Unlock()

	c.Stop()
	time.Sleep(delay)

	if err := c.Start(next, width, height); err != nil {
		logger.Error("Camera", "Facing switch to %s failed: %v", next, err)
		return err
	}
	return nil
}

// CaptureFrame returns a copy of the most recent frame. It fails with
// ErrNotActive when no stream is bound and ErrNoFrame before the first
// frame arrives; callers guard rather than surface the latter.
func (c *Controller) CaptureFrame() (types.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return types.Frame{}, ErrNotActive
	}
	if !c.haveFrame || c.latest.Width == 0 || c.latest.Height == 0 {
		return types.Frame{}, ErrNoFrame
	}

	frame := c.latest
	frame.Data = make([]byte, len(c.latest.Data))
	copy(frame.Data, c.latest.Data)
	return frame, nil
}

// Active reports whether a stream is bound.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Stats returns a snapshot of the controller state.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Active:     c.active,
		Facing:     c.facing,
		FramesRead: c.framesRead,
		Width:      c.latest.Width,
		Height:     c.latest.Height,
	}
}

func (c *Controller) countCameraError() {
	if c.metrics != nil {
		c.metrics.CameraErrors.Add(1)
	}
}
