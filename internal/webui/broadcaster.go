package webui

import (
	"sync"
	"time"

	"github.com/okume/camassist/internal/logger"
)

// renderFunc produces one annotated JPEG, or nil when no frame is available.
type renderFunc func() []byte

// FrameBroadcaster manages fanout of annotated JPEG frames to multiple
// stream clients. Rendering is skipped entirely while nobody is watching.
type FrameBroadcaster struct {
	mu        sync.Mutex
	clients   map[int]chan []byte
	nextID    int
	render    renderFunc
	interval  time.Duration
	stop      chan struct{}
	stopped   bool
	skipCount int
}

// NewFrameBroadcaster creates a broadcaster over the given render function.
func NewFrameBroadcaster(render renderFunc, interval time.Duration) *FrameBroadcaster {
	return &FrameBroadcaster{
		clients:  make(map[int]chan []byte),
		render:   render,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Subscribe adds a new client and returns a channel for receiving frames.
func (fb *FrameBroadcaster) Subscribe() (int, <-chan []byte) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	id := fb.nextID
	fb.nextID++
	ch := make(chan []byte, 2) // Buffer 2 frames to avoid blocking
	fb.clients[id] = ch

	logger.Debug("FrameBroadcaster", "Client #%d subscribed (total clients: %d)", id, len(fb.clients))
	return id, ch
}

// Unsubscribe removes a client.
func (fb *FrameBroadcaster) Unsubscribe(id int) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if ch, ok := fb.clients[id]; ok {
		close(ch)
		delete(fb.clients, id)
		logger.Debug("FrameBroadcaster", "Client #%d unsubscribed (remaining clients: %d)", id, len(fb.clients))

		if len(fb.clients) == 0 {
			logger.Info("FrameBroadcaster", "No clients remaining - frame rendering will be skipped")
		}
	}
}

// ClientCount returns the number of connected stream clients.
func (fb *FrameBroadcaster) ClientCount() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return len(fb.clients)
}

// Start begins the render and broadcast loop.
func (fb *FrameBroadcaster) Start() {
	go fb.run()
}

// Stop halts the broadcaster.
func (fb *FrameBroadcaster) Stop() {
	fb.mu.Lock()
	if !fb.stopped {
		close(fb.stop)
		fb.stopped = true
	}
	fb.mu.Unlock()
}

func (fb *FrameBroadcaster) run() {
	ticker := time.NewTicker(fb.interval)
	defer ticker.Stop()

	for {
		select {
		case <-fb.stop:
			return
		case <-ticker.C:
		}

		fb.mu.Lock()
		clientCount := len(fb.clients)
		fb.mu.Unlock()

		if clientCount == 0 {
			// No clients - skip rendering entirely.
			fb.skipCount++
			if fb.skipCount%100 == 0 {
				logger.Debug("FrameBroadcaster", "No clients connected (idle for %d cycles)", fb.skipCount)
			}
			continue
		}
		fb.skipCount = 0

		jpegData := fb.render()
		if jpegData == nil {
			// Nil tells the stream writer to show the idle card.
			fb.broadcast(nil)
			continue
		}
		fb.broadcast(jpegData)
	}
}

func (fb *FrameBroadcaster) broadcast(data []byte) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	for id, ch := range fb.clients {
		select {
		case ch <- data:
		default:
			// Client too slow, skip this frame for this client
			_ = id
		}
	}
}
