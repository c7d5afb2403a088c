// Package responselog keeps the newest-first record of feedback received
// from tracking and detection calls. It is in-memory only and unbounded;
// restarting the daemon empties it.
package responselog

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okume/camassist/internal/logger"
	"github.com/okume/camassist/pkg/types"
)

const timestampLayout = "15:04:05"

// Log is the insertion-ordered response record with newest-first display.
type Log struct {
	mu      sync.Mutex
	items   []types.ResponseItem
	clients map[int]chan types.ResponseItem
	nextID  int
	now     func() time.Time
}

// New creates an empty log.
func New() *Log {
	return &Log{
		clients: make(map[int]chan types.ResponseItem),
		now:     time.Now,
	}
}

// Record creates an immutable item from the given feedback, prepends it,
// and fans it out to subscribers.
func (l *Log) Record(text, imageURL string) types.ResponseItem {
	item := types.ResponseItem{
		ID:        uuid.NewString(),
		Timestamp: l.timestamp(),
		Text:      text,
		ImageURL:  imageURL,
	}

	l.mu.Lock()
	l.items = append([]types.ResponseItem{item}, l.items...)
	for id, ch := range l.clients {
		select {
		case ch <- item:
		default:
			// Subscriber too slow; it catches up from Items.
			logger.Debug("ResponseLog", "Subscriber #%d skipped an item", id)
		}
	}
	l.mu.Unlock()

	return item
}

// Items returns a copy of the log, newest first.
func (l *Log) Items() []types.ResponseItem {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := make([]types.ResponseItem, len(l.items))
	copy(items, l.items)
	return items
}

// Len returns the number of recorded items.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// Clear empties the log.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = nil
}

// Subscribe registers a listener for newly recorded items.
func (l *Log) Subscribe() (int, <-chan types.ResponseItem) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextID
	l.nextID++
	ch := make(chan types.ResponseItem, 4)
	l.clients[id] = ch
	return id, ch
}

// Unsubscribe removes a listener.
func (l *Log) Unsubscribe(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ch, ok := l.clients[id]; ok {
		close(ch)
		delete(l.clients, id)
	}
}

func (l *Log) timestamp() string {
	return l.now().Format(timestampLayout)
}
