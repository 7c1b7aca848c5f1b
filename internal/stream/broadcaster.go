package stream

import (
	"sync"
)

// Broadcaster fans out rendered PCM frames to N HTTP listeners. It
// implements the player's frame sink.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners map[*Listener]struct{}
}

// Listener receives PCM frames from the broadcaster.
type Listener struct {
	C    chan []float32 // buffered channel of rendered frames
	done chan struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		listeners: make(map[*Listener]struct{}),
	}
}

// Subscribe registers a new listener.
func (b *Broadcaster) Subscribe() *Listener {
	l := &Listener{
		C:    make(chan []float32, 150), // ~3 seconds of buffer at 20ms/frame
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	b.mu.Unlock()
	return l
}

// Unsubscribe removes a listener and signals it to stop.
func (b *Broadcaster) Unsubscribe(l *Listener) {
	b.mu.Lock()
	delete(b.listeners, l)
	b.mu.Unlock()
	close(l.done)
}

// ListenerCount returns the number of active listeners.
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// WriteFrame fans one rendered frame out to every listener. Slow listeners
// get frames dropped rather than blocking playback.
func (b *Broadcaster) WriteFrame(samples []float32) {
	b.mu.RLock()
	for l := range b.listeners {
		select {
		case l.C <- samples:
		default:
			// listener too slow, drop frame to keep playback moving
		}
	}
	b.mu.RUnlock()
}
