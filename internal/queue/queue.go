package queue

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MaxContentLen bounds the content of a single queued article.
const MaxContentLen = 5000

var (
	ErrEmptyContent   = errors.New("article content must not be empty")
	ErrContentTooLong = fmt.Errorf("article content exceeds %d characters", MaxContentLen)
	ErrNotFound       = errors.New("article not found")
	ErrQueueFull      = errors.New("queue is full")
)

// Item is one queued article. Immutable once created; removal is the only
// mutation.
type Item struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Queue holds the articles awaiting the next briefing. Only the caller
// mutates the queue; the orchestrator only reads snapshots of it.
type Queue struct {
	mu       sync.RWMutex
	items    []Item
	maxItems int
	onChange func(empty bool)
	clock    func() time.Time
}

func New(maxItems int) *Queue {
	return &Queue{
		maxItems: maxItems,
		clock:    time.Now,
	}
}

// OnChange registers a hook invoked after every mutation with whether the
// queue is now empty. Used by the runtime for debounced auto-generation and
// for the forced idle reset when the queue drains.
func (q *Queue) OnChange(fn func(empty bool)) {
	q.mu.Lock()
	q.onChange = fn
	q.mu.Unlock()
}

// Add appends a new article and returns it. A blank title falls back to a
// positional default.
func (q *Queue) Add(title, content string) (Item, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Item{}, ErrEmptyContent
	}
	if len([]rune(content)) > MaxContentLen {
		return Item{}, ErrContentTooLong
	}

	q.mu.Lock()
	if q.maxItems > 0 && len(q.items) >= q.maxItems {
		q.mu.Unlock()
		return Item{}, ErrQueueFull
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = fmt.Sprintf("Article %d", len(q.items)+1)
	}
	item := Item{
		ID:        uuid.NewString(),
		Title:     title,
		Content:   content,
		CreatedAt: q.clock(),
	}
	q.items = append(q.items, item)
	hook := q.onChange
	empty := len(q.items) == 0
	q.mu.Unlock()

	if hook != nil {
		hook(empty)
	}
	return item, nil
}

// Remove deletes the article with the given ID.
func (q *Queue) Remove(id string) error {
	q.mu.Lock()
	idx := -1
	for i, it := range q.items {
		if it.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		q.mu.Unlock()
		return ErrNotFound
	}
	q.items = append(q.items[:idx], q.items[idx+1:]...)
	hook := q.onChange
	empty := len(q.items) == 0
	q.mu.Unlock()

	if hook != nil {
		hook(empty)
	}
	return nil
}

// Clear removes every article.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.items = nil
	hook := q.onChange
	q.mu.Unlock()

	if hook != nil {
		hook(true)
	}
}

// Items returns a snapshot of the queue in insertion order.
func (q *Queue) Items() []Item {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]Item, len(q.items))
	copy(out, q.items)
	return out
}

// Len returns the number of queued articles.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.items)
}
