// Package transcript maintains the UI-facing message list for one
// session: uniquely-identified items, duplicate-insert rejection, and
// rate-limited streaming delta updates.
package transcript

import (
	"errors"
	"sync"
	"time"

	"github.com/dotsetgreg/parley/pkg/logger"
)

// Item status values.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
)

// Minimum gap between applied delta updates per item.
const deltaMinGap = 50 * time.Millisecond

var (
	// ErrDuplicateItem is returned when an insert reuses an existing id.
	// The original item is left untouched.
	ErrDuplicateItem = errors.New("transcript item id already exists")
	// ErrUnknownItem is returned for updates against an id never inserted.
	ErrUnknownItem = errors.New("transcript item id not found")
)

// Item is one transcript entry.
type Item struct {
	ID        string
	Role      string
	Content   string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store holds the ordered transcript for one session.
type Store struct {
	mu        sync.Mutex
	order     []string
	items     map[string]*Item
	lastDelta map[string]time.Time
	now       func() time.Time
}

func NewStore() *Store {
	return &Store{
		items:     map[string]*Item{},
		lastDelta: map[string]time.Time{},
		now:       time.Now,
	}
}

// Add inserts a new item. A duplicate id is rejected with a warning; the
// original item stays intact.
func (s *Store) Add(id, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; exists {
		logger.WarnCF("transcript", "Duplicate transcript item rejected",
			map[string]interface{}{"item_id": id, "role": role})
		return ErrDuplicateItem
	}

	now := s.now()
	s.items[id] = &Item{
		ID:        id,
		Role:      role,
		Content:   content,
		Status:    StatusInProgress,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.order = append(s.order, id)
	return nil
}

// Update modifies an item's content. With isDelta the text is appended,
// and at most one delta per item is applied per 50ms window; throttled
// deltas report applied=false without error. Non-delta updates replace
// the content unconditionally.
func (s *Store) Update(id, text string, isDelta bool) (applied bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return false, ErrUnknownItem
	}

	now := s.now()
	if isDelta {
		if last, seen := s.lastDelta[id]; seen && now.Sub(last) < deltaMinGap {
			return false, nil
		}
		s.lastDelta[id] = now
		item.Content += text
	} else {
		item.Content = text
	}
	item.UpdatedAt = now
	return true, nil
}

// UpdateStatus transitions an item between IN_PROGRESS and DONE.
func (s *Store) UpdateStatus(id string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return ErrUnknownItem
	}
	item.Status = status
	item.UpdatedAt = s.now()
	return nil
}

// Items returns the transcript in insertion order as copies.
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Item, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.items[id])
	}
	return out
}

// Get returns a copy of one item.
func (s *Store) Get(id string) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return Item{}, false
	}
	return *item, true
}

// Clear discards all items.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.items = map[string]*Item{}
	s.lastDelta = map[string]time.Time{}
}
