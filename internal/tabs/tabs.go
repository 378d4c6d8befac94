// Package tabs keeps the browser's tab table as reported by the shim.
package tabs

import (
	"context"
	"sort"
	"sync"

	"sitecnd/pkg/types"
)

// Tab is the last known state of one browser tab.
type Tab struct {
	ID       int
	WindowID int
	URL      string
	Status   string
	Active   bool
}

// Store is an in-memory tab table fed by TabEvents.
type Store struct {
	mu            sync.RWMutex
	tabs          map[int]*Tab
	focusedWindow int
	hasFocus      bool
}

// NewStore returns an empty tab table.
func NewStore() *Store {
	return &Store{tabs: make(map[int]*Tab)}
}

// Apply folds a tab event into the table. It returns the tab state after the
// event, or false when the event removed the tab.
func (s *Store) Apply(ev types.TabEvent) (Tab, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.Type == types.TabRemoved {
		delete(s.tabs, ev.TabID)
		return Tab{ID: ev.TabID}, false
	}

	t, ok := s.tabs[ev.TabID]
	if !ok {
		t = &Tab{ID: ev.TabID}
		s.tabs[ev.TabID] = t
	}
	if ev.WindowID != 0 {
		t.WindowID = ev.WindowID
	}
	if ev.URL != nil {
		t.URL = *ev.URL
	}
	if ev.Status != "" {
		t.Status = ev.Status
	}
	if ev.Focused {
		s.focusedWindow = t.WindowID
		s.hasFocus = true
	}

	switch ev.Type {
	case types.TabActivated:
		for _, other := range s.tabs {
			if other.WindowID == t.WindowID {
				other.Active = false
			}
		}
		t.Active = true
	case types.TabUpdated:
		t.Active = ev.Active
	case types.TabCommitted:
		if ev.Active {
			t.Active = true
		}
	}
	return *t, true
}

// Get returns the tab with the given id.
func (s *Store) Get(_ context.Context, id int) (Tab, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tabs[id]
	if !ok {
		return Tab{}, false
	}
	return *t, true
}

// ActiveInFocusedWindow returns the active tab of the last focused window.
// Without a known focused window the lowest-id active tab is returned.
func (s *Store) ActiveInFocusedWindow(ctx context.Context) (Tab, bool) {
	s.mu.RLock()
	focused, hasFocus := s.focusedWindow, s.hasFocus
	s.mu.RUnlock()

	active := s.Active(ctx)
	for _, t := range active {
		if !hasFocus || t.WindowID == focused {
			return t, true
		}
	}
	return Tab{}, false
}

// Active returns every active tab ordered by id.
func (s *Store) Active(_ context.Context) []Tab {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Tab
	for _, t := range s.tabs {
		if t.Active {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// All returns every known tab ordered by id.
func (s *Store) All(_ context.Context) []Tab {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Tab, 0, len(s.tabs))
	for _, t := range s.tabs {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
