// Package taskstore keeps a normalized client-side copy of the user's
// tasks: an ordered id list plus a map from id to task.
package taskstore

import (
	"maps"
	"slices"
	"sync"

	"taskmaster/internal/models"
)

type State struct {
	Order []string
	ByID  map[string]models.Task
}

// Tasks returns the tasks in display order.
func (s State) Tasks() []models.Task {
	out := make([]models.Task, 0, len(s.Order))
	for _, id := range s.Order {
		out = append(out, s.ByID[id])
	}
	return out
}

// Index returns the display position of id, or -1.
func (s State) Index(id string) int {
	return slices.Index(s.Order, id)
}

func (s State) clone() State {
	byID := maps.Clone(s.ByID)
	if byID == nil {
		byID = make(map[string]models.Task)
	}
	return State{Order: slices.Clone(s.Order), ByID: byID}
}

// Action is one state transition. The concrete actions are the exported
// types below.
type Action interface {
	apply(State) State
}

// Add appends a task. An existing entry with the same id is replaced in
// place.
type Add struct{ Task models.Task }

// Insert puts a task back at Index, clamped to the list bounds.
type Insert struct {
	Task  models.Task
	Index int
}

// Put overwrites the stored record of an existing task.
type Put struct{ Task models.Task }

// Update applies a partial change to an existing task.
type Update struct {
	ID    string
	Patch models.TaskPatch
}

type Delete struct{ ID string }

type ToggleComplete struct{ ID string }

// ReplaceID swaps a temporary id for the server-assigned one, keeping
// the display position. Task, when set, replaces the stored record.
type ReplaceID struct {
	TempID string
	RealID string
	Task   *models.Task
}

// Reorder moves the entry at From to To.
type Reorder struct{ From, To int }

// SetAll replaces the whole state with tasks in the given order.
type SetAll struct{ Tasks []models.Task }

// Reduce returns the state after a. s is never modified.
func Reduce(s State, a Action) State {
	return a.apply(s.clone())
}

func (a Add) apply(s State) State {
	if _, ok := s.ByID[a.Task.ID]; !ok {
		s.Order = append(s.Order, a.Task.ID)
	}
	s.ByID[a.Task.ID] = a.Task
	return s
}

func (a Insert) apply(s State) State {
	if _, ok := s.ByID[a.Task.ID]; ok {
		return s
	}
	i := min(max(a.Index, 0), len(s.Order))
	s.Order = slices.Insert(s.Order, i, a.Task.ID)
	s.ByID[a.Task.ID] = a.Task
	return s
}

func (a Put) apply(s State) State {
	if _, ok := s.ByID[a.Task.ID]; ok {
		s.ByID[a.Task.ID] = a.Task
	}
	return s
}

func (a Update) apply(s State) State {
	task, ok := s.ByID[a.ID]
	if !ok {
		return s
	}

	p := a.Patch
	if p.Title != nil {
		task.Title = *p.Title
	}
	if p.Description != nil {
		task.Description = *p.Description
	}
	if p.DueDate != nil {
		task.DueDate = *p.DueDate
	}
	if p.Status != nil {
		task.Status = *p.Status
	}

	s.ByID[a.ID] = task
	return s
}

func (a Delete) apply(s State) State {
	if _, ok := s.ByID[a.ID]; !ok {
		return s
	}
	delete(s.ByID, a.ID)
	s.Order = slices.DeleteFunc(s.Order, func(id string) bool { return id == a.ID })
	return s
}

func (a ToggleComplete) apply(s State) State {
	task, ok := s.ByID[a.ID]
	if !ok {
		return s
	}
	task.Status = task.Status.Toggled()
	s.ByID[a.ID] = task
	return s
}

func (a ReplaceID) apply(s State) State {
	task, ok := s.ByID[a.TempID]
	if !ok {
		return s
	}
	if a.Task != nil {
		task = *a.Task
	}
	task.ID = a.RealID

	_, known := s.ByID[a.RealID]
	delete(s.ByID, a.TempID)
	s.ByID[a.RealID] = task

	// The real id already has a slot, so the placeholder's goes away.
	if known {
		s.Order = slices.DeleteFunc(s.Order, func(id string) bool { return id == a.TempID })
		return s
	}

	for i, id := range s.Order {
		if id == a.TempID {
			s.Order[i] = a.RealID
		}
	}
	return s
}

func (a Reorder) apply(s State) State {
	n := len(s.Order)
	if a.From < 0 || a.From >= n || a.To < 0 || a.To >= n || a.From == a.To {
		return s
	}
	id := s.Order[a.From]
	s.Order = slices.Delete(s.Order, a.From, a.From+1)
	s.Order = slices.Insert(s.Order, a.To, id)
	return s
}

func (a SetAll) apply(_ State) State {
	s := State{
		Order: make([]string, 0, len(a.Tasks)),
		ByID:  make(map[string]models.Task, len(a.Tasks)),
	}
	for _, t := range a.Tasks {
		if _, dup := s.ByID[t.ID]; !dup {
			s.Order = append(s.Order, t.ID)
		}
		s.ByID[t.ID] = t
	}
	return s
}

// Store holds the current State and notifies subscribers after every
// dispatch.
type Store struct {
	mu     sync.Mutex
	state  State
	subs   map[int]func(State)
	nextID int
}

func New() *Store {
	return &Store{
		state: State{ByID: make(map[string]models.Task)},
		subs:  make(map[int]func(State)),
	}
}

// Dispatch applies a and calls every subscriber with the new state.
// Subscribers run on the dispatching goroutine, outside the lock.
func (s *Store) Dispatch(a Action) {
	s.mu.Lock()
	s.state = Reduce(s.state, a)
	snapshot := s.state.clone()
	subs := slices.Collect(maps.Values(s.subs))
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

func (s *Store) Get(id string) (models.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.state.ByID[id]
	return t, ok
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}
