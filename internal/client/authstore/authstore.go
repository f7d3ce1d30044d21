// Package authstore holds the client session: tokens and the signed-in
// user, optionally persisted to a JSON file.
package authstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"taskmaster/internal/models"
)

type State struct {
	AccessToken     string       `json:"accessToken,omitempty"`
	RefreshToken    string       `json:"refreshToken,omitempty"`
	User            *models.User `json:"user,omitempty"`
	IsAuthenticated bool         `json:"isAuthenticated"`
}

type Store struct {
	mu     sync.Mutex
	state  State
	path   string
	subs   map[int]func(State)
	nextID int
}

// Open loads the session saved at path. An empty path gives a store that
// lives in memory only; a missing file gives an empty session.
func Open(path string) (*Store, error) {
	s := &Store{
		path: path,
		subs: make(map[int]func(State)),
	}

	if path == "" {
		return s, nil
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("authstore: %w", err)
	}

	if err := json.Unmarshal(raw, &s.state); err != nil {
		return nil, fmt.Errorf("authstore: decode %s: %w", path, err)
	}

	return s, nil
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// AccessToken lets the store serve as a client.TokenSource.
func (s *Store) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.AccessToken
}

func (s *Store) SetTokens(access, refresh string) error {
	return s.update(func(st *State) {
		st.AccessToken = access
		st.RefreshToken = refresh
		st.IsAuthenticated = true
	})
}

func (s *Store) SetUser(user models.User) error {
	return s.update(func(st *State) {
		st.User = &user
	})
}

func (s *Store) UpdateAccessToken(access string) error {
	return s.update(func(st *State) {
		st.AccessToken = access
	})
}

// Clear forgets the session.
func (s *Store) Clear() error {
	return s.update(func(st *State) {
		*st = State{}
	})
}

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

func (s *Store) update(fn func(*State)) error {
	s.mu.Lock()
	fn(&s.state)
	snapshot := s.state
	subs := slices.Collect(maps.Values(s.subs))
	err := s.save(snapshot)
	s.mu.Unlock()

	for _, sub := range subs {
		sub(snapshot)
	}

	return err
}

// save replaces the session file atomically via a temp file.
func (s *Store) save(st State) error {
	if s.path == "" {
		return nil
	}

	raw, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("authstore: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("authstore: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("authstore: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("authstore: %w", err)
	}

	return nil
}
