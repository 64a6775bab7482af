// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session records skill runs so they can be listed and replayed
// later. Store has an in-memory and a SQLite implementation.
package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/bartekus/vibe/internal/runner"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusCreated    Status = "created"
	StatusExecuting  Status = "executing"
	StatusDryRunning Status = "dry_running"
	StatusCompleted  Status = "completed"
)

// ErrNotFound is returned when a session id is unknown.
var ErrNotFound = errors.New("session not found")

// Session is one invocation of a skill against a repository.
type Session struct {
	ID        string            `json:"session_id"`
	SkillID   string            `json:"skill_id"`
	RepoRoot  string            `json:"repo_root"`
	Status    Status            `json:"status"`
	DryRun    bool              `json:"dry_run"`
	Success   bool              `json:"success"`
	Report    *runner.RunReport `json:"report,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// New returns a created session with a fresh id.
func New(skillID, repoRoot string, dryRun bool) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        uuid.NewString(),
		SkillID:   skillID,
		RepoRoot:  repoRoot,
		Status:    StatusCreated,
		DryRun:    dryRun,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Start marks the session as running.
func (s *Session) Start() {
	s.Status = StatusExecuting
	if s.DryRun {
		s.Status = StatusDryRunning
	}
	s.UpdatedAt = time.Now().UTC()
}

// Complete attaches the run report. Success requires every step of the run to
// have been attempted and passed.
func (s *Session) Complete(report *runner.RunReport) {
	s.Status = StatusCompleted
	s.Report = report
	s.Success = report != nil && report.AllStepsPassed()
	s.UpdatedAt = time.Now().UTC()
}

// Store persists sessions.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	// List returns sessions newest first.
	List(ctx context.Context) ([]*Session, error)
	Close() error
}

// MemoryStore is a Store backed by a map. It is safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "%s", id)
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) Put(_ context.Context, s *Session) error {
	if s == nil || s.ID == "" {
		return errors.New("session id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return errors.Wrapf(ErrNotFound, "%s", id)
	}
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) List(_ context.Context) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		cp := *s
		out = append(out, &cp)
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

func sortNewestFirst(sessions []*Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
}
