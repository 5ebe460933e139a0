// Package task keeps the in-memory registry of generation tasks.
//
// The store is an observability surface: the orchestrator writes progress
// into it and API callers poll it. Every mutator is a no-op for unknown ids
// because retention eviction may remove a task while its pipeline is still
// running.
package task

import (
	"crypto/rand"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/emoticonlab/kakao-emoticon-mcp/internal/model"
)

// DefaultMaxTasks bounds the number of resident tasks.
const DefaultMaxTasks = 100

const (
	idLength   = 12
	idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

type entry struct {
	task model.GenerationTask
	seq  uint64
}

// Store is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	tasks    map[string]*entry
	maxTasks int
	seq      uint64
	now      func() time.Time
}

// NewStore creates a store holding at most maxTasks tasks (DefaultMaxTasks
// when maxTasks <= 0).
func NewStore(maxTasks int) *Store {
	if maxTasks <= 0 {
		maxTasks = DefaultMaxTasks
	}
	return &Store{
		tasks:    make(map[string]*entry),
		maxTasks: maxTasks,
		now:      time.Now,
	}
}

// Create registers a new pending task and returns its snapshot. Eviction
// and insertion happen under one lock acquisition.
func (s *Store) Create(t model.EmoticonType, totalCount int) model.GenerationTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictLocked()

	id := newID()
	for s.tasks[id] != nil {
		id = newID()
	}

	now := s.now()
	s.seq++
	e := &entry{
		task: model.GenerationTask{
			TaskID:         id,
			Status:         model.TaskStatusPending,
			EmoticonType:   t,
			TotalCount:     totalCount,
			CompletedCount: 0,
			Results:        []model.GeneratedItem{},
			CreatedAt:      now,
			UpdatedAt:      now,
		},
		seq: s.seq,
	}
	s.tasks[id] = e

	return e.task.Clone()
}

// Get returns a snapshot of the task.
func (s *Store) Get(id string) (model.GenerationTask, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.tasks[id]
	if !ok {
		return model.GenerationTask{}, false
	}
	return e.task.Clone(), true
}

// List returns snapshots of all resident tasks, newest first.
func (s *Store) List() []model.GenerationTask {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.tasks))
	for _, e := range s.tasks {
		entries = append(entries, e)
	}
	sortOldestFirst(entries)
	out := make([]model.GenerationTask, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = e.task.Clone()
	}
	s.mu.RUnlock()
	return out
}

// Len returns the number of resident tasks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// UpdateStatus moves the task forward along pending -> running -> terminal.
// Backward moves and changes to terminal tasks are ignored.
func (s *Store) UpdateStatus(id string, status model.TaskStatus) {
	s.mutate(id, func(t *model.GenerationTask) {
		if canTransition(t.Status, status) {
			t.Status = status
		}
	})
}

// UpdateProgress records the completed count and the item in flight.
// The completed count never decreases and is capped at the total.
func (s *Store) UpdateProgress(id string, completed int, description string) {
	s.mutate(id, func(t *model.GenerationTask) {
		if completed > t.TotalCount {
			completed = t.TotalCount
		}
		if completed > t.CompletedCount {
			t.CompletedCount = completed
		}
		t.CurrentItemDescription = description
	})
}

// AppendResult adds a produced item descriptor.
func (s *Store) AppendResult(id string, item model.GeneratedItem) {
	s.mutate(id, func(t *model.GenerationTask) {
		t.Results = append(t.Results, item)
	})
}

// SetIcon attaches the icon descriptor.
func (s *Store) SetIcon(id string, icon model.GeneratedItem) {
	s.mutate(id, func(t *model.GenerationTask) {
		t.IconResult = &icon
	})
}

// SetError marks the task failed with message.
func (s *Store) SetError(id string, message string) {
	s.mutate(id, func(t *model.GenerationTask) {
		if t.Status.IsTerminal() {
			return
		}
		t.Status = model.TaskStatusFailed
		t.ErrorMessage = message
	})
}

// Complete marks the task completed.
func (s *Store) Complete(id string) {
	s.mutate(id, func(t *model.GenerationTask) {
		if canTransition(t.Status, model.TaskStatusCompleted) {
			t.Status = model.TaskStatusCompleted
		}
	})
}

func (s *Store) mutate(id string, fn func(t *model.GenerationTask)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.tasks[id]
	if !ok {
		return
	}
	fn(&e.task)
	e.task.UpdatedAt = s.now()
}

// evictLocked frees half of the store once it is full. Terminal tasks go
// first, oldest first; running tasks are only evicted when there are not
// enough finished ones. Callers must hold s.mu.
func (s *Store) evictLocked() {
	if len(s.tasks) < s.maxTasks {
		return
	}

	target := len(s.tasks) / 2
	if min := len(s.tasks) - s.maxTasks + 1; target < min {
		target = min
	}

	entries := make([]*entry, 0, len(s.tasks))
	for _, e := range s.tasks {
		entries = append(entries, e)
	}
	sortOldestFirst(entries)

	evicted, active := 0, 0
	for _, e := range entries {
		if evicted == target {
			break
		}
		if e.task.Status.IsTerminal() {
			delete(s.tasks, e.task.TaskID)
			evicted++
		}
	}
	for _, e := range entries {
		if evicted == target {
			break
		}
		if _, ok := s.tasks[e.task.TaskID]; ok && !e.task.Status.IsTerminal() {
			delete(s.tasks, e.task.TaskID)
			evicted++
			active++
		}
	}

	log := logrus.WithFields(logrus.Fields{
		"evicted":   evicted,
		"remaining": len(s.tasks),
	})
	if active > 0 {
		log.WithField("active_evicted", active).Warn("task store full of active tasks, evicted unfinished tasks")
	} else {
		log.Debug("evicted finished tasks")
	}
}

func sortOldestFirst(entries []*entry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.task.CreatedAt.Equal(b.task.CreatedAt) {
			return a.task.CreatedAt.Before(b.task.CreatedAt)
		}
		return a.seq < b.seq
	})
}

func canTransition(from, to model.TaskStatus) bool {
	if from.IsTerminal() {
		return false
	}
	return rank(to) > rank(from)
}

func rank(s model.TaskStatus) int {
	switch s {
	case model.TaskStatusPending:
		return 0
	case model.TaskStatusRunning:
		return 1
	case model.TaskStatusCompleted, model.TaskStatusFailed:
		return 2
	default:
		return -1
	}
}

func newID() string {
	max := big.NewInt(int64(len(idAlphabet)))
	b := make([]byte, idLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("task: crypto/rand unavailable: " + err.Error())
		}
		b[i] = idAlphabet[n.Int64()]
	}
	return string(b)
}
