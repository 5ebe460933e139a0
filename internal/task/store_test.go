package task

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emoticonlab/kakao-emoticon-mcp/internal/model"
)

// newTestStore returns a store whose clock advances one second per call so
// creation order is visible in CreatedAt.
func newTestStore(max int) *Store {
	s := NewStore(max)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	tick := 0
	s.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return s
}

func TestCreate(t *testing.T) {
	s := NewStore(0)

	task := s.Create(model.EmoticonTypeStatic, 32)
	assert.Len(t, task.TaskID, 12)
	assert.Regexp(t, `^[A-Za-z0-9]{12}$`, task.TaskID)
	assert.Equal(t, model.TaskStatusPending, task.Status)
	assert.Equal(t, 32, task.TotalCount)
	assert.Equal(t, 0, task.CompletedCount)
	assert.NotNil(t, task.Results)
	assert.Empty(t, task.Results)
	assert.Nil(t, task.IconResult)

	got, ok := s.Get(task.TaskID)
	require.True(t, ok)
	assert.Equal(t, task.TaskID, got.TaskID)

	_, ok = s.Get("nope")
	assert.False(t, ok)
}

func TestLifecycle_TotalFiveScenario(t *testing.T) {
	s := NewStore(10)
	task := s.Create(model.EmoticonTypeDynamic, 5)

	s.UpdateStatus(task.TaskID, model.TaskStatusRunning)
	for i := 0; i < 5; i++ {
		s.UpdateProgress(task.TaskID, i, fmt.Sprintf("item %d", i))
		s.AppendResult(task.TaskID, model.GeneratedItem{Index: i, ArtifactID: fmt.Sprintf("a%d", i)})
		s.UpdateProgress(task.TaskID, i+1, fmt.Sprintf("item %d", i))
	}
	s.SetIcon(task.TaskID, model.GeneratedItem{Index: model.IconIndex, ArtifactID: "icon"})
	s.Complete(task.TaskID)

	got, ok := s.Get(task.TaskID)
	require.True(t, ok)
	assert.Equal(t, model.TaskStatusCompleted, got.Status)
	assert.Equal(t, 5, got.CompletedCount)
	assert.Len(t, got.Results, 5)
	assert.Equal(t, 100, got.ProgressPercent)
	for i, r := range got.Results {
		assert.Equal(t, i, r.Index)
	}
	require.NotNil(t, got.IconResult)
	assert.Equal(t, "icon", got.IconResult.ArtifactID)
}

func TestStatusIsForwardOnly(t *testing.T) {
	s := NewStore(10)
	id := s.Create(model.EmoticonTypeStatic, 1).TaskID

	s.UpdateStatus(id, model.TaskStatusRunning)
	s.UpdateStatus(id, model.TaskStatusPending)
	got, _ := s.Get(id)
	assert.Equal(t, model.TaskStatusRunning, got.Status)

	s.SetError(id, "boom")
	got, _ = s.Get(id)
	assert.Equal(t, model.TaskStatusFailed, got.Status)
	assert.Equal(t, "boom", got.ErrorMessage)

	// Terminal tasks ignore further transitions.
	s.Complete(id)
	s.UpdateStatus(id, model.TaskStatusRunning)
	s.SetError(id, "second")
	got, _ = s.Get(id)
	assert.Equal(t, model.TaskStatusFailed, got.Status)
	assert.Equal(t, "boom", got.ErrorMessage)
}

func TestCompletedCountMonotonic(t *testing.T) {
	s := NewStore(10)
	id := s.Create(model.EmoticonTypeStatic, 3).TaskID

	s.UpdateProgress(id, 2, "b")
	s.UpdateProgress(id, 1, "a")
	got, _ := s.Get(id)
	assert.Equal(t, 2, got.CompletedCount)
	assert.Equal(t, "a", got.CurrentItemDescription)

	s.UpdateProgress(id, 99, "c")
	got, _ = s.Get(id)
	assert.Equal(t, 3, got.CompletedCount)
}

func TestMutatorsIgnoreUnknownIDs(t *testing.T) {
	s := NewStore(10)

	assert.NotPanics(t, func() {
		s.UpdateStatus("ghost", model.TaskStatusRunning)
		s.UpdateProgress("ghost", 1, "x")
		s.AppendResult("ghost", model.GeneratedItem{})
		s.SetIcon("ghost", model.GeneratedItem{})
		s.SetError("ghost", "x")
		s.Complete("ghost")
	})
	assert.Equal(t, 0, s.Len())
}

func TestUpdatedAtStamped(t *testing.T) {
	s := newTestStore(10)
	task := s.Create(model.EmoticonTypeStatic, 1)

	s.UpdateProgress(task.TaskID, 1, "x")
	got, _ := s.Get(task.TaskID)
	assert.True(t, got.UpdatedAt.After(task.UpdatedAt))
	assert.Equal(t, task.CreatedAt, got.CreatedAt)
}

func TestSnapshotsAreCopies(t *testing.T) {
	s := NewStore(10)
	id := s.Create(model.EmoticonTypeStatic, 2).TaskID
	s.AppendResult(id, model.GeneratedItem{Index: 0, ArtifactID: "a"})
	s.SetIcon(id, model.GeneratedItem{ArtifactID: "icon"})

	snap, _ := s.Get(id)
	snap.Results[0].ArtifactID = "mutated"
	snap.IconResult.ArtifactID = "mutated"
	snap.Results = append(snap.Results, model.GeneratedItem{})

	got, _ := s.Get(id)
	assert.Equal(t, "a", got.Results[0].ArtifactID)
	assert.Equal(t, "icon", got.IconResult.ArtifactID)
	assert.Len(t, got.Results, 1)
}

func TestRetentionBound(t *testing.T) {
	const max = 10
	s := newTestStore(max)

	var last model.GenerationTask
	for i := 0; i < max+1; i++ {
		last = s.Create(model.EmoticonTypeStatic, 1)
	}

	assert.LessOrEqual(t, s.Len(), max)
	_, ok := s.Get(last.TaskID)
	assert.True(t, ok, "newest task must survive eviction")
}

func TestRetentionBound_Sustained(t *testing.T) {
	const max = 7
	s := newTestStore(max)

	for i := 0; i < 50; i++ {
		task := s.Create(model.EmoticonTypeStatic, 1)
		if i%3 == 0 {
			s.Complete(task.TaskID)
		}
		assert.LessOrEqual(t, s.Len(), max)
		_, ok := s.Get(task.TaskID)
		assert.True(t, ok)
	}
}

func TestEviction_PrefersTerminalTasks(t *testing.T) {
	s := newTestStore(4)

	running := s.Create(model.EmoticonTypeStatic, 1).TaskID
	s.UpdateStatus(running, model.TaskStatusRunning)
	done1 := s.Create(model.EmoticonTypeStatic, 1).TaskID
	s.Complete(done1)
	done2 := s.Create(model.EmoticonTypeStatic, 1).TaskID
	s.SetError(done2, "x")
	pending := s.Create(model.EmoticonTypeStatic, 1).TaskID

	// Store is full: half (2) must go and both finished tasks are enough.
	fresh := s.Create(model.EmoticonTypeStatic, 1).TaskID

	assert.Equal(t, 3, s.Len())
	for _, id := range []string{running, pending, fresh} {
		_, ok := s.Get(id)
		assert.True(t, ok, id)
	}
	for _, id := range []string{done1, done2} {
		_, ok := s.Get(id)
		assert.False(t, ok, id)
	}
}

func TestEviction_FallsBackToOldestActive(t *testing.T) {
	s := newTestStore(4)

	ids := make([]string, 4)
	for i := range ids {
		ids[i] = s.Create(model.EmoticonTypeStatic, 1).TaskID
	}
	s.Complete(ids[2])

	s.Create(model.EmoticonTypeStatic, 1)

	// ids[2] (finished) goes first, then the oldest active task.
	_, ok := s.Get(ids[2])
	assert.False(t, ok)
	_, ok = s.Get(ids[0])
	assert.False(t, ok)
	_, ok = s.Get(ids[1])
	assert.True(t, ok)
	_, ok = s.Get(ids[3])
	assert.True(t, ok)
	assert.Equal(t, 3, s.Len())
}

func TestList_NewestFirst(t *testing.T) {
	s := newTestStore(10)
	a := s.Create(model.EmoticonTypeStatic, 1).TaskID
	b := s.Create(model.EmoticonTypeBig, 1).TaskID
	c := s.Create(model.EmoticonTypeDynamic, 1).TaskID

	list := s.List()
	require.Len(t, list, 3)
	assert.Equal(t, []string{c, b, a}, []string{list[0].TaskID, list[1].TaskID, list[2].TaskID})
}

func TestConcurrentTasksAreIsolated(t *testing.T) {
	s := NewStore(100)

	const workers = 10
	ids := make([]string, workers)
	for i := range ids {
		ids[i] = s.Create(model.EmoticonTypeStaticMini, 5).TaskID
	}

	var wg sync.WaitGroup
	for w, id := range ids {
		wg.Add(1)
		go func(w int, id string) {
			defer wg.Done()
			s.UpdateStatus(id, model.TaskStatusRunning)
			for i := 0; i < 5; i++ {
				s.AppendResult(id, model.GeneratedItem{Index: i, ArtifactID: fmt.Sprintf("w%d-%d", w, i)})
				s.UpdateProgress(id, i+1, "")
				_, _ = s.Get(id)
				_ = s.List()
			}
			s.Complete(id)
		}(w, id)
	}
	wg.Wait()

	for w, id := range ids {
		got, ok := s.Get(id)
		require.True(t, ok)
		assert.Equal(t, model.TaskStatusCompleted, got.Status)
		require.Len(t, got.Results, 5)
		for i, r := range got.Results {
			assert.Equal(t, fmt.Sprintf("w%d-%d", w, i), r.ArtifactID)
		}
	}
}
