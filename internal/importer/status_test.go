package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTracker(t *testing.T) {
	t.Run("set and get", func(t *testing.T) {
		tracker := NewStatusTracker()

		tracker.Set(FileStatus{FileID: "a", Name: "one.txt", State: StatePending})
		tracker.Set(FileStatus{FileID: "a", Name: "one.txt", State: StateProcessing})

		status, ok := tracker.Get("a")
		require.True(t, ok)
		assert.Equal(t, StateProcessing, status.State)

		_, ok = tracker.Get("missing")
		assert.False(t, ok)
	})

	t.Run("same name, distinct ids", func(t *testing.T) {
		tracker := NewStatusTracker()

		first := NewQueuedFile("notes.txt", nil)
		second := NewQueuedFile("notes.txt", nil)
		require.NotEqual(t, first.ID, second.ID)

		tracker.Set(FileStatus{FileID: first.ID, Name: first.Name, State: StateCompleted})
		tracker.Set(FileStatus{FileID: second.ID, Name: second.Name, State: StateError, Message: "boom"})

		status, ok := tracker.Get(first.ID)
		require.True(t, ok)
		assert.Equal(t, StateCompleted, status.State)
	})

	t.Run("snapshot keeps first-seen order", func(t *testing.T) {
		tracker := NewStatusTracker()
		tracker.Set(FileStatus{FileID: "b", State: StatePending})
		tracker.Set(FileStatus{FileID: "a", State: StatePending})
		tracker.Set(FileStatus{FileID: "b", State: StateCompleted})

		snapshot := tracker.Snapshot()
		require.Len(t, snapshot, 2)
		assert.Equal(t, "b", snapshot[0].FileID)
		assert.Equal(t, StateCompleted, snapshot[0].State)
		assert.Equal(t, "a", snapshot[1].FileID)
	})

	t.Run("remove and clear", func(t *testing.T) {
		tracker := NewStatusTracker()
		tracker.Set(FileStatus{FileID: "a", State: StatePending})
		tracker.Set(FileStatus{FileID: "b", State: StatePending})

		tracker.Remove("a")
		assert.Len(t, tracker.Snapshot(), 1)

		tracker.Clear()
		assert.Empty(t, tracker.Snapshot())
	})
}
