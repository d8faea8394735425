package pipeline

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_Lifecycle(t *testing.T) {
	tr := NewTracker()
	assert.Equal(t, StageIdle, tr.Snapshot().Stage)
	assert.False(t, tr.Busy())

	require.True(t, tr.Begin())
	assert.True(t, tr.Busy())
	assert.Equal(t, StageReading, tr.Snapshot().Stage)

	tr.Complete(StageReading)
	tr.Advance(StageExtractingText)
	tr.Complete(StageExtractingText)
	tr.Complete(StageExtractingRecords)
	tr.Done()

	snap := tr.Snapshot()
	assert.Equal(t, StageDone, snap.Stage)
	assert.Equal(t, []Stage{StageReading, StageExtractingText, StageExtractingRecords}, snap.Completed)
	assert.False(t, tr.Busy(), "done is an at-rest state")
}

func TestTracker_BeginRejectsWhileRunning(t *testing.T) {
	tr := NewTracker()
	require.True(t, tr.Begin())
	assert.False(t, tr.Begin())

	tr.Done()
	assert.True(t, tr.Begin(), "a new run may start after done")
	assert.Empty(t, tr.Snapshot().Completed, "begin resets progress")
}

func TestTracker_BeginAfterError(t *testing.T) {
	tr := NewTracker()
	require.True(t, tr.Begin())
	tr.Fail("something broke")

	snap := tr.Snapshot()
	assert.Equal(t, StageError, snap.Stage)
	assert.Equal(t, "something broke", snap.Error)

	require.True(t, tr.Begin())
	assert.Empty(t, tr.Snapshot().Error, "begin clears the previous error")
}

func TestTracker_ResetIgnoredWhileRunning(t *testing.T) {
	tr := NewTracker()
	require.True(t, tr.Begin())
	tr.Reset()
	assert.Equal(t, StageReading, tr.Snapshot().Stage)

	tr.Done()
	tr.Reset()
	assert.Equal(t, StageIdle, tr.Snapshot().Stage)
}

func TestTracker_SnapshotIsACopy(t *testing.T) {
	tr := NewTracker()
	require.True(t, tr.Begin())
	tr.Complete(StageReading)

	snap := tr.Snapshot()
	snap.Completed[0] = StageError
	assert.Equal(t, []Stage{StageReading}, tr.Snapshot().Completed)
}

func TestTracker_ConcurrentCompletes(t *testing.T) {
	tr := NewTracker()
	require.True(t, tr.Begin())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Complete(StageExtractingText)
			_ = tr.Snapshot()
		}()
	}
	wg.Wait()

	assert.Len(t, tr.Snapshot().Completed, 50)
}
