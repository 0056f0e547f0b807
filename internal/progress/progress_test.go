package progress

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTracker(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewTracker("Analyzing", 10, WithWriter(&buf))
	require.NotNil(t, tracker.bar)
	assert.Equal(t, "Analyzing", tracker.label)
	assert.Same(t, &buf, tracker.out)
}

func TestNewSpinner(t *testing.T) {
	var buf bytes.Buffer
	spinner := NewSpinner("Scanning", WithWriter(&buf))
	require.NotNil(t, spinner.bar)
	spinner.Tick()
	spinner.FinishSuccess()
}

func TestTickConcurrent(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewTracker("Concurrent", 100, WithWriter(&buf))

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				tracker.Tick()
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 100, tracker.bar.State().CurrentNum)
	tracker.FinishSuccess()
}

func TestCallbackGrowsTotal(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewTracker("Analyzing", 1, WithWriter(&buf))
	cb := tracker.Callback()

	cb(1, 3, "A.cs")
	cb(2, 3, "B.cs")
	assert.EqualValues(t, 3, tracker.bar.GetMax64())
	assert.EqualValues(t, 2, tracker.bar.State().CurrentNum)
}

func TestFinishError(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewTracker("Analyzing", 1, WithWriter(&buf))
	tracker.FinishError(errors.New("boom"))
	assert.Contains(t, buf.String(), "Analyzing error: boom")
}
