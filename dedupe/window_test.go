package dedupe

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWindowDetectsDuplicatesInsideHorizon(t *testing.T) {
	var w = NewWindow(2 * time.Second)
	var t0 = time.Unix(100, 0)

	require.False(t, w.CheckAndRecord("fp", t0))
	require.True(t, w.CheckAndRecord("fp", t0.Add(500*time.Millisecond)))
	require.True(t, w.CheckAndRecord("fp", t0.Add(2*time.Second)))
}

func TestWindowForgetsBeyondHorizon(t *testing.T) {
	var w = NewWindow(2 * time.Second)
	var t0 = time.Unix(100, 0)

	require.False(t, w.CheckAndRecord("fp", t0))
	require.False(t, w.CheckAndRecord("fp", t0.Add(2*time.Second+time.Millisecond)))
	// The stale probe re-recorded the fingerprint.
	require.True(t, w.CheckAndRecord("fp", t0.Add(3*time.Second)))
}

func TestWindowSlidesOnEachObservation(t *testing.T) {
	var w = NewWindow(2 * time.Second)
	var t0 = time.Unix(100, 0)

	require.False(t, w.CheckAndRecord("fp", t0))
	require.True(t, w.CheckAndRecord("fp", t0.Add(1500*time.Millisecond)))
	// Observed at +1.5s, so +3s is still within the slid window.
	require.True(t, w.CheckAndRecord("fp", t0.Add(3*time.Second)))
}

func TestEmptyFingerprintIsNeverDuplicate(t *testing.T) {
	var w = NewWindow(time.Second)
	var now = time.Unix(100, 0)

	require.False(t, w.CheckAndRecord("", now))
	require.False(t, w.CheckAndRecord("", now))
	require.Equal(t, 0, w.Len())
}

func TestWindowIsBounded(t *testing.T) {
	var w = NewWindow(time.Hour)
	var now = time.Unix(100, 0)

	for i := 0; i < capacity+100; i++ {
		w.CheckAndRecord(fmt.Sprintf("fp-%d", i), now)
	}
	require.Equal(t, capacity, w.Len())
}
