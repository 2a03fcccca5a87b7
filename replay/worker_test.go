package replay

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/itplaylab/eventgate/sink"
	"github.com/itplaylab/eventgate/spool"
)

// scriptedPoster returns canned results in order, then succeeds.
type scriptedPoster struct {
	script []bool
	bodies []map[string]interface{}
}

func (p *scriptedPoster) Post(_ context.Context, _ string, body interface{}) sink.WebhookResult {
	var raw, _ = json.Marshal(body)
	var m map[string]interface{}
	_ = json.Unmarshal(raw, &m)
	p.bodies = append(p.bodies, m)

	var ok = true
	if len(p.script) > 0 {
		ok, p.script = p.script[0], p.script[1:]
	}
	if !ok {
		return sink.WebhookResult{OK: false, Status: 200, Error: "gas_timeout"}
	}
	return sink.WebhookResult{OK: true, Status: 200}
}

func spoolFixture(t *testing.T, stages ...string) (string, []int64) {
	t.Helper()
	var dir = t.TempDir()
	var path = filepath.Join(dir, "spool.jsonl")
	var w = spool.NewWriter(path, 1<<20)

	var ends []int64
	for i, stage := range stages {
		require.NoError(t, w.Append(spool.Record{
			TS:        "2024-05-02T13:04:05.000Z",
			Kind:      "ingest",
			Stage:     stage,
			JobID:     jobName(i),
			Payload:   json.RawMessage(`{"n":1}`),
			EventType: "click",
			Source:    "web",
		}))
		var fi, err = os.Stat(path)
		require.NoError(t, err)
		ends = append(ends, fi.Size())
	}
	return path, ends
}

func jobName(i int) string { return "job_" + string(rune('1'+i)) }

func testConfig(path string) Config {
	return Config{
		SpoolPath:       path,
		Enabled:         true,
		SpoolEnabled:    true,
		Mode:            ModeFallbackOnly,
		Interval:        time.Minute,
		BatchSize:       10,
		MaxBytesPerTick: 1 << 20,
	}
}

func TestReplayStopsOnFirstFailure(t *testing.T) {
	var path, ends = spoolFixture(t, spool.StageFallback, spool.StageFallback, spool.StageFallback)
	var states = spool.NewStateStore(filepath.Join(filepath.Dir(path), "replay_state.json"))
	var poster = &scriptedPoster{script: []bool{true, false}} // R1 ok, R2 fails.

	var w = NewWorker(testConfig(path), states, poster)
	var res = w.TickOnce(context.Background())

	require.Equal(t, 1, res.Sent)
	require.Equal(t, 1, res.Failed)
	require.Equal(t, "gas_timeout", res.Error)

	var st = states.Load()
	require.Equal(t, ends[0], st.Offset) // Past R1's newline, not R2's.
	require.Equal(t, int64(1), st.Sent)
	require.Equal(t, int64(1), st.Failed)
	require.Equal(t, "gas_timeout", st.LastError)

	// The webhook recovers: the next tick resumes at R2 and drains the file.
	res = w.TickOnce(context.Background())
	require.Equal(t, 2, res.Sent)
	require.Equal(t, "", res.Error)

	st = states.Load()
	require.Equal(t, ends[2], st.Offset)
	require.Equal(t, int64(3), st.Sent)
	require.Equal(t, "", st.LastError)

	// R2 was posted twice (failed, then retried), R1 exactly once.
	require.Equal(t, "job_1", poster.bodies[0]["job_id"])
	require.Equal(t, "job_2", poster.bodies[1]["job_id"])
	require.Equal(t, "job_2", poster.bodies[2]["job_id"])
	require.Equal(t, "job_3", poster.bodies[3]["job_id"])
	require.NotEmpty(t, poster.bodies[0]["replayed_at"])
}

func TestReplayFallbackOnlySkipsAuditRecords(t *testing.T) {
	var path, ends = spoolFixture(t, spool.StageAlways, spool.StageFallback, spool.StageAlways)
	var states = spool.NewStateStore(filepath.Join(filepath.Dir(path), "replay_state.json"))
	var poster = &scriptedPoster{}

	var w = NewWorker(testConfig(path), states, poster)
	var res = w.TickOnce(context.Background())

	require.Equal(t, 1, res.Sent)
	require.Len(t, poster.bodies, 1)
	require.Equal(t, "job_2", poster.bodies[0]["job_id"])
	// Trailing audit records are consumed with the successful window.
	require.Equal(t, ends[2], states.Load().Offset)
}

func TestReplayAllModeReplaysAuditRecords(t *testing.T) {
	var path, _ = spoolFixture(t, spool.StageAlways, spool.StageFallback)
	var states = spool.NewStateStore(filepath.Join(filepath.Dir(path), "replay_state.json"))
	var poster = &scriptedPoster{}

	var cfg = testConfig(path)
	cfg.Mode = ModeAll
	var res = NewWorker(cfg, states, poster).TickOnce(context.Background())

	require.Equal(t, 2, res.Sent)
}

func TestReplayConsumesWindowOfOnlyAuditRecords(t *testing.T) {
	var path, ends = spoolFixture(t, spool.StageAlways, spool.StageAlways)
	var states = spool.NewStateStore(filepath.Join(filepath.Dir(path), "replay_state.json"))
	require.NoError(t, states.Save(spool.State{LastError: "stale"}))

	var res = NewWorker(testConfig(path), states, &scriptedPoster{}).TickOnce(context.Background())

	require.Equal(t, 0, res.Sent)
	require.Equal(t, ends[1], states.Load().Offset)
	require.Equal(t, "", states.Load().LastError)
}

func TestReplayBatchBoundHoldsOffsetBack(t *testing.T) {
	var path, ends = spoolFixture(t, spool.StageFallback, spool.StageFallback, spool.StageFallback)
	var states = spool.NewStateStore(filepath.Join(filepath.Dir(path), "replay_state.json"))
	var poster = &scriptedPoster{}

	var cfg = testConfig(path)
	cfg.BatchSize = 2
	var w = NewWorker(cfg, states, poster)

	var res = w.TickOnce(context.Background())
	require.Equal(t, 2, res.Sent)
	// The third record is not yet delivered: the offset must not cross it.
	require.Equal(t, ends[1], states.Load().Offset)

	res = w.TickOnce(context.Background())
	require.Equal(t, 1, res.Sent)
	require.Equal(t, ends[2], states.Load().Offset)
}

func TestReplayResetsCursorAfterRotation(t *testing.T) {
	var path, ends = spoolFixture(t, spool.StageFallback, spool.StageFallback)
	var states = spool.NewStateStore(filepath.Join(filepath.Dir(path), "replay_state.json"))
	var poster = &scriptedPoster{}
	var w = NewWorker(testConfig(path), states, poster)

	require.Equal(t, 2, w.TickOnce(context.Background()).Sent)
	require.Equal(t, ends[1], states.Load().Offset)

	// Rotation renames the file aside and a fresh, smaller file replaces it.
	// The stale cursor exceeds the fresh file's size and must reset to its
	// head rather than report EOF or resume mid-stream once the file regrows.
	require.NoError(t, os.Rename(path, path+".bak"))
	require.NoError(t, spool.NewWriter(path, 1<<20).Append(spool.Record{
		TS:      "2024-05-02T13:05:00.000Z",
		Kind:    "ingest",
		Stage:   spool.StageFallback,
		JobID:   "job_fresh",
		Payload: json.RawMessage(`{"n":2}`),
	}))

	var res = w.TickOnce(context.Background())
	require.Equal(t, 1, res.Sent)
	require.Equal(t, "job_fresh", poster.bodies[len(poster.bodies)-1]["job_id"])

	var fi, err = os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, fi.Size(), states.Load().Offset)
}

func TestReplaySkipReasons(t *testing.T) {
	var dir = t.TempDir()
	var states = spool.NewStateStore(filepath.Join(dir, "replay_state.json"))

	var cfg = testConfig(filepath.Join(dir, "absent.jsonl"))
	var w = NewWorker(cfg, states, &scriptedPoster{})
	require.Equal(t, "no_jsonl_file", w.TickOnce(context.Background()).Reason)

	cfg.Enabled = false
	require.Equal(t, "replay_disabled", NewWorker(cfg, states, &scriptedPoster{}).TickOnce(context.Background()).Reason)

	cfg.SpoolEnabled = false
	require.Equal(t, "jsonl_disabled", NewWorker(cfg, states, &scriptedPoster{}).TickOnce(context.Background()).Reason)

	// Fully replayed spool reports EOF.
	var path, _ = spoolFixture(t, spool.StageFallback)
	cfg = testConfig(path)
	var w2 = NewWorker(cfg, spool.NewStateStore(filepath.Join(dir, "s2.json")), &scriptedPoster{})
	w2.TickOnce(context.Background())
	require.Equal(t, "eof", w2.TickOnce(context.Background()).Reason)
}

func TestReplayIsSingleFlight(t *testing.T) {
	var path, _ = spoolFixture(t, spool.StageFallback)
	var w = NewWorker(testConfig(path), spool.NewStateStore(filepath.Join(filepath.Dir(path), "s.json")), &scriptedPoster{})
	w.busy.Store(true)
	require.Equal(t, "replay_busy", w.TickOnce(context.Background()).Reason)
}
