package executor

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wtmt/internal/logging"
	"wtmt/internal/workload"
)

// enableDebugLogging writes all categories under a temp dir until the test ends.
func enableDebugLogging(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, logging.Initialize(dir, logging.Settings{DebugMode: true, Level: "debug"}))
	t.Cleanup(func() { _ = logging.Initialize(dir, logging.Settings{}) })
	return dir
}

func readLog(t *testing.T, dir, name string) string {
	t.Helper()
	logging.CloseAll()
	date := time.Now().Format("2006-01-02")
	data, err := os.ReadFile(filepath.Join(dir, "logs", date+"_"+name+".log"))
	require.NoError(t, err)
	return string(data)
}

func auditEvents(t *testing.T, dir string) []logging.AuditEvent {
	t.Helper()
	var events []logging.AuditEvent
	sc := bufio.NewScanner(strings.NewReader(readLog(t, dir, "audit")))
	for sc.Scan() {
		var ev logging.AuditEvent
		require.NoError(t, json.Unmarshal(sc.Bytes(), &ev))
		events = append(events, ev)
	}
	return events
}

func TestStop_FailsPendingOperations(t *testing.T) {
	dir := enableDebugLogging(t)

	eng := newFakeEngine()
	eng.gate = make(chan struct{})
	ex, reg := newTestExecutor(t, eng, Config{Workers: 1, QueueDepth: 4})
	table := reg.Acquire("s")

	running := submit(t, ex, table, workload.KindInsert, 1)
	waitRunning(t, ex, running)
	pending := submit(t, ex, table, workload.KindInsert, 1)
	pending2 := submit(t, ex, table, workload.KindDelete, 1)

	ex.Stop()

	final := make(map[string]workload.Snapshot)
	for s := range ex.Progress() {
		final[s.ID] = s
	}
	for _, id := range []string{running, pending, pending2} {
		s, ok := final[id]
		require.True(t, ok, "no final progress message for %s", id)
		assert.Equal(t, workload.StatusFailed, s.Status)
		assert.ErrorIs(t, s.Err, context.Canceled)
	}

	ended := make(map[string]int)
	for _, ev := range auditEvents(t, dir) {
		if ev.EventType == logging.AuditOpFailed {
			ended[ev.OpID]++
		}
	}
	assert.Equal(t, map[string]int{running: 1, pending: 1, pending2: 1}, ended)
}

func TestBatch_SlowCallsLogged(t *testing.T) {
	dir := enableDebugLogging(t)

	saved := slowBatchThreshold
	slowBatchThreshold = 0
	t.Cleanup(func() { slowBatchThreshold = saved })

	ex, reg := newTestExecutor(t, newFakeEngine(), Config{Workers: 1, BatchSize: 5})
	id := submit(t, ex, reg.Acquire("slow"), workload.KindInsert, 10)
	res := collect(t, ex, id)
	require.Equal(t, workload.StatusDone, last(res[id]).Status)
	ex.Stop()

	out := readLog(t, dir, "executor")
	assert.Contains(t, out, "SLOW: insert batch of 5 on table:slow")
	assert.Contains(t, out, "progress 10/10")
	assert.Contains(t, out, id[:8])
}
