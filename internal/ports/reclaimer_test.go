package ports_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mingmong/internal/common/errors"
	"mingmong/internal/common/logging"
	"mingmong/internal/ports"
)

// fakeTable simulates a process table: each call to Occupants returns the
// next snapshot, and signals are recorded.
type fakeTable struct {
	snapshots  [][]ports.Occupant
	calls      int
	terminated []int32
	killed     []int32
}

func (f *fakeTable) Occupants(port int) ([]ports.Occupant, error) {
	snap := f.snapshots[f.calls]
	if f.calls < len(f.snapshots)-1 {
		f.calls++
	}
	return snap, nil
}

func (f *fakeTable) Terminate(pid int32) error {
	f.terminated = append(f.terminated, pid)
	return nil
}

func (f *fakeTable) Kill(pid int32) error {
	f.killed = append(f.killed, pid)
	return nil
}

func newReclaimer(table *fakeTable) *ports.Reclaimer {
	return ports.NewReclaimerWith(table, table, logging.NewDefaultLogger())
}

func TestReclaimFreePortSendsNoSignals(t *testing.T) {
	table := &fakeTable{snapshots: [][]ports.Occupant{{}}}

	start := time.Now()
	err := newReclaimer(table).Reclaim(8080)
	require.NoError(t, err)

	assert.Empty(t, table.terminated, "no graceful signals on a free port")
	assert.Empty(t, table.killed, "no forceful signals on a free port")
	assert.Less(t, time.Since(start), time.Second, "free port must succeed without waiting out grace periods")
}

func TestReclaimGracefulTerminationSuffices(t *testing.T) {
	table := &fakeTable{snapshots: [][]ports.Occupant{
		{{PID: 100, Name: "stale-server"}},
		{}, // gone after SIGTERM
	}}

	err := newReclaimer(table).Reclaim(8080)
	require.NoError(t, err)

	assert.Equal(t, []int32{100}, table.terminated)
	assert.Empty(t, table.killed)
}

func TestReclaimEscalatesToKill(t *testing.T) {
	table := &fakeTable{snapshots: [][]ports.Occupant{
		{{PID: 100, Name: "stubborn"}, {PID: 200, Name: "also-stubborn"}},
		{{PID: 200, Name: "also-stubborn"}}, // survived SIGTERM
		{},                                  // gone after SIGKILL
	}}

	err := newReclaimer(table).Reclaim(80)
	require.NoError(t, err)

	assert.Equal(t, []int32{100, 200}, table.terminated)
	assert.Equal(t, []int32{200}, table.killed)
}

func TestReclaimReportsSurvivors(t *testing.T) {
	immortal := ports.Occupant{PID: 1, Name: "immortal"}
	table := &fakeTable{snapshots: [][]ports.Occupant{
		{immortal},
		{immortal},
		{immortal},
	}}

	err := newReclaimer(table).Reclaim(80)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeProvisioning))
	assert.Contains(t, err.Error(), "immortal (pid 1)")
	assert.Contains(t, err.Error(), "port 80")
}

func TestOccupantString(t *testing.T) {
	assert.Equal(t, "nginx (pid 42)", ports.Occupant{PID: 42, Name: "nginx"}.String())
	assert.Equal(t, "pid 42", ports.Occupant{PID: 42}.String())
}
