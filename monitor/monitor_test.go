package monitor

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	u := summarize([]float64{0, 10, 0, 30, 20}, []uint64{1 * mib, 3 * mib, 2 * mib, 2 * mib, 2 * mib})
	assert.Equal(t, 5, u.Samples)
	assert.InDelta(t, 20.0, u.AvgCPU, 1e-9)
	assert.InDelta(t, 30.0, u.MaxCPU, 1e-9)
	assert.InDelta(t, 2.0, u.AvgMemMB, 1e-9)
}

func TestSummarize_Idle(t *testing.T) {
	u := summarize([]float64{0, 0}, []uint64{mib, mib})
	assert.Equal(t, 0.0, u.AvgCPU)
	assert.Equal(t, 0.0, u.MaxCPU)
	assert.InDelta(t, 1.0, u.AvgMemMB, 1e-9)

	assert.Equal(t, Usage{}, summarize(nil, nil))
}

func TestNew_FallsBackToSystem(t *testing.T) {
	m := New(context.Background(), "no-such-process-name-xyz", 10*time.Millisecond)
	assert.Equal(t, "system", m.Target())

	m = New(context.Background(), "", 10*time.Millisecond)
	assert.Equal(t, "system", m.Target())
}

func TestMonitor_OwnProcess(t *testing.T) {
	self, err := process.NewProcess(int32(os.Getpid()))
	require.NoError(t, err)
	name, err := self.Name()
	require.NoError(t, err)

	m := New(context.Background(), name, 10*time.Millisecond)
	assert.Contains(t, m.Target(), name)

	m.Start(context.Background())
	deadline := time.Now().Add(150 * time.Millisecond)
	for x := 0; time.Now().Before(deadline); x++ {
		_ = x * x
	}
	u := m.Stop()

	assert.Positive(t, u.Samples)
	assert.Positive(t, u.AvgMemMB)
	assert.GreaterOrEqual(t, u.MaxCPU, u.AvgCPU)
}

func TestMonitor_StopWithoutStart(t *testing.T) {
	m := New(context.Background(), "", 10*time.Millisecond)
	assert.Equal(t, Usage{}, m.Stop())
}
