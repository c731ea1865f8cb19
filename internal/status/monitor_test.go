package status

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/KevinKickass/OpenBatchCore/internal/metrics"
	"github.com/KevinKickass/OpenBatchCore/internal/registers"
)

func TestMonitor_GaugesFollowChangeEvents(t *testing.T) {
	m := NewMonitor(newTestTracker(&fakeBus{}), time.Second, zaptest.NewLogger(t), nil)

	m.handleChange(ChangeEvent{Field: "processingState", Previous: 0, Current: 9, Readable: "ERROR"})
	assert.Equal(t, 9.0, testutil.ToFloat64(metrics.ProcessingState))

	m.handleChange(ChangeEvent{Field: "trigger", Previous: 0, Current: 1, Readable: "DOWNLOAD_BATCH"})
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TriggerState))

	m.handleChange(ChangeEvent{Field: "errorCode", Previous: 0, Current: 3, Readable: "DATA_FORMAT_ERROR"})
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.ErrorCode))

	// Fields without a gauge only log and broadcast.
	m.handleChange(ChangeEvent{Field: "selectedBatch", Previous: 1, Current: 4})

	m.handleChange(ChangeEvent{Field: "processingState", Previous: 9, Current: 0, Readable: "IDLE"})
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.ProcessingState))
}

func TestMonitor_RunPollsUntilCancelled(t *testing.T) {
	bus := &fakeBus{}
	bus.words[registers.AddrProcessingState-1] = uint16(StateComplete)
	tr := newTestTracker(bus)
	m := NewMonitor(tr, 5*time.Millisecond, zaptest.NewLogger(t), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	// The first poll primes the mirror from the bus image.
	require.Eventually(t, func() bool {
		return tr.Snapshot().ProcessingState == StateComplete
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop after cancellation")
	}
}
