package status

import (
	"context"
	"time"

	"github.com/KevinKickass/OpenBatchCore/internal/api/websocket"
	"github.com/KevinKickass/OpenBatchCore/internal/metrics"
	"go.uber.org/zap"
)

// Monitor periodically refreshes the tracker mirror so control-word
// changes made on the controller side surface as events even while no
// operation is running. It only ever reads; every register write in the
// system goes through the tracker from the operation loop.
//
// The monitor is also the single consumer that turns tracker change
// events into log lines, gauge updates and websocket broadcasts, no
// matter which loop caused the change.
type Monitor struct {
	tracker  *Tracker
	interval time.Duration
	logger   *zap.Logger
	wsHub    *websocket.Hub
}

func NewMonitor(tracker *Tracker, interval time.Duration, logger *zap.Logger, wsHub *websocket.Hub) *Monitor {
	return &Monitor{
		tracker:  tracker,
		interval: interval,
		logger:   logger,
		wsHub:    wsHub,
	}
}

// Run blocks until ctx is cancelled. Read failures are logged and the
// loop keeps going; the operation loop owns connection recovery.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info("Status monitor started", zap.Duration("interval", m.interval))

	events := m.tracker.Subscribe()
	defer m.tracker.Unsubscribe(events)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Status monitor stopped")
			return
		case ev := <-events:
			m.handleChange(ev)
		case <-ticker.C:
			if _, err := m.tracker.Read(); err != nil {
				m.logger.Debug("Status read failed", zap.Error(err))
			}
		}
	}
}

func (m *Monitor) handleChange(ev ChangeEvent) {
	m.logger.Info("Control word changed",
		zap.String("field", ev.Field),
		zap.Uint16("previous", ev.Previous),
		zap.Uint16("current", ev.Current),
		zap.String("readable", ev.Readable))

	switch ev.Field {
	case "trigger":
		metrics.TriggerState.Set(float64(ev.Current))
	case "processingState":
		metrics.ProcessingState.Set(float64(ev.Current))
	case "errorCode":
		metrics.ErrorCode.Set(float64(ev.Current))
	}

	if m.wsHub != nil {
		m.wsHub.Broadcast(websocket.NewStatusChangeMessage(
			ev.Field, ev.Previous, ev.Current, ev.Readable))
	}
}
