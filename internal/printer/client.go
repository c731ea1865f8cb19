package printer

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/KevinKickass/OpenBatchCore/internal/metrics"
	"github.com/KevinKickass/OpenBatchCore/internal/types"
)

// ackDeadline bounds the optional acknowledgment read after each
// command. Some firmware revisions answer, some stay silent; either way
// the send continues.
const ackDeadline = time.Second

type Config struct {
	Host         string
	PortHead1    int
	PortHead2    int
	Timeout      time.Duration
	CommandDelay time.Duration
	Attempts     int
	RetryDelay   time.Duration
	ReadAck      bool
}

// HeadClient drives one physical printhead. Each send attempt opens a
// fresh connection; the printheads drop idle sockets quickly, so holding
// one across operations is not worth the reconnect complexity.
type HeadClient struct {
	id       string
	endpoint string
	cfg      Config
	logger   *zap.Logger
}

func newHeadClient(id string, port int, cfg Config, logger *zap.Logger) *HeadClient {
	return &HeadClient{
		id:       id,
		endpoint: fmt.Sprintf("%s:%d", cfg.Host, port),
		cfg:      cfg,
		logger:   logger,
	}
}

func (h *HeadClient) ID() string { return h.id }

// SendCommands streams the command lines to the printhead. Retries use a
// fresh connection and progressively longer pauses. Commands carrying
// control characters abort immediately, resending them cannot help.
func (h *HeadClient) SendCommands(ctx context.Context, commands []string) error {
	for _, cmd := range commands {
		if err := checkCommand(cmd); err != nil {
			metrics.PrinterSendsTotal.WithLabelValues(h.id, "failure").Inc()
			return types.NewProtocolFailure("printer", "check command", err).
				WithDetail("printhead", h.id)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= h.cfg.Attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				metrics.PrinterSendsTotal.WithLabelValues(h.id, "failure").Inc()
				return types.NewConnectionFailure("printer", "send commands", ctx.Err()).
					WithDetail("printhead", h.id)
			case <-time.After(h.cfg.RetryDelay * time.Duration(attempt)):
			}
		}

		err := h.sendOnce(ctx, commands)
		if err == nil {
			metrics.PrinterSendsTotal.WithLabelValues(h.id, "success").Inc()
			return nil
		}
		lastErr = err
		h.logger.Warn("Printhead send failed",
			zap.String("printhead", h.id),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", h.cfg.Attempts),
			zap.Error(err))
	}

	metrics.PrinterSendsTotal.WithLabelValues(h.id, "failure").Inc()
	if types.IsFailureKind(lastErr, types.FailureConnection) {
		return types.NewConnectionFailure("printer", "send commands", lastErr).
			WithDetail("printhead", h.id).
			WithDetail("attempts", h.cfg.Attempts)
	}
	return types.NewProtocolFailure("printer", "send commands", lastErr).
		WithDetail("printhead", h.id).
		WithDetail("attempts", h.cfg.Attempts)
}

func (h *HeadClient) sendOnce(ctx context.Context, commands []string) error {
	dialer := net.Dialer{Timeout: h.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", h.endpoint)
	if err != nil {
		return types.NewConnectionFailure("printer", "dial", err).
			WithDetail("endpoint", h.endpoint)
	}
	defer conn.Close()

	for i, cmd := range commands {
		if err := conn.SetWriteDeadline(time.Now().Add(h.cfg.Timeout)); err != nil {
			return err
		}
		if _, err := conn.Write([]byte(cmd + "\n")); err != nil {
			return fmt.Errorf("write command %d: %w", i, err)
		}

		if h.cfg.ReadAck {
			h.readAck(conn, i)
		}

		// Pause between commands, the firmware needs settle time. Not
		// after the last one.
		if i < len(commands)-1 && h.cfg.CommandDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(h.cfg.CommandDelay):
			}
		}
	}
	return nil
}

// readAck drains a response line if one comes. Never fatal.
func (h *HeadClient) readAck(conn net.Conn, cmdIndex int) {
	if err := conn.SetReadDeadline(time.Now().Add(ackDeadline)); err != nil {
		return
	}
	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	if err != nil {
		h.logger.Debug("No printhead acknowledgment",
			zap.String("printhead", h.id),
			zap.Int("command", cmdIndex))
		return
	}
	h.logger.Debug("Printhead acknowledgment",
		zap.String("printhead", h.id),
		zap.Int("command", cmdIndex),
		zap.ByteString("response", buf[:n]))
}

// TestConnection dials the printhead and closes again.
func (h *HeadClient) TestConnection(ctx context.Context) error {
	dialer := net.Dialer{Timeout: h.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", h.endpoint)
	if err != nil {
		return types.NewConnectionFailure("printer", "test connection", err).
			WithDetail("printhead", h.id)
	}
	return conn.Close()
}

// DualClient addresses both printheads. They carry the same label
// template and must stay in sync, so every send goes to both and only
// counts when both succeed.
type DualClient struct {
	heads  []*HeadClient
	logger *zap.Logger
}

func NewDualClient(cfg Config, logger *zap.Logger) *DualClient {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	return &DualClient{
		heads: []*HeadClient{
			newHeadClient("head1", cfg.PortHead1, cfg, logger),
			newHeadClient("head2", cfg.PortHead2, cfg, logger),
		},
		logger: logger,
	}
}

// SendToAll sends the command set to both printheads in order. The first
// failure aborts; the controller retriggers the load after the operator
// clears the fault, so a half-updated pair never prints.
func (d *DualClient) SendToAll(ctx context.Context, commands []string) error {
	for _, head := range d.heads {
		if err := head.SendCommands(ctx, commands); err != nil {
			return err
		}
		d.logger.Info("Printhead updated", zap.String("printhead", head.ID()))
	}
	return nil
}

// TestConnections checks both printhead links.
func (d *DualClient) TestConnections(ctx context.Context) error {
	for _, head := range d.heads {
		if err := head.TestConnection(ctx); err != nil {
			return err
		}
	}
	return nil
}
