package plc

import (
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"
	"go.uber.org/zap"

	"github.com/KevinKickass/OpenBatchCore/internal/metrics"
	"github.com/KevinKickass/OpenBatchCore/internal/registers"
	"github.com/KevinKickass/OpenBatchCore/internal/types"
)

// wireClient is the slice of the Modbus API the client actually uses.
// Narrow on purpose, tests substitute it.
type wireClient interface {
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
	WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error)
}

type Config struct {
	Host       string
	Port       int
	SlaveID    uint8
	Timeout    time.Duration
	Attempts   int
	RetryDelay time.Duration
}

// Client is the single Modbus TCP connection to the controller. It
// serializes requests; the operation loop and the status monitor share
// it. Word addressing is 1-based over the 120-word image, the protocol
// address on the wire is one lower.
type Client struct {
	cfg    Config
	logger *zap.Logger

	mu        sync.Mutex
	handler   *modbus.TCPClientHandler
	wire      wireClient
	connected bool
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	return &Client{
		cfg:    cfg,
		logger: logger,
	}
}

// EnsureConnected establishes the TCP connection if it is not up yet.
func (c *Client) EnsureConnected() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensureConnectedLocked()
}

func (c *Client) ensureConnectedLocked() error {
	if c.connected && c.wire != nil {
		return nil
	}

	endpoint := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)
	handler := modbus.NewTCPClientHandler(endpoint)
	handler.SlaveId = c.cfg.SlaveID
	handler.Timeout = c.cfg.Timeout

	if err := handler.Connect(); err != nil {
		return types.NewConnectionFailure("plc", "connect", err).
			WithDetail("endpoint", endpoint)
	}

	c.handler = handler
	c.wire = modbus.NewClient(handler)
	c.connected = true
	c.logger.Info("PLC connected",
		zap.String("endpoint", endpoint),
		zap.Uint8("slave_id", c.cfg.SlaveID))
	return nil
}

func (c *Client) dropConnectionLocked() {
	if c.handler != nil {
		_ = c.handler.Close()
	}
	c.handler = nil
	c.wire = nil
	c.connected = false
}

// Close tears down the TCP connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handler == nil {
		return nil
	}
	err := c.handler.Close()
	c.handler = nil
	c.wire = nil
	c.connected = false
	return err
}

// TestConnection verifies the link by reading the first word.
func (c *Client) TestConnection() error {
	_, err := c.ReadWords(registers.AddrTrigger, 1)
	return err
}

// ReadWords reads count holding registers starting at the 1-based word
// address. Failed attempts reconnect and retry; after the last attempt
// the error surfaces as a connection failure.
func (c *Client) ReadWords(start, count int) ([]uint16, error) {
	if err := checkRange(start, count); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= c.cfg.Attempts; attempt++ {
		if err := c.ensureConnectedLocked(); err != nil {
			lastErr = err
		} else {
			data, err := c.wire.ReadHoldingRegisters(uint16(start-1), uint16(count))
			if err == nil {
				if len(data) != count*2 {
					metrics.RegisterReadsTotal.WithLabelValues("failure").Inc()
					return nil, types.NewStructuralFailure("plc", "read words",
						fmt.Errorf("expected %d bytes, got %d", count*2, len(data)))
				}
				metrics.RegisterReadsTotal.WithLabelValues("success").Inc()
				return unpackWords(data), nil
			}
			lastErr = err
			c.dropConnectionLocked()
		}

		c.logger.Warn("PLC read failed",
			zap.Int("start", start),
			zap.Int("count", count),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.cfg.Attempts),
			zap.Error(lastErr))
		if attempt < c.cfg.Attempts {
			time.Sleep(c.cfg.RetryDelay)
		}
	}

	metrics.RegisterReadsTotal.WithLabelValues("failure").Inc()
	return nil, types.NewConnectionFailure("plc", "read words", lastErr).
		WithDetail("start", start).
		WithDetail("count", count)
}

// WriteWords writes the words in one multiple-register call starting at
// the 1-based word address. Same retry policy as ReadWords.
func (c *Client) WriteWords(start int, words []uint16) error {
	if err := checkRange(start, len(words)); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	payload := packWords(words)

	var lastErr error
	for attempt := 1; attempt <= c.cfg.Attempts; attempt++ {
		if err := c.ensureConnectedLocked(); err != nil {
			lastErr = err
		} else {
			_, err := c.wire.WriteMultipleRegisters(uint16(start-1), uint16(len(words)), payload)
			if err == nil {
				metrics.RegisterWritesTotal.WithLabelValues("success").Inc()
				return nil
			}
			lastErr = err
			c.dropConnectionLocked()
		}

		c.logger.Warn("PLC write failed",
			zap.Int("start", start),
			zap.Int("count", len(words)),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.cfg.Attempts),
			zap.Error(lastErr))
		if attempt < c.cfg.Attempts {
			time.Sleep(c.cfg.RetryDelay)
		}
	}

	metrics.RegisterWritesTotal.WithLabelValues("failure").Inc()
	return types.NewConnectionFailure("plc", "write words", lastErr).
		WithDetail("start", start).
		WithDetail("count", len(words))
}

func checkRange(start, count int) error {
	if count < 1 || !registers.ValidAddress(start) || !registers.ValidAddress(start+count-1) {
		return types.NewStructuralFailure("plc", "address check",
			fmt.Errorf("words [%d,%d] outside image range [1,%d]", start, start+count-1, registers.ImageWords))
	}
	return nil
}

func packWords(words []uint16) []byte {
	out := make([]byte, len(words)*2)
	for i, w := range words {
		out[2*i] = byte(w >> 8)
		out[2*i+1] = byte(w)
	}
	return out
}

func unpackWords(data []byte) []uint16 {
	out := make([]uint16, len(data)/2)
	for i := range out {
		out[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return out
}
