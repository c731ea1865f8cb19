package printer

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/KevinKickass/OpenBatchCore/internal/types"
)

// lineCollector is an in-process printhead: it accepts connections,
// collects received lines and optionally acknowledges each one.
type lineCollector struct {
	lines chan string
}

func startCollector(t *testing.T, reply bool) (*lineCollector, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	c := &lineCollector{lines: make(chan string, 32)}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				scanner := bufio.NewScanner(conn)
				for scanner.Scan() {
					c.lines <- scanner.Text()
					if reply {
						conn.Write([]byte("ok\n"))
					}
				}
			}(conn)
		}
	}()
	return c, ln.Addr().(*net.TCPAddr).Port
}

func (c *lineCollector) wait(t *testing.T, n int) []string {
	t.Helper()
	out := make([]string, 0, n)
	for len(out) < n {
		select {
		case line := <-c.lines:
			out = append(out, line)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d of %d lines", len(out), n)
		}
	}
	return out
}

// freePort reserves and releases a port nothing listens on.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func testConfig(port1, port2 int) Config {
	return Config{
		Host:         "127.0.0.1",
		PortHead1:    port1,
		PortHead2:    port2,
		Timeout:      time.Second,
		CommandDelay: time.Millisecond,
		Attempts:     2,
		RetryDelay:   time.Millisecond,
	}
}

func TestBuildCommands(t *testing.T) {
	rec := types.BatchRecord{
		Index:          1042,
		BatchCode:      "A1042",
		DryerCode:      "D7",
		ProductionDate: "2026-01-15",
		ExpiryDate:     "2027-01-15",
	}

	commands := BuildCommands(rec)

	assert.Equal(t, []string{
		`external_field string 0 "A1042"`,
		`external_field string 1 "D7"`,
		`external_field string 2 "2026-01-15"`,
		`external_field string 3 "2027-01-15"`,
	}, commands)
}

func TestBuildCommands_SanitizesValues(t *testing.T) {
	rec := types.BatchRecord{Index: 1042, BatchCode: `A"42`, DryerCode: "D\n7"}

	commands := BuildCommands(rec)

	assert.Equal(t, `external_field string 0 "A'42"`, commands[0])
	assert.Equal(t, `external_field string 1 "D 7"`, commands[1])
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`plain`, `plain`},
		{`say "hi"`, `say 'hi'`},
		{"a\rb", "a b"},
		{"a\nb", "a b"},
		{"a\tb", "a b"},
		{"  padded  ", "padded"},
		{"\r\n", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Sanitize(tt.in), "input %q", tt.in)
	}
}

func TestSendCommands_DeliversAllLinesInOrder(t *testing.T) {
	collector, port := startCollector(t, false)
	head := newHeadClient("head1", port, testConfig(port, 0), zap.NewNop())

	commands := []string{
		`external_field string 0 "A1042"`,
		`external_field string 1 "D7"`,
		`external_field string 2 "2026-01-15"`,
		`external_field string 3 "2027-01-15"`,
	}
	err := head.SendCommands(context.Background(), commands)

	require.NoError(t, err)
	assert.Equal(t, commands, collector.wait(t, 4))
}

func TestSendCommands_ConsumesAcknowledgments(t *testing.T) {
	collector, port := startCollector(t, true)
	cfg := testConfig(port, 0)
	cfg.ReadAck = true
	head := newHeadClient("head1", port, cfg, zap.NewNop())

	err := head.SendCommands(context.Background(), []string{"one", "two"})

	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, collector.wait(t, 2))
}

func TestSendCommands_RejectsControlCharacters(t *testing.T) {
	head := newHeadClient("head1", freePort(t), testConfig(0, 0), zap.NewNop())

	err := head.SendCommands(context.Background(), []string{"bad\rcommand"})

	require.Error(t, err)
	assert.True(t, types.IsFailureKind(err, types.FailureProtocol))
}

func TestSendCommands_UnreachableHeadIsConnectionFailure(t *testing.T) {
	head := newHeadClient("head1", freePort(t), testConfig(0, 0), zap.NewNop())

	err := head.SendCommands(context.Background(), []string{"one"})

	require.Error(t, err)
	assert.True(t, types.IsFailureKind(err, types.FailureConnection))
}

func TestSendToAll_BothHeadsReceive(t *testing.T) {
	col1, port1 := startCollector(t, false)
	col2, port2 := startCollector(t, false)
	d := NewDualClient(testConfig(port1, port2), zap.NewNop())

	err := d.SendToAll(context.Background(), []string{"one", "two"})

	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, col1.wait(t, 2))
	assert.Equal(t, []string{"one", "two"}, col2.wait(t, 2))
}

func TestSendToAll_FailsWhenOneHeadIsDown(t *testing.T) {
	col1, port1 := startCollector(t, false)
	d := NewDualClient(testConfig(port1, freePort(t)), zap.NewNop())

	err := d.SendToAll(context.Background(), []string{"one"})

	require.Error(t, err)
	// Head one was addressed first and did receive the command set.
	assert.Equal(t, []string{"one"}, col1.wait(t, 1))
}

func TestTestConnections(t *testing.T) {
	_, port1 := startCollector(t, false)
	_, port2 := startCollector(t, false)

	ok := NewDualClient(testConfig(port1, port2), zap.NewNop())
	assert.NoError(t, ok.TestConnections(context.Background()))

	down := NewDualClient(testConfig(port1, freePort(t)), zap.NewNop())
	assert.Error(t, down.TestConnections(context.Background()))
}
