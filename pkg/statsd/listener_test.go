package statsd

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/mockd-statsd/pkg/logging"
	"github.com/getmockd/mockd-statsd/pkg/metrics"
)

// failingConn fails every read until closed.
type failingConn struct {
	net.PacketConn
	reads  atomic.Int32
	closed atomic.Bool
}

func (c *failingConn) ReadFrom([]byte) (int, net.Addr, error) {
	c.reads.Add(1)
	if c.closed.Load() {
		return 0, nil, net.ErrClosed
	}
	return 0, nil, errors.New("transient read failure")
}

func send(t testing.TB, addr string, payloads ...string) {
	t.Helper()
	conn, err := net.Dial("udp", addr)
	require.NoError(t, err)
	defer conn.Close()
	for _, p := range payloads {
		_, err := conn.Write([]byte(p))
		require.NoError(t, err)
	}
}

func TestListener_EphemeralPortAndReceive(t *testing.T) {
	var got atomic.Int32
	received := make(chan string, 1)
	l := NewListener(func(payload []byte, from net.Addr) {
		got.Add(1)
		select {
		case received <- string(payload):
		default:
		}
	})

	addr, err := l.Start(context.Background(), "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Stop()

	udp := addr.(*net.UDPAddr)
	assert.NotZero(t, udp.Port)
	assert.Equal(t, StateRunning, l.State())
	assert.Equal(t, addr.String(), l.Addr().String())

	send(t, addr.String(), "a:1|c")

	select {
	case p := <-received:
		assert.Equal(t, "a:1|c", p)
	case <-time.After(2 * time.Second):
		t.Fatal("datagram not received")
	}
}

func TestListener_StopIsIdempotentAndPrompt(t *testing.T) {
	l := NewListener(func([]byte, net.Addr) {})
	_, err := l.Start(context.Background(), "127.0.0.1:0")
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, l.Stop())
	assert.Less(t, time.Since(start), DefaultStopGracePeriod)
	assert.NoError(t, l.Stop())
	assert.Equal(t, StateStopped, l.State())
}

func TestListener_StopBeforeStart(t *testing.T) {
	l := NewListener(func([]byte, net.Addr) {})
	assert.NoError(t, l.Stop())
	assert.Equal(t, StateCreated, l.State())
	assert.Nil(t, l.Addr())
}

func TestListener_CannotRestart(t *testing.T) {
	l := NewListener(func([]byte, net.Addr) {})
	_, err := l.Start(context.Background(), "127.0.0.1:0")
	require.NoError(t, err)

	_, err = l.Start(context.Background(), "127.0.0.1:0")
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	require.NoError(t, l.Stop())
	_, err = l.Start(context.Background(), "127.0.0.1:0")
	assert.ErrorIs(t, err, ErrServerStopped)
}

func TestListener_BindFailureLeavesCreated(t *testing.T) {
	taken, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	l := NewListener(func([]byte, net.Addr) {})
	_, err = l.Start(context.Background(), taken.LocalAddr().String())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen on")
	assert.Equal(t, StateCreated, l.State())

	addr, err := l.Start(context.Background(), "127.0.0.1:0")
	require.NoError(t, err, "retry after a failed bind should work")
	assert.NotNil(t, addr)
	require.NoError(t, l.Stop())
}

func TestListener_PortReusableAfterStop(t *testing.T) {
	first := NewListener(func([]byte, net.Addr) {})
	addr, err := first.Start(context.Background(), "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, first.Stop())

	second := NewListener(func([]byte, net.Addr) {})
	again, err := second.Start(context.Background(), addr.String())
	require.NoError(t, err)
	defer second.Stop()
	assert.Equal(t, addr.String(), again.String())
}

func TestListener_ManyShortLivedInstances(t *testing.T) {
	for i := 0; i < 50; i++ {
		l := NewListener(func([]byte, net.Addr) {})
		_, err := l.Start(context.Background(), "127.0.0.1:0")
		require.NoError(t, err)
		require.NoError(t, l.Stop())
	}
}

func TestListener_ReadErrorsBackOff(t *testing.T) {
	conn := &failingConn{}
	l := NewListener(func([]byte, net.Addr) {})
	done := make(chan struct{})
	go l.receive(conn, done, 64, logging.Nop(), metrics.Noop{})

	time.Sleep(10 * readErrorBackoff)
	conn.closed.Store(true)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("receive loop did not exit after close")
	}
	assert.LessOrEqual(t, conn.reads.Load(), int32(15))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "created", StateCreated.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "State(9)", State(9).String())
}
