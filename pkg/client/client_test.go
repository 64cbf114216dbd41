package client

import (
	"net"
	"testing"
	"time"

	"github.com/cactus/go-statsd-client/v5/statsd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTags(t *testing.T) {
	tags, err := ParseTags("env:prod", "url:http://x", "empty:")
	require.NoError(t, err)
	assert.Equal(t, []statsd.Tag{{"env", "prod"}, {"url", "http://x"}, {"empty", ""}}, tags)

	_, err = ParseTags("canary")
	assert.ErrorIs(t, err, ErrInvalidTag)
	_, err = ParseTags(":v")
	assert.ErrorIs(t, err, ErrInvalidTag)
}

func TestClient_Sends(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	c, err := New(pc.LocalAddr().String(), WithPrefix("app."), WithTags("service:web"))
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Increment("hits"))
	require.NoError(t, c.Decrement("hits", "env:test"))
	require.NoError(t, c.Count("hits", 5, 0.25))
	require.NoError(t, c.Timing("render", 1500*time.Microsecond))
	require.NoError(t, c.Gauge("depth", -4))
	require.NoError(t, c.GaugeDelta("depth", 2))
	require.NoError(t, c.Histogram("size", 512))
	require.NoError(t, c.Distribution("lat", 0.75))
	require.NoError(t, c.Set("users", "alice"))
	require.NoError(t, c.Metric("queue", "+3", "g", 0.5, "env:test"))
	require.NoError(t, c.Send("raw:1|c\nraw:2|c"))

	want := []string{
		"app.hits:1|c|#service:web",
		"app.hits:-1|c|#service:web,env:test",
		"app.hits:5|c|@0.250000|#service:web",
		"app.render:1.5|ms|#service:web",
		"app.depth:0|g|#service:web",
		"app.depth:-4|g|#service:web",
		"app.depth:+2|g|#service:web",
		"app.size:512|h|#service:web",
		"app.lat:0.75|d|#service:web",
		"app.users:alice|s|#service:web",
		"app.queue:+3|g|@0.500000|#service:web,env:test",
		"raw:1|c\nraw:2|c",
	}

	buf := make([]byte, 1024)
	for i, w := range want {
		require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
		n, _, err := pc.ReadFrom(buf)
		require.NoError(t, err, "datagram %d", i)
		assert.Equal(t, w, string(buf[:n]))
	}
}

func TestClient_RateOutsideRangeIsOmitted(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	c, err := New(pc.LocalAddr().String())
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Count("a", 1, 0))
	require.NoError(t, c.Count("b", 1, 2))

	buf := make([]byte, 1024)
	for _, w := range []string{"a:1|c", "b:1|c"} {
		require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
		n, _, err := pc.ReadFrom(buf)
		require.NoError(t, err)
		assert.Equal(t, w, string(buf[:n]))
	}
}

func TestClient_BareLabelRejected(t *testing.T) {
	_, err := New("127.0.0.1:8125", WithTags("canary"))
	assert.ErrorIs(t, err, ErrInvalidTag)

	c, err := New("127.0.0.1:8125")
	require.NoError(t, err)
	defer c.Close()
	assert.ErrorIs(t, c.Increment("hits", "canary"), ErrInvalidTag)
}

func TestNew_BadAddress(t *testing.T) {
	_, err := New("not-an-address")
	assert.Error(t, err)
}
