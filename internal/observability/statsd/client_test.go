package statsd

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMetricName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		" resolver/transition ": "resolver_transition",
		"sync..signal":          "sync.signal",
		"multi  space":          "multi__space",
		".":                     "",
	}
	for input, want := range tests {
		assert.Equal(t, want, normalizeMetricName(input), input)
	}
}

func TestFormatTags(t *testing.T) {
	t.Parallel()

	global := map[string]string{"env": "prod", " service ": " sitegate "}
	local := map[string]string{"to": " authenticated ", "": "ignored", "env": "stage"}

	assert.Equal(t, "|#env:stage,service:sitegate,to:authenticated", formatTags(global, local))
	assert.Empty(t, formatTags(nil, nil))
}

func TestClientWritesLines(t *testing.T) {
	t.Parallel()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	c, err := NewClient(Config{
		Enabled:    true,
		Address:    pc.LocalAddr().String(),
		Prefix:     ".sitegate.",
		GlobalTags: map[string]string{"mode": "host"},
	})
	require.NoError(t, err)
	defer c.Close()
	require.True(t, c.Enabled())

	c.Count("resolver.transition", 1, map[string]string{"to": "authenticated"})

	buf := make([]byte, 512)
	require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "sitegate.resolver.transition:1|c|#mode:host,to:authenticated", string(buf[:n]))
}

func TestClientDisabledAndClose(t *testing.T) {
	t.Parallel()

	c, err := NewClient(Config{Enabled: true, Address: "   "})
	require.NoError(t, err)
	assert.False(t, c.Enabled())
	assert.NotPanics(t, func() { c.Gauge("x", 1, nil) })
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	var nilClient *Client
	assert.False(t, nilClient.Enabled())
	assert.NoError(t, nilClient.Close())
	assert.NotPanics(t, func() { nilClient.Count("x", 1, nil) })
}

func TestNewClientDialError(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{Enabled: true, Address: "bad address"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statsd dial")
}

func TestRecorder(t *testing.T) {
	t.Parallel()

	var r Recorder
	tags := map[string]string{"k": "v"}
	r.Count("a", 2, tags)
	r.Timing("b", time.Second, nil)
	tags["k"] = "changed"

	got := r.Samples("a")
	require.Len(t, got, 1)
	assert.Equal(t, float64(2), got[0].Value)
	assert.Equal(t, "v", got[0].Tags["k"])
	assert.Len(t, r.Samples(""), 2)
}
