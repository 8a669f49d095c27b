package notify

import (
	"errors"
	"image"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

type fakeToken struct {
	err      error
	complete bool
}

func (t *fakeToken) Wait() bool                     { return t.complete }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return t.complete }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if t.complete {
		close(ch)
	}
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type fakeMQTT struct {
	connected bool
	token     *fakeToken
	published []string
	topics    []string
	retained  []bool
}

func (f *fakeMQTT) IsConnectionOpen() bool { return f.connected }

func (f *fakeMQTT) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.topics = append(f.topics, topic)
	f.retained = append(f.retained, retained)
	f.published = append(f.published, string(payload.([]byte)))
	return f.token
}

func TestMQTTSink(t *testing.T) {
	t.Run("publishes when connected", func(t *testing.T) {
		c := &fakeMQTT{connected: true, token: &fakeToken{complete: true}}
		s := NewMQTTSink(c, "steps/count", true)

		require.NoError(t, s.Notify([]byte("12")))
		assert.Equal(t, []string{"12"}, c.published)
		assert.Equal(t, []string{"steps/count"}, c.topics)
		assert.Equal(t, []bool{true}, c.retained)
	})

	t.Run("drops while disconnected", func(t *testing.T) {
		c := &fakeMQTT{connected: false, token: &fakeToken{complete: true}}
		s := NewMQTTSink(c, "steps/count", false)

		assert.ErrorIs(t, s.Notify([]byte("12")), ErrNoSubscriber)
		assert.Empty(t, c.published)
	})

	t.Run("connection lost mid publish is a drop", func(t *testing.T) {
		c := &fakeMQTT{connected: true, token: &fakeToken{complete: true, err: mqtt.ErrNotConnected}}
		assert.ErrorIs(t, NewMQTTSink(c, "t", false).Notify([]byte("1")), ErrNoSubscriber)
	})

	t.Run("stalled broker times out", func(t *testing.T) {
		c := &fakeMQTT{connected: true, token: &fakeToken{complete: false}}
		err := NewMQTTSink(c, "t", false).Notify([]byte("1"))
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNoSubscriber)
		assert.Contains(t, err.Error(), "timed out")
	})

	t.Run("other errors surface", func(t *testing.T) {
		boom := errors.New("not authorized")
		c := &fakeMQTT{connected: true, token: &fakeToken{complete: true, err: boom}}
		assert.ErrorIs(t, NewMQTTSink(c, "t", false).Notify([]byte("1")), boom)
	})
}

func TestWebSocketHub(t *testing.T) {
	hub := NewWebSocketHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	assert.ErrorIs(t, hub.Notify([]byte("3")), ErrNoSubscriber, "nobody connected yet")

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// the latest value is replayed on connect
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "3", string(msg))

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Notify([]byte("4")))
	_, msg, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "4", string(msg))

	conn.Close()
	require.Eventually(t, func() bool { return hub.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, hub.Notify([]byte("5")), ErrNoSubscriber)
	assert.NoError(t, hub.Close())
}

type fakePort struct {
	written  strings.Builder
	writeErr error
	closed   bool
}

func (p *fakePort) Write(b []byte) (int, error) {
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	return p.written.Write(b)
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func TestSerialSink(t *testing.T) {
	port := &fakePort{}
	s := NewSerialSink("/dev/ttyUSB0", port)

	require.NoError(t, s.Notify([]byte("1")))
	require.NoError(t, s.Notify([]byte("2")))
	assert.Equal(t, "1\n2\n", port.written.String())

	port.writeErr = errors.New("device unplugged")
	err := s.Notify([]byte("3"))
	assert.ErrorIs(t, err, port.writeErr)
	assert.True(t, port.closed)

	assert.ErrorIs(t, s.Notify([]byte("4")), ErrNoSubscriber)
	assert.NoError(t, s.Close())
}

type fakePanel struct {
	frames []image.Image
}

func (p *fakePanel) Bounds() image.Rectangle { return image.Rect(0, 0, displayW, displayH) }

func (p *fakePanel) Draw(_ image.Rectangle, src image.Image, _ image.Point) error {
	p.frames = append(p.frames, src)
	return nil
}

func TestDisplaySinkRedrawsOnlyOnChange(t *testing.T) {
	p := &fakePanel{}
	s := NewDisplaySink(p, "")

	require.NoError(t, s.Notify([]byte("7")))
	require.NoError(t, s.Notify([]byte("7")))
	require.NoError(t, s.Notify([]byte("8")))
	assert.Len(t, p.frames, 2)
}

func TestRenderLinesSetsPixels(t *testing.T) {
	img := renderLines("Step counter", "42")
	lit := 0
	for y := 0; y < displayH; y++ {
		for x := 0; x < displayW; x++ {
			if img.BitAt(x, y) == image1bit.On {
				lit++
			}
		}
	}
	assert.Positive(t, lit)

	blank := renderLines()
	for i := range blank.Pix {
		require.Zero(t, blank.Pix[i])
	}
}
