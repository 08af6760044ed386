package gateway

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harun/mcplink/pkg/agent"
	"github.com/harun/mcplink/pkg/commandqueue"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIntake struct {
	mu       sync.Mutex
	commands []string
	controls []string
	err      error
}

func (f *fakeIntake) Enqueue(text string) (commandqueue.Command, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return commandqueue.Command{}, f.err
	}
	f.commands = append(f.commands, text)
	return commandqueue.Command{ID: "cmd-" + text, Text: text, EnqueuedAt: time.Now()}, nil
}

func (f *fakeIntake) control(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.controls = append(f.controls, name)
}

func (f *fakeIntake) RequestStop()  { f.control("stop") }
func (f *fakeIntake) RequestSkip()  { f.control("skip") }
func (f *fakeIntake) RequestClear() { f.control("clear") }

func (f *fakeIntake) snapshot() ([]string, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...), append([]string(nil), f.controls...)
}

func newTestGateway(t *testing.T, intake Intake, perMinute int) (*Server, string) {
	t.Helper()
	gw, err := NewServer(Config{Intake: intake, CommandsPerMinute: perMinute, Logger: zerolog.Nop()})
	require.NoError(t, err)

	srv := httptest.NewServer(gw.Handler())
	t.Cleanup(srv.Close)
	return gw, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func exchange(t *testing.T, conn *websocket.Conn, frame interface{}) Reply {
	t.Helper()
	require.NoError(t, conn.WriteJSON(frame))
	var reply Reply
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&reply))
	return reply
}

func TestNewServer_Validation(t *testing.T) {
	_, err := NewServer(Config{Intake: &fakeIntake{}, Port: -1})
	assert.Error(t, err)

	_, err = NewServer(Config{})
	assert.Error(t, err)
}

func TestServer_CommandFrames(t *testing.T) {
	intake := &fakeIntake{}
	_, url := newTestGateway(t, intake, 0)
	conn := dial(t, url)

	reply := exchange(t, conn, Frame{Type: FrameCommand, Text: "  list files  "})
	assert.Equal(t, "ack", reply.Type)
	assert.Equal(t, "command", reply.Frame)
	assert.Equal(t, "cmd-list files", reply.CommandID)

	reply = exchange(t, conn, Frame{Type: FrameCommand, Text: "   "})
	assert.Equal(t, "error", reply.Type)
	assert.Equal(t, "command text is required", reply.Message)

	commands, _ := intake.snapshot()
	assert.Equal(t, []string{"list files"}, commands)
}

func TestServer_ControlFrames(t *testing.T) {
	intake := &fakeIntake{}
	_, url := newTestGateway(t, intake, 0)
	conn := dial(t, url)

	for _, frameType := range []FrameType{FrameSkip, FrameClear, FrameStop} {
		reply := exchange(t, conn, Frame{Type: frameType})
		assert.Equal(t, "ack", reply.Type)
		assert.Equal(t, string(frameType), reply.Frame)
	}

	_, controls := intake.snapshot()
	assert.Equal(t, []string{"skip", "clear", "stop"}, controls)
}

func TestServer_InvalidFrames(t *testing.T) {
	_, url := newTestGateway(t, &fakeIntake{}, 0)
	conn := dial(t, url)

	reply := exchange(t, conn, map[string]string{"type": "reboot"})
	assert.Equal(t, "error", reply.Type)
	assert.Contains(t, reply.Message, "unknown frame type")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	var invalid Reply
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&invalid))
	assert.Equal(t, "error", invalid.Type)
	assert.Contains(t, invalid.Message, "invalid frame")
}

func TestServer_EnqueueError(t *testing.T) {
	_, url := newTestGateway(t, &fakeIntake{err: agent.ErrClientStopped}, 0)
	conn := dial(t, url)

	reply := exchange(t, conn, Frame{Type: FrameCommand, Text: "hello"})
	assert.Equal(t, "error", reply.Type)
	assert.Equal(t, agent.ErrClientStopped.Error(), reply.Message)
}

func TestServer_CommandRateLimit(t *testing.T) {
	intake := &fakeIntake{}
	_, url := newTestGateway(t, intake, 2)
	conn := dial(t, url)

	assert.Equal(t, "ack", exchange(t, conn, Frame{Type: FrameCommand, Text: "a"}).Type)
	assert.Equal(t, "ack", exchange(t, conn, Frame{Type: FrameCommand, Text: "b"}).Type)
	limited := exchange(t, conn, Frame{Type: FrameCommand, Text: "c"})
	assert.Equal(t, "error", limited.Type)
	assert.Equal(t, "rate limit exceeded", limited.Message)

	assert.Equal(t, "ack", exchange(t, conn, Frame{Type: FrameSkip}).Type, "control frames are not limited")
}

func TestServer_HandleEventBroadcasts(t *testing.T) {
	gw, url := newTestGateway(t, &fakeIntake{}, 0)
	first := dial(t, url)
	second := dial(t, url)
	require.Eventually(t, func() bool { return len(gw.GetConnectedClients()) == 2 }, 2*time.Second, 5*time.Millisecond)

	gw.HandleEvent(agent.Event{Type: agent.EventText, Variant: "ollama", Text: "hello"})

	for _, conn := range []*websocket.Conn{first, second} {
		var msg EventMessage
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, "event", msg.Type)
		assert.Equal(t, "text", msg.Event)
		data, ok := msg.Data.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "hello", data["text"])
	}
}

func TestServer_DisconnectRemovesClient(t *testing.T) {
	gw, url := newTestGateway(t, &fakeIntake{}, 0)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return len(gw.GetConnectedClients()) == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return len(gw.GetConnectedClients()) == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestServer_StartStop(t *testing.T) {
	gw, err := NewServer(Config{Host: "127.0.0.1", Port: 0, Intake: &fakeIntake{}, Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NoError(t, gw.Start())
	addr := gw.Addr()
	require.NotEmpty(t, addr)

	conn := dial(t, "ws://"+addr+"/ws")
	reply := exchange(t, conn, Frame{Type: FrameClear})
	assert.Equal(t, "ack", reply.Type)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, gw.Stop(ctx))

	var msg EventMessage
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	err = conn.ReadJSON(&msg)
	if err == nil {
		assert.Equal(t, "server.shutdown", msg.Event)
		_, _, err = conn.ReadMessage()
	}
	assert.Error(t, err)

	_, _, err = websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	assert.Error(t, err)
}
