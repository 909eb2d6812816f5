package websocket_test

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/backsoul/shikkhapro/pkg/websocket"
	fws "github.com/fasthttp/websocket"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
	"go.uber.org/zap"
)

func startHubServer(t *testing.T) (*websocket.Hub, *fws.Dialer) {
	t.Helper()
	hub := websocket.NewHub(zap.NewNop())
	go hub.Run()
	t.Cleanup(hub.Stop)

	upgrader := fws.FastHTTPUpgrader{}
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: func(ctx *fasthttp.RequestCtx) {
		topic := string(ctx.QueryArgs().Peek("topic"))
		_ = upgrader.Upgrade(ctx, func(conn *fws.Conn) {
			hub.Serve(conn, topic)
		})
	}}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })

	dialer := &fws.Dialer{NetDial: func(network, addr string) (net.Conn, error) { return ln.Dial() }}
	return hub, dialer
}

func TestPublishReachesOnlyTopicSubscribers(t *testing.T) {
	hub, dialer := startHubServer(t)

	alice, _, err := dialer.Dial("ws://gateway.test/ws?topic=attempt:alice", nil)
	require.NoError(t, err)
	defer alice.Close()
	bob, _, err := dialer.Dial("ws://gateway.test/ws?topic=attempt:bob", nil)
	require.NoError(t, err)
	defer bob.Close()

	require.Eventually(t, func() bool {
		return hub.ClientCount("attempt:alice") == 1 && hub.ClientCount("attempt:bob") == 1
	}, time.Second, 5*time.Millisecond)

	hub.Publish("attempt:alice", "tick", map[string]int{"remaining": 59})

	_ = alice.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := alice.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type  string         `json:"type"`
		Topic string         `json:"topic"`
		Data  map[string]int `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &msg))
	require.Equal(t, "tick", msg.Type)
	require.Equal(t, "attempt:alice", msg.Topic)
	require.Equal(t, 59, msg.Data["remaining"])

	_ = bob.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err = bob.ReadMessage()
	require.Error(t, err)
}

func TestClientDisconnectUnregisters(t *testing.T) {
	hub, dialer := startHubServer(t)

	conn, _, err := dialer.Dial("ws://gateway.test/ws?topic=attempt:carol", nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.ClientCount("attempt:carol") == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.ClientCount("attempt:carol") == 0 }, time.Second, 5*time.Millisecond)

	// publicar sin suscriptores no bloquea
	hub.Publish("attempt:carol", "closed", nil)
}

func TestPublishAfterStopDoesNotBlock(t *testing.T) {
	hub := websocket.NewHub(zap.NewNop())
	go hub.Run()
	hub.Stop()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.Publish("attempt:x", "tick", i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish bloqueó después de Stop")
	}
}
