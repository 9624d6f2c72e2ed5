package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicebartender/botgate/bot"
	"github.com/nicebartender/botgate/command"
	"github.com/nicebartender/botgate/event"
	"github.com/nicebartender/botgate/ws"
)

type outbound struct {
	Action string `json:"action"`
	Params struct {
		MessageType string          `json:"message_type"`
		GroupID     int64           `json:"group_id"`
		Message     []event.Segment `json:"message"`
	} `json:"params"`
	Echo int64 `json:"echo"`
}

func startServer(t *testing.T, endpoints ...Endpoint) (*Server, string) {
	t.Helper()
	s, err := New(endpoints...)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	return s, ln.Addr().String()
}

func gatewayHeaders(token string) http.Header {
	h := http.Header{}
	h.Set(ws.HeaderClientRole, "Universal")
	h.Set(ws.HeaderSelfID, "10001")
	if token != "" {
		h.Set(ws.HeaderAuth, "Bearer "+token)
	}
	return h
}

func TestGatewayEndToEnd(t *testing.T) {
	b := bot.New(bot.Options{Name: "main", Endpoint: "/ws", Markers: command.NewMarkers([]string{"/"})})
	connected := make(chan int64, 1)
	b.OnConnect(func(ctx context.Context, s *bot.Session) error {
		connected <- s.SelfID
		return nil
	})
	sentID := make(chan int64, 1)
	b.MustRegister(bot.Command{Name: "echo", Handler: func(ctx context.Context, c *bot.Context) error {
		id, err := c.Send(ctx, c.Args, bot.NoReply(), bot.NoMention())
		if err != nil {
			return err
		}
		sentID <- id
		return nil
	}})

	s, addr := startServer(t, Endpoint{Bot: b, Token: "s3cret"})

	gw, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", gatewayHeaders("s3cret"))
	require.NoError(t, err)
	defer gw.Close()

	require.NoError(t, gw.WriteMessage(websocket.TextMessage, []byte(
		`{"post_type":"meta_event","meta_event_type":"lifecycle","sub_type":"connect","self_id":10001,"time":1700000000}`)))
	select {
	case id := <-connected:
		assert.Equal(t, int64(10001), id)
	case <-time.After(5 * time.Second):
		t.Fatal("connect handler not called")
	}
	require.Eventually(t, func() bool { return s.Hub().Counts()["main"] == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, gw.WriteMessage(websocket.TextMessage, []byte(
		`{"post_type":"message","message_type":"group","message_format":"array","self_id":10001,"message_id":5,"user_id":7,"group_id":900,`+
			`"sender":{"user_id":7,"nickname":"alice","role":"member"},"message":[{"type":"text","data":{"text":"/echo hi"}}]}`)))

	var req outbound
	gw.SetReadDeadline(time.Now().Add(5 * time.Second))
	require.NoError(t, gw.ReadJSON(&req))
	assert.Equal(t, "send_msg", req.Action)
	assert.Equal(t, "group", req.Params.MessageType)
	assert.Equal(t, int64(900), req.Params.GroupID)
	assert.Equal(t, "hi", event.Chain(req.Params.Message).PlainText())

	require.NoError(t, gw.WriteMessage(websocket.TextMessage, []byte(
		fmt.Sprintf(`{"status":"ok","retcode":0,"data":{"message_id":77},"echo":%d}`, req.Echo))))
	select {
	case id := <-sentID:
		assert.Equal(t, int64(77), id)
	case <-time.After(5 * time.Second):
		t.Fatal("call not resolved")
	}

	resp, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	var h health
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&h))
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, map[string]int{"main": 1}, h.Connections)
}

func TestGatewayRejected(t *testing.T) {
	b := bot.New(bot.Options{Name: "main"})
	_, addr := startServer(t, Endpoint{Bot: b, Token: "s3cret"})

	_, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/", gatewayHeaders("wrong"))
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	h := gatewayHeaders("s3cret")
	h.Set(ws.HeaderClientRole, "Event")
	_, resp, err = websocket.DefaultDialer.Dial("ws://"+addr+"/", h)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func groupFrame(id, user, group int64, text string) []byte {
	return []byte(fmt.Sprintf(`{"post_type":"message","message_type":"group","message_format":"array","self_id":10001,"message_id":%d,"user_id":%d,"group_id":%d,`+
		`"sender":{"user_id":%d,"nickname":"alice","role":"member"},"message":[{"type":"text","data":{"text":%q}}]}`, id, user, group, user, text))
}

func TestConversationSurvivesReconnect(t *testing.T) {
	b := bot.New(bot.Options{Name: "main", Markers: command.NewMarkers([]string{"/"})})
	answers := make(chan string, 1)
	b.MustRegister(bot.Command{Name: "ask", Handler: func(ctx context.Context, c *bot.Context) error {
		next, err := c.Expect(ctx, event.SameSender(c.Message), 5*time.Second)
		if err != nil {
			return err
		}
		answers <- next.Text
		_, err = next.Send(ctx, "got "+next.Text, bot.NoReply(), bot.NoMention())
		return err
	}})
	s, addr := startServer(t, Endpoint{Bot: b})

	first, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/", gatewayHeaders(""))
	require.NoError(t, err)
	require.NoError(t, first.WriteMessage(websocket.TextMessage, groupFrame(1, 7, 900, "/ask")))
	require.Eventually(t, func() bool { return b.Waiters().Len() == 1 }, 5*time.Second, 10*time.Millisecond)

	first.Close()
	require.Eventually(t, func() bool { return s.Hub().Counts()["main"] == 0 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, b.Waiters().Len(), "waiter must outlive the connection")

	second, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/", gatewayHeaders(""))
	require.NoError(t, err)
	defer second.Close()
	require.NoError(t, second.WriteMessage(websocket.TextMessage, groupFrame(2, 7, 900, "blue")))

	select {
	case got := <-answers:
		assert.Equal(t, "blue", got)
	case <-time.After(5 * time.Second):
		t.Fatal("follow-up not captured")
	}

	var req outbound
	second.SetReadDeadline(time.Now().Add(5 * time.Second))
	require.NoError(t, second.ReadJSON(&req))
	assert.Equal(t, "got blue", event.Chain(req.Params.Message).PlainText())
	require.NoError(t, second.WriteMessage(websocket.TextMessage, []byte(
		fmt.Sprintf(`{"status":"ok","retcode":0,"data":{"message_id":3},"echo":%d}`, req.Echo))))
}

func TestEndpointMatchesExactly(t *testing.T) {
	b := bot.New(bot.Options{Name: "main"})
	_, addr := startServer(t, Endpoint{Bot: b})

	_, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/other", gatewayHeaders(""))
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	gw, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/", gatewayHeaders(""))
	require.NoError(t, err)
	gw.Close()
}

func TestInvalidEndpoints(t *testing.T) {
	for _, path := range []string{"/health", "/bots/{name}", "ws"} {
		b := bot.New(bot.Options{Name: "a", Endpoint: path})
		_, err := New(Endpoint{Bot: b})
		assert.Error(t, err, path)
	}
	assert.NoError(t, ValidEndpoint("/bots/main/"))
}

func TestDuplicateEndpoint(t *testing.T) {
	a := bot.New(bot.Options{Name: "a", Endpoint: "/ws"})
	b := bot.New(bot.Options{Name: "b", Endpoint: "/ws"})
	_, err := New(Endpoint{Bot: a}, Endpoint{Bot: b})
	assert.ErrorContains(t, err, "/ws")
}
