package server

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nyayurin/yutorix-satori/modules/filter"
	"github.com/Nyayurin/yutorix-satori/pkg/msg"
	"github.com/Nyayurin/yutorix-satori/pkg/satori"
)

func newTestServer(t *testing.T, opts Options, handler Handler) (*Server, *httptest.Server) {
	t.Helper()
	if opts.Path == "" {
		opts.Path = "/satori"
	}
	if opts.Token == "" {
		opts.Token = "secret"
	}
	s := New(opts, handler)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		_ = s.Stop()
		srv.Close()
	})
	return s, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/satori/v1/events", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, sig satori.Signal) {
	t.Helper()
	data, err := satori.MarshalSignal(sig)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func recv(t *testing.T, conn *websocket.Conn) satori.Signal {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	sig, err := satori.UnmarshalSignal(data)
	require.NoError(t, err)
	return sig
}

// readUntilClosed 读取直到连接关闭, 返回关闭时的错误
func readUntilClosed(conn *websocket.Conn) <-chan error {
	done := make(chan error, 1)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				done <- err
				return
			}
		}
	}()
	return done
}

func identify(t *testing.T, conn *websocket.Conn) *satori.Ready {
	t.Helper()
	send(t, conn, &satori.Identify{Token: "secret"})
	ready, ok := recv(t, conn).(*satori.Ready)
	require.True(t, ok)
	return ready
}

func TestIdentifyAndPush(t *testing.T) {
	s, srv := newTestServer(t, Options{}, nil)
	s.SetLogins([]satori.Login{{Platform: "qq", User: &satori.User{ID: "10086"}, Status: satori.StatusOnline}})

	conn := dial(t, srv)
	ready := identify(t, conn)
	require.Len(t, ready.Logins, 1)
	assert.Equal(t, "10086", ready.Logins[0].SelfID())
	assert.Equal(t, 1, s.Sessions())

	send(t, conn, satori.Ping{})
	assert.Equal(t, satori.Pong{}, recv(t, conn))

	require.NoError(t, s.PushEvent(context.Background(), &satori.Event{
		Type: satori.EventMessageCreated, Platform: "qq", SelfID: "10086",
		Message: &satori.Message{ID: "m", Content: []msg.Element{msg.NewText("a<b")}},
	}))
	e, ok := recv(t, conn).(*satori.Event)
	require.True(t, ok)
	assert.Equal(t, int64(1), e.ID)
	assert.Equal(t, []msg.Element{msg.NewText("a<b")}, e.Message.Content)

	require.NoError(t, s.PushEvent(context.Background(), &satori.Event{ID: 7, Type: satori.EventGuildAdded}))
	require.NoError(t, s.PushEvent(context.Background(), &satori.Event{Type: satori.EventGuildAdded}))
	assert.Equal(t, int64(7), recv(t, conn).(*satori.Event).ID)
	assert.Equal(t, int64(8), recv(t, conn).(*satori.Event).ID)
}

func TestPushSkipsUnidentified(t *testing.T) {
	s, srv := newTestServer(t, Options{}, nil)
	pending := dial(t, srv)
	active := dial(t, srv)
	identify(t, active)

	require.NoError(t, s.PushEvent(context.Background(), &satori.Event{ID: 1, Type: satori.EventGuildAdded}))
	assert.Equal(t, int64(1), recv(t, active).(*satori.Event).ID)

	_ = pending.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := pending.ReadMessage()
	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}

func TestPushSurvivesBrokenSession(t *testing.T) {
	s, srv := newTestServer(t, Options{}, nil)
	healthy := dial(t, srv)
	broken := dial(t, srv)
	identify(t, healthy)
	identify(t, broken)
	require.Equal(t, 2, s.Sessions())

	require.NoError(t, broken.UnderlyingConn().Close())
	for i := 0; i < 5; i++ {
		// 写入已断开的会话可能成功也可能失败, 只关心健康的会话
		_ = s.PushEvent(context.Background(), &satori.Event{Type: satori.EventGuildAdded})
	}
	for id := int64(1); id <= 5; id++ {
		e, ok := recv(t, healthy).(*satori.Event)
		require.True(t, ok)
		assert.Equal(t, id, e.ID)
	}
	require.Eventually(t, func() bool { return s.Sessions() == 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestPushFilter(t *testing.T) {
	f, err := filter.Parse([]byte(`{"platform": "qq"}`))
	require.NoError(t, err)
	s, srv := newTestServer(t, Options{Filter: f}, nil)
	conn := dial(t, srv)
	identify(t, conn)

	require.NoError(t, s.PushEvent(context.Background(), &satori.Event{ID: 1, Type: satori.EventGuildAdded, Platform: "discord"}))
	require.NoError(t, s.PushEvent(context.Background(), &satori.Event{ID: 2, Type: satori.EventGuildAdded, Platform: "qq"}))
	assert.Equal(t, int64(2), recv(t, conn).(*satori.Event).ID)
}

func TestUnauthorizedIdentify(t *testing.T) {
	s, srv := newTestServer(t, Options{}, nil)
	conn := dial(t, srv)
	send(t, conn, &satori.Identify{Token: "wrong"})

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, CloseUnauthorized), "%v", err)
	assert.Equal(t, 0, s.Sessions())
}

func TestUnexpectedSignal(t *testing.T) {
	_, srv := newTestServer(t, Options{}, nil)

	for _, sig := range []satori.Signal{satori.Pong{}, &satori.Ready{}} {
		conn := dial(t, srv)
		identify(t, conn)
		done := readUntilClosed(conn)
		send(t, conn, sig)
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("connection not closed after %v", sig.Op())
		}
	}

	conn := dial(t, srv)
	identify(t, conn)
	done := readUntilClosed(conn)
	send(t, conn, &satori.Identify{Token: "secret"})
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("connection not closed after second identify")
	}
}

func TestIdentifyTimeout(t *testing.T) {
	mock := clock.NewMock()
	_, srv := newTestServer(t, Options{Clock: mock}, nil)
	conn := dial(t, srv)
	done := readUntilClosed(conn)
	require.Eventually(t, func() bool {
		mock.Add(time.Second)
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
}

func TestPingTimeout(t *testing.T) {
	mock := clock.NewMock()
	s, srv := newTestServer(t, Options{Clock: mock}, nil)
	conn := dial(t, srv)
	identify(t, conn)
	done := readUntilClosed(conn)
	require.Eventually(t, func() bool {
		mock.Add(10 * time.Second)
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return s.Sessions() == 0 }, time.Second, 5*time.Millisecond)
}

func TestStop(t *testing.T) {
	s := New(Options{Properties: Properties{Token: "secret"}}, nil)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	served := make(chan error, 1)
	go func() { served <- s.Serve(context.Background(), listener) }()

	url := "ws://" + listener.Addr().String() + "/v1/events"
	var conn *websocket.Conn
	require.Eventually(t, func() bool {
		conn, _, err = websocket.DefaultDialer.Dial(url, nil)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
	defer conn.Close()
	identify(t, conn)
	done := readUntilClosed(conn)

	require.NoError(t, s.Stop())
	select {
	case err := <-done:
		assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "%v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("session not closed")
	}
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return")
	}
	assert.ErrorIs(t, s.Serve(context.Background(), listener), ErrServerClosed)
}

func TestLogins(t *testing.T) {
	s := New(Options{}, nil)
	s.AddLogin(satori.Login{Platform: "qq", User: &satori.User{ID: "1"}, Status: satori.StatusConnect})
	s.AddLogin(satori.Login{Platform: "qq", User: &satori.User{ID: "2"}})
	s.AddLogin(satori.Login{Platform: "qq", User: &satori.User{ID: "1"}, Status: satori.StatusOnline})

	logins := s.Logins()
	require.Len(t, logins, 2)
	assert.Equal(t, satori.StatusOnline, logins[0].Status)

	id := s.identities.LoadOrCreate("qq", "2")
	_, ok := id.Login()
	assert.True(t, ok)
	assert.True(t, s.RemoveLogin("qq", "2"))
	assert.False(t, s.RemoveLogin("qq", "2"))
	_, ok = id.Login()
	assert.False(t, ok)
}

func post(t *testing.T, srv *httptest.Server, action, auth, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/satori/v1/"+action, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	req.Header.Set("Satori-Platform", "qq")
	req.Header.Set("Satori-User-ID", "10086")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestActionAuth(t *testing.T) {
	handler := HandlerFunc(func(_ context.Context, _ *Request, resp *Response) error {
		return resp.OK()
	})
	_, srv := newTestServer(t, Options{}, handler)

	assert.Equal(t, http.StatusUnauthorized, post(t, srv, "channel.get", "", "{}").StatusCode)
	assert.Equal(t, http.StatusBadRequest, post(t, srv, "channel.get", "Token secret", "{}").StatusCode)
	assert.Equal(t, http.StatusForbidden, post(t, srv, "channel.get", "Bearer nope", "{}").StatusCode)
	assert.Equal(t, http.StatusOK, post(t, srv, "channel.get", "Bearer secret", "{}").StatusCode)
	assert.Equal(t, http.StatusNotFound, post(t, srv, "nodot", "Bearer secret", "{}").StatusCode)
	assert.Equal(t, http.StatusBadRequest, post(t, srv, "channel.get", "Bearer secret", "{").StatusCode)
	assert.Equal(t, http.StatusBadRequest, post(t, srv, "channel.get", "Bearer secret", "[]").StatusCode)

	resp, err := http.Get(srv.URL + "/satori/v1/channel.get")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestNoTokenConfigured(t *testing.T) {
	s := New(Options{}, HandlerFunc(func(_ context.Context, _ *Request, resp *Response) error {
		return resp.OK()
	}))
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()
	resp, err := http.Post(srv.URL+"/v1/login.get", "application/json", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestActionNormalization(t *testing.T) {
	requests := make(chan *Request, 1)
	router := NewRouter(nil)
	router.Handle("message.list", func(_ context.Context, req *Request, resp *Response) error {
		requests <- req
		return resp.JSON(satori.BidiPagingList[satori.Message]{Data: []satori.Message{{ID: "m1"}}, Next: "n"})
	})
	_, srv := newTestServer(t, Options{}, router)

	body := `{"channel_id":"c1","direction":"around","order":"sideways","limit":20,"content":"hi <at id=\"1\"/>",` +
		`"data":{"id":"c2","type":1},"approve":true,"duration":60,"custom":{"a":[1,2]},"role":{"id":"r","name":"mod"}}`
	resp := post(t, srv, "message.list", "Bearer secret", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"data":[{"id":"m1","content":""}],"next":"n"}`, string(data))

	req := <-requests
	assert.Equal(t, "message", req.Resource)
	assert.Equal(t, "list", req.Method)
	assert.Equal(t, "c1", req.ChannelID)
	require.NotNil(t, req.Direction)
	assert.Equal(t, satori.Around, *req.Direction)
	assert.Nil(t, req.Order)
	assert.Equal(t, 20, *req.Limit)
	assert.Equal(t, int64(60), *req.Duration)
	assert.True(t, *req.Approve)
	assert.Nil(t, req.Permanent)
	assert.Equal(t, &satori.Channel{ID: "c2", Type: satori.ChannelDirect}, req.Data)
	assert.Equal(t, &satori.GuildRole{ID: "r", Name: "mod"}, req.Role)
	assert.Equal(t, []msg.Element{msg.NewText("hi "), msg.NewAt("1")}, req.Content)
	assert.Equal(t, `{"a":[1,2]}`, req.Extra["custom"].Raw)
	require.NotNil(t, req.Identity)
	assert.Equal(t, "qq", req.Identity.Platform)
	assert.Equal(t, "10086", req.Identity.SelfID)

	fields, err := satori.EncodeFields(req.Fields()...)
	require.NoError(t, err)
	assert.JSONEq(t, `{"channel_id":"c1","direction":"around","limit":20,"content":"hi <at id=\"1\"/>",`+
		`"data":{"id":"c2","type":1},"approve":true,"duration":60,"custom":{"a":[1,2]},"role":{"id":"r","name":"mod"}}`,
		string(fields))
}

func TestUnhandledAndFailingActions(t *testing.T) {
	router := NewRouter(nil)
	router.Handle("guild.get", func(context.Context, *Request, *Response) error {
		panic("boom")
	})
	router.Handle("user.get", func(context.Context, *Request, *Response) error {
		return assert.AnError
	})
	_, srv := newTestServer(t, Options{}, router)

	assert.Equal(t, http.StatusNotFound, post(t, srv, "channel.get", "Bearer secret", "").StatusCode)
	assert.Equal(t, http.StatusInternalServerError, post(t, srv, "guild.get", "Bearer secret", "").StatusCode)
	assert.Equal(t, http.StatusInternalServerError, post(t, srv, "user.get", "Bearer secret", "").StatusCode)
}

func TestMiddleware(t *testing.T) {
	s, srv := newTestServer(t, Options{}, HandlerFunc(func(_ context.Context, _ *Request, resp *Response) error {
		return resp.OK()
	}))
	s.Use(func(_ context.Context, req *Request, resp *Response) {
		if req.Resource == "admin.login" {
			_ = resp.Error(http.StatusForbidden, "admin disabled")
		}
	})
	assert.Equal(t, http.StatusForbidden, post(t, srv, "admin.login.list", "Bearer secret", "").StatusCode)
	assert.Equal(t, http.StatusOK, post(t, srv, "login.get", "Bearer secret", "").StatusCode)
}

func TestUploadRequest(t *testing.T) {
	files := make(chan []FormFile, 1)
	_, srv := newTestServer(t, Options{}, HandlerFunc(func(_ context.Context, req *Request, resp *Response) error {
		files <- req.Files
		return resp.JSON(map[string]string{"image": "internal:qq/10086/a"})
	}))

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	part, err := w.CreateFormFile("image", "a.gif")
	require.NoError(t, err)
	_, _ = part.Write([]byte("GIF89a\x01\x00\x01\x00"))
	require.NoError(t, w.Close())

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/satori/v1/upload.create", buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer secret")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := <-files
	require.Len(t, got, 1)
	assert.Equal(t, "image", got[0].Name)
	assert.Equal(t, "a.gif", got[0].Filename)
	assert.Equal(t, "image/gif", got[0].Type)
}

func TestSplitAction(t *testing.T) {
	resource, method, ok := splitAction("guild.member.role.set")
	assert.True(t, ok)
	assert.Equal(t, "guild.member.role", resource)
	assert.Equal(t, "set", method)

	for _, bad := range []string{"", "get", ".get", "channel.", "a/b.c"} {
		_, _, ok = splitAction(bad)
		assert.False(t, ok, bad)
	}
}
