package socket_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/antarasi/authgate"
	"github.com/antarasi/authgate/repository"
	"github.com/antarasi/authgate/transport/rest"
	"github.com/antarasi/authgate/transport/socket"
	"github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	handler *socket.Handler
	server  *rest.Server
	clock   *clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	mngr := repository.NewRepositoryManager(db)
	require.NoError(t, mngr.Migrate(context.Background()))

	cfg := authgate.AuthConfig{
		SigningKey:    "socket-signing-key-0123456789",
		TokenLifetime: time.Hour,
		BcryptCost:    4,
	}
	clk := &clock{now: time.Now().UTC().Truncate(time.Second)}

	tokens, err := authgate.NewTokenService(cfg, authgate.WithTokenClock(clk.Now))
	require.NoError(t, err)

	gateway := authgate.NewGateway(authgate.NewAuthenticator(authgate.NewUserProvider(mngr.Users()), tokens)).
		Use("users", authgate.NewUsersService(mngr.Users(), cfg), authgate.DefaultUserHooks())

	handler := socket.NewHandler(gateway)
	server, err := rest.New(gateway, rest.WithMount(handler.Mount(socket.DefaultPath)))
	require.NoError(t, err)

	return &fixture{handler: handler, server: server, clock: clk}
}

func (f *fixture) send(t *testing.T, session *authgate.Session, frame socket.Frame) map[string]any {
	t.Helper()
	raw, err := json.Marshal(frame)
	require.NoError(t, err)
	return toMap(t, f.handler.Handle(context.Background(), session, raw))
}

func (f *fixture) restCall(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := f.server.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func toMap(t *testing.T, v any) map[string]any {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func jsonData(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

var credentials = map[string]string{"email": "test@example.com", "password": "opensesame"}

func loginFrame(t *testing.T, id uint64) socket.Frame {
	return socket.Frame{ID: id, Type: socket.FrameAuthenticate, Data: jsonData(t, map[string]string{
		"strategy": "local", "email": "test@example.com", "password": "opensesame",
	})}
}

func errorOf(reply map[string]any) map[string]any {
	e, _ := reply["error"].(map[string]any)
	return e
}

func TestSocket_Flow(t *testing.T) {
	f := newFixture(t)
	session := authgate.NewSession()

	created := f.send(t, session, socket.Frame{
		ID: 1, Type: socket.FrameCall, Path: "users", Method: "create", Data: jsonData(t, credentials),
	})
	require.Nil(t, created["error"], created)
	user := created["result"].(map[string]any)
	id := user["_id"].(string)
	assert.EqualValues(t, 1, created["id"])

	reply := f.send(t, session, socket.Frame{ID: 2, Type: socket.FrameCall, Path: "users", Method: "find"})
	assert.EqualValues(t, 2, reply["id"])
	assert.Equal(t, "No auth token", errorOf(reply)["message"])
	assert.EqualValues(t, 401, errorOf(reply)["code"])

	reply = f.send(t, session, socket.Frame{ID: 3, Type: socket.FrameCall, Path: "users", Method: "get", ResourceID: id})
	assert.Equal(t, "You are not authenticated", errorOf(reply)["message"])

	reply = f.send(t, session, loginFrame(t, 4))
	require.Nil(t, reply["error"], reply)
	login := reply["result"].(map[string]any)
	assert.Equal(t, id, login["_id"])
	assert.Equal(t, "test@example.com", login["email"])
	assert.Equal(t, session.Token(), login["accessToken"])
	require.True(t, session.IsAuthenticated())
	assert.Equal(t, id, session.Identity().ID())

	reply = f.send(t, session, socket.Frame{ID: 5, Type: socket.FrameCall, Path: "users", Method: "find"})
	require.Nil(t, reply["error"], reply)
	page := reply["result"].(map[string]any)
	assert.EqualValues(t, 1, page["total"])
	data := page["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, id, data[0].(map[string]any)["_id"])

	f.clock.Advance(time.Hour)

	reply = f.send(t, session, socket.Frame{ID: 6, Type: socket.FrameCall, Path: "users", Method: "find"})
	assert.Equal(t, "jwt expired", errorOf(reply)["message"])

	reply = f.send(t, session, socket.Frame{ID: 7, Type: socket.FrameCall, Path: "users", Method: "get", ResourceID: id})
	assert.Equal(t, "You are not authenticated", errorOf(reply)["message"])

	assert.True(t, session.IsAuthenticated(), "expiry is only noticed per call, the binding stays")
}

func TestSocket_Logout(t *testing.T) {
	f := newFixture(t)
	session := authgate.NewSession()

	f.send(t, session, socket.Frame{ID: 1, Type: socket.FrameCall, Path: "users", Method: "create", Data: jsonData(t, credentials)})
	f.send(t, session, loginFrame(t, 2))
	require.True(t, session.IsAuthenticated())
	token := session.Token()

	reply := f.send(t, session, socket.Frame{ID: 3, Type: socket.FrameLogout})
	require.Nil(t, reply["error"], reply)
	assert.Equal(t, token, reply["result"].(map[string]any)["accessToken"])
	assert.False(t, session.IsAuthenticated())

	reply = f.send(t, session, socket.Frame{ID: 4, Type: socket.FrameCall, Path: "users", Method: "find"})
	assert.Equal(t, "No auth token", errorOf(reply)["message"])
}

func TestSocket_BadFrames(t *testing.T) {
	f := newFixture(t)
	session := authgate.NewSession()

	reply := toMap(t, f.handler.Handle(context.Background(), session, []byte("{not json")))
	assert.Equal(t, "BadRequest", errorOf(reply)["name"])
	assert.EqualValues(t, 0, reply["id"])

	reply = f.send(t, session, socket.Frame{ID: 9, Type: "subscribe"})
	assert.Equal(t, "Unknown frame type", errorOf(reply)["message"])
	assert.EqualValues(t, 9, reply["id"])

	reply = f.send(t, session, socket.Frame{ID: 10, Type: socket.FrameCall, Path: "users", Method: "explode"})
	assert.Equal(t, "MethodNotAllowed", errorOf(reply)["name"])

	reply = f.send(t, session, socket.Frame{ID: 11, Type: socket.FrameCall, Path: "nowhere", Method: "find"})
	assert.Equal(t, "Page not found", errorOf(reply)["message"])
	assert.EqualValues(t, 404, errorOf(reply)["code"])

	reply = f.send(t, session, socket.Frame{ID: 12, Type: socket.FrameAuthenticate, Data: jsonData(t, map[string]string{
		"strategy": "local", "email": "nobody@example.com", "password": "opensesame",
	})})
	assert.Equal(t, "Invalid login", errorOf(reply)["message"])
	assert.False(t, session.IsAuthenticated())
}

func TestSocket_SessionsAreIsolated(t *testing.T) {
	f := newFixture(t)
	first := authgate.NewSession()
	second := authgate.NewSession()

	f.send(t, first, socket.Frame{ID: 1, Type: socket.FrameCall, Path: "users", Method: "create", Data: jsonData(t, credentials)})
	f.send(t, first, loginFrame(t, 2))

	reply := f.send(t, second, socket.Frame{ID: 1, Type: socket.FrameCall, Path: "users", Method: "find"})
	assert.Equal(t, "No auth token", errorOf(reply)["message"])
	assert.False(t, second.IsAuthenticated())
}

func TestSocket_ParityWithREST(t *testing.T) {
	f := newFixture(t)
	session := authgate.NewSession()

	status, user := f.restCall(t, http.MethodPost, "/users", "", credentials)
	require.Equal(t, http.StatusCreated, status)
	id := user["_id"].(string)

	_, restErr := f.restCall(t, http.MethodGet, "/users", "", nil)
	reply := f.send(t, session, socket.Frame{ID: 1, Type: socket.FrameCall, Path: "users", Method: "find"})
	assert.Equal(t, restErr, errorOf(reply))

	_, restErr = f.restCall(t, http.MethodGet, "/users/"+id, "", nil)
	reply = f.send(t, session, socket.Frame{ID: 2, Type: socket.FrameCall, Path: "users", Method: "get", ResourceID: id})
	assert.Equal(t, restErr, errorOf(reply))

	_, restLogin := f.restCall(t, http.MethodPost, "/authentication", "", map[string]string{
		"strategy": "local", "email": "test@example.com", "password": "opensesame",
	})
	token := restLogin["accessToken"].(string)
	socketLogin := f.send(t, session, loginFrame(t, 3))
	require.Nil(t, socketLogin["error"], socketLogin)
	result := socketLogin["result"].(map[string]any)
	assert.Equal(t, restLogin["_id"], result["_id"])
	assert.Equal(t, restLogin["email"], result["email"])
	assert.Equal(t, id, result["_id"])

	_, restPage := f.restCall(t, http.MethodGet, "/users", token, nil)
	reply = f.send(t, session, socket.Frame{ID: 4, Type: socket.FrameCall, Path: "users", Method: "find"})
	assert.Equal(t, restPage, reply["result"])

	_, restErr = f.restCall(t, http.MethodPost, "/users", "", map[string]string{"email": "bad", "password": "x"})
	reply = f.send(t, session, socket.Frame{ID: 5, Type: socket.FrameCall, Path: "users", Method: "create",
		Data: jsonData(t, map[string]string{"email": "bad", "password": "x"})})
	assert.Equal(t, restErr, errorOf(reply))

	f.clock.Advance(2 * time.Hour)

	_, restErr = f.restCall(t, http.MethodGet, "/users", token, nil)
	reply = f.send(t, session, socket.Frame{ID: 6, Type: socket.FrameCall, Path: "users", Method: "find"})
	assert.Equal(t, "jwt expired", restErr["message"])
	assert.Equal(t, restErr, errorOf(reply))
}

func TestSocket_PlainHTTPNeedsUpgrade(t *testing.T) {
	f := newFixture(t)

	status, body := f.restCall(t, http.MethodGet, socket.DefaultPath, "", nil)
	assert.Equal(t, http.StatusUpgradeRequired, status)
	assert.Equal(t, "UpgradeRequired", body["name"])
}

type frameConn struct {
	in     chan []byte
	out    chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFrameConn() *frameConn {
	return &frameConn{
		in:     make(chan []byte, 8),
		out:    make(chan []byte, 8),
		closed: make(chan struct{}),
	}
}

func (c *frameConn) ReadMessage() (int, []byte, error) {
	select {
	case msg, ok := <-c.in:
		if !ok {
			return 0, nil, io.EOF
		}
		return websocket.TextMessage, msg, nil
	case <-c.closed:
		return 0, nil, io.EOF
	}
}

func (c *frameConn) WriteJSON(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.out <- raw
	return nil
}

func (c *frameConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func TestSocket_ServeAnswersInOrder(t *testing.T) {
	f := newFixture(t)
	conn := newFrameConn()

	for i := uint64(1); i <= 3; i++ {
		raw, err := json.Marshal(socket.Frame{ID: i, Type: socket.FrameCall, Path: "users", Method: "find"})
		require.NoError(t, err)
		conn.in <- raw
	}
	close(conn.in)

	err := f.handler.Serve(context.Background(), conn, authgate.NewSession())
	assert.ErrorIs(t, err, io.EOF)

	for i := uint64(1); i <= 3; i++ {
		reply := map[string]any{}
		require.NoError(t, json.Unmarshal(<-conn.out, &reply))
		assert.EqualValues(t, i, reply["id"])
	}
}

func TestSocket_ServeStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	conn := newFrameConn()
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() { errc <- f.handler.Serve(ctx, conn, authgate.NewSession()) }()

	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestSocket_EndToEnd(t *testing.T) {
	f := newFixture(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = f.server.Serve(ln) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = f.server.Shutdown(ctx)
	})

	status, _ := f.restCall(t, http.MethodPost, "/users", "", credentials)
	require.Equal(t, http.StatusCreated, status)
	_, login := f.restCall(t, http.MethodPost, "/authentication", "", map[string]string{
		"strategy": "local", "email": "test@example.com", "password": "opensesame",
	})
	token := login["accessToken"].(string)

	url := "ws://" + ln.Addr().String() + socket.DefaultPath + "?access_token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.WriteJSON(socket.Frame{ID: 1, Type: socket.FrameCall, Path: "users", Method: "find"}))

	reply := map[string]any{}
	require.NoError(t, conn.ReadJSON(&reply))
	require.Nil(t, reply["error"], reply)
	assert.EqualValues(t, 1, reply["id"])
	page := reply["result"].(map[string]any)
	assert.EqualValues(t, 1, page["total"])

	require.NoError(t, conn.WriteJSON(socket.Frame{ID: 2, Type: socket.FrameLogout}))
	reply = map[string]any{}
	require.NoError(t, conn.ReadJSON(&reply))
	require.Nil(t, reply["error"], reply)

	require.NoError(t, conn.WriteJSON(socket.Frame{ID: 3, Type: socket.FrameCall, Path: "users", Method: "find"}))
	reply = map[string]any{}
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "No auth token", errorOf(reply)["message"])
}
