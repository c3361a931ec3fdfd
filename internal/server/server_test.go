package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paroliere/internal/config"
	"paroliere/internal/game"
	"paroliere/internal/network"
	"paroliere/pkg/console"
	"paroliere/pkg/logger"
)

const testGrid = "C A S A E F G H I L M N O P R S"

type fixedGrids struct{ grid game.Grid }

func (f fixedGrids) Next() (game.Grid, error) { return f.grid, nil }
func (f fixedGrids) Close() error             { return nil }

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Name = "test"
	cfg.RoundDuration = 2 * time.Second
	cfg.BreakDuration = time.Second
	cfg.InactivityTimeout = 10 * time.Second
	cfg.ScoreGrace = 50 * time.Millisecond
	cfg.RankingTimeout = 2 * time.Second
	cfg.ShutdownGrace = 2 * time.Second
	cfg.LogFile = ""
	cfg.Seed = 1
	cfg.SeedSet = true
	return cfg
}

type testServer struct {
	*Server
	addr   string
	cancel context.CancelFunc
	done   chan error
}

func startServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()

	dict := game.NewDictionary()
	for _, w := range []string{"casa", "sale", "gelato"} {
		require.NoError(t, dict.Insert(w))
	}
	grid, err := game.ParseGridLine(testGrid)
	require.NoError(t, err)

	srv := New(cfg, Deps{
		Dictionary: dict,
		Grids:      fixedGrids{grid: grid},
		Logger:     logger.Nop(),
		Console:    console.New(io.Discard),
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ts := &testServer{Server: srv, addr: ln.Addr().String(), cancel: cancel, done: make(chan error, 1)}
	go func() { ts.done <- srv.Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-ts.done:
		case <-time.After(5 * time.Second):
			t.Errorf("server did not stop")
		}
	})
	return ts
}

type testClient struct {
	t    *testing.T
	conn *network.Conn
}

func dialRaw(t *testing.T, addr string) *testClient {
	t.Helper()
	raw, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	c := &testClient{t: t, conn: network.NewConn(raw)}
	t.Cleanup(func() { c.conn.Close() })
	return c
}

// dial connects and consumes the welcome message
func dial(t *testing.T, addr string) *testClient {
	t.Helper()
	c := dialRaw(t, addr)
	msg := c.expect(network.MsgOK)
	assert.Equal(t, "Welcome to test", msg.Text())
	return c
}

func (c *testClient) send(msgType network.MessageType, text string) {
	c.t.Helper()
	require.NoError(c.t, c.conn.Send(msgType, text))
}

func (c *testClient) expect(want network.MessageType) network.Message {
	c.t.Helper()
	msg, err := c.conn.Receive(time.Now().Add(3 * time.Second))
	require.NoError(c.t, err)
	require.Equal(c.t, want, msg.Type, "payload %q", msg.Text())
	return msg
}

// waitFor skips messages until one of type want arrives
func (c *testClient) waitFor(want network.MessageType, within time.Duration) network.Message {
	c.t.Helper()
	deadline := time.Now().Add(within)
	for {
		msg, err := c.conn.Receive(deadline)
		require.NoError(c.t, err)
		if msg.Type == want {
			return msg
		}
	}
}

// login registers and logs in, consuming the round information that follows
func (c *testClient) login(name string) {
	c.t.Helper()
	c.send(network.MsgRegister, name)
	c.expect(network.MsgOK)
	c.send(network.MsgLogin, name)
	c.expect(network.MsgOK)

	msg, err := c.conn.Receive(time.Now().Add(3 * time.Second))
	require.NoError(c.t, err)
	if msg.Type == network.MsgGrid {
		c.expect(network.MsgRoundTime)
		return
	}
	require.Equal(c.t, network.MsgBreakTime, msg.Type)
}

func waitPlaying(t *testing.T, ts *testServer) {
	t.Helper()
	require.Eventually(t, ts.round.Playing, 3*time.Second, 5*time.Millisecond)
}

func TestEndToEndRound(t *testing.T) {
	ts := startServer(t, testConfig())
	observer := dial(t, ts.addr)
	waitPlaying(t, ts)

	ann := dial(t, ts.addr)
	ann.send(network.MsgRegister, "ann")
	assert.Equal(t, "registered ann", ann.expect(network.MsgOK).Text())
	ann.send(network.MsgRegister, "ann")
	assert.Equal(t, ErrUserExists.Error(), ann.expect(network.MsgError).Text())

	ann.send(network.MsgLogin, "ann")
	ann.expect(network.MsgOK)
	assert.Equal(t, testGrid, ann.expect(network.MsgGrid).Text())
	secs, err := strconv.Atoi(ann.expect(network.MsgRoundTime).Text())
	require.NoError(t, err)
	assert.True(t, secs >= 0 && secs <= 2, "remaining %d", secs)

	ann.send(network.MsgWord, "casa")
	assert.Equal(t, "4", ann.expect(network.MsgWordScore).Text())
	ann.send(network.MsgWord, "CASA")
	assert.Equal(t, "0", ann.expect(network.MsgWordScore).Text())
	ann.send(network.MsgWord, "sale")
	assert.Equal(t, "word not on the grid", ann.expect(network.MsgError).Text())
	ann.send(network.MsgWord, "cosa")
	assert.Equal(t, "word not in dictionary", ann.expect(network.MsgError).Text())

	// ann leaves before the round ends and still shows up in the ranking
	ann.send(network.MsgShutdown, "")
	_, err = ann.conn.Receive(time.Now().Add(time.Second))
	require.ErrorIs(t, err, io.EOF)

	ranking := observer.waitFor(network.MsgRanking, 5*time.Second)
	assert.Equal(t, "ann, 4", ranking.Text())
}

func TestLoginDuringBreakGetsBreakTime(t *testing.T) {
	cfg := testConfig()
	cfg.RoundDuration = 100 * time.Millisecond
	cfg.BreakDuration = 5 * time.Second
	ts := startServer(t, cfg)

	require.Eventually(t, func() bool {
		state := ts.round.Snapshot()
		return state.Phase == PhaseBreak && state.Number >= 1
	}, 3*time.Second, 5*time.Millisecond)

	c := dial(t, ts.addr)
	c.send(network.MsgRegister, "bob")
	c.expect(network.MsgOK)
	c.send(network.MsgLogin, "bob")
	c.expect(network.MsgOK)
	secs, err := strconv.Atoi(c.expect(network.MsgBreakTime).Text())
	require.NoError(t, err)
	assert.True(t, secs > 0 && secs <= 5, "remaining %d", secs)

	c.send(network.MsgWord, "casa")
	c.expect(network.MsgBreakTime)
}

func TestCommandsNeedLogin(t *testing.T) {
	ts := startServer(t, testConfig())
	c := dial(t, ts.addr)

	for _, msgType := range []network.MessageType{network.MsgWord, network.MsgGrid, network.MsgBulletinPost, network.MsgCancelUser} {
		c.send(msgType, "casa")
		assert.Equal(t, "login required", c.expect(network.MsgError).Text())
	}

	c.send(network.MessageType('Z'), "")
	assert.Equal(t, "unknown message type", c.expect(network.MsgError).Text())

	c.send(network.MsgRegister, "abcdefghijkl")
	assert.Equal(t, ErrInvalidUsername.Error(), c.expect(network.MsgError).Text())
	c.send(network.MsgRegister, "")
	c.expect(network.MsgError)
	c.send(network.MsgRegister, "Ann1")
	c.expect(network.MsgOK)
	c.send(network.MsgLogin, "nobody")
	assert.Equal(t, ErrUserUnknown.Error(), c.expect(network.MsgError).Text())
}

func TestBulletinAndCancel(t *testing.T) {
	ts := startServer(t, testConfig())
	ann := dial(t, ts.addr)
	ann.login("ann")

	ann.send(network.MsgBulletinPost, "ciao a tutti")
	ann.expect(network.MsgOK)
	ann.send(network.MsgBulletinShow, "")
	assert.Equal(t, "ann,ciao a tutti", ann.expect(network.MsgBulletinShow).Text())

	ann.send(network.MsgCancelUser, "ann")
	assert.Equal(t, ErrCancelSelf.Error(), ann.expect(network.MsgError).Text())

	ann.send(network.MsgRegister, "bob")
	ann.expect(network.MsgOK)
	ann.send(network.MsgCancelUser, "bob")
	ann.expect(network.MsgOK)

	bob := dial(t, ts.addr)
	bob.send(network.MsgLogin, "bob")
	bob.expect(network.MsgError)

	ann.send(network.MsgLogin, "ann")
	assert.Equal(t, ErrAlreadyLoggedIn.Error(), ann.expect(network.MsgError).Text())
}

func TestServerFull(t *testing.T) {
	cfg := testConfig()
	cfg.MaxClients = 1
	ts := startServer(t, cfg)

	dial(t, ts.addr)

	second := dialRaw(t, ts.addr)
	assert.Equal(t, "server full", second.expect(network.MsgError).Text())
	_, err := second.conn.Receive(time.Now().Add(time.Second))
	assert.ErrorIs(t, err, io.EOF)
}

func TestInactivityDisconnects(t *testing.T) {
	cfg := testConfig()
	cfg.InactivityTimeout = 200 * time.Millisecond
	ts := startServer(t, cfg)

	c := dial(t, ts.addr)
	msg := c.waitFor(network.MsgShutdown, 2*time.Second)
	assert.Equal(t, "disconnected for inactivity", msg.Text())

	_, err := c.conn.Receive(time.Now().Add(time.Second))
	assert.ErrorIs(t, err, io.EOF)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MessageRate = 0.1
	cfg.MessageBurst = 2
	ts := startServer(t, cfg)

	c := dial(t, ts.addr)
	for i := 0; i < 2; i++ {
		c.send(network.MsgGrid, "")
		assert.Equal(t, "login required", c.expect(network.MsgError).Text())
	}
	c.send(network.MsgGrid, "")
	assert.Equal(t, "too many messages", c.expect(network.MsgError).Text())
}

func TestShutdownNotifiesClients(t *testing.T) {
	ts := startServer(t, testConfig())
	c := dial(t, ts.addr)
	require.Eventually(t, func() bool { return ts.sessions.Len() == 1 }, time.Second, 5*time.Millisecond)

	ts.cancel()
	msg := c.waitFor(network.MsgShutdown, 3*time.Second)
	assert.Equal(t, "server shutting down", msg.Text())

	select {
	case err := <-ts.done:
		assert.NoError(t, err)
		ts.done <- err
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop")
	}
	assert.Equal(t, 0, ts.dict.Len(), "dictionary released")
}

func TestStatusRoutes(t *testing.T) {
	ts := startServer(t, testConfig())
	ann := dial(t, ts.addr)
	ann.login("ann")

	rec := httptest.NewRecorder()
	ts.StatusRoutes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	ts.StatusRoutes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var st Status
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&st))
	assert.Equal(t, "test", st.Name)
	assert.Equal(t, 1, st.Clients)
	assert.Equal(t, []string{"ann"}, st.Players)
	assert.Equal(t, 1, st.Registered)
	assert.Equal(t, 3, st.DictionaryWords)
}

func TestListenAndServeBindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := testConfig()
	host, port, _ := net.SplitHostPort(ln.Addr().String())
	cfg.Host = host
	cfg.Port, _ = strconv.Atoi(port)

	srv := New(cfg, Deps{Dictionary: game.NewDictionary(), Logger: logger.Nop(), Console: console.New(io.Discard)})
	err = srv.ListenAndServe(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, context.Canceled))
}
