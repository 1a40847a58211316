package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/lotto-draw/internal/config"
	"github.com/wfunc/lotto-draw/internal/hardware"
	"github.com/wfunc/lotto-draw/internal/irq"
	"github.com/wfunc/lotto-draw/internal/journal"
	"github.com/wfunc/lotto-draw/internal/lotto"
	"github.com/wfunc/lotto-draw/internal/repository"
	ws "github.com/wfunc/lotto-draw/internal/websocket"
)

type testServer struct {
	router  *Router
	ctrl    *lotto.Controller
	board   *hardware.Board
	repos   *repository.Manager
	journal *journal.Recorder
}

// newTestServer 使用真实外设（短周期定时器）和内存数据库
func newTestServer(t *testing.T, withPort bool, withDB bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Timers.DisplayPeriod = time.Millisecond
	cfg.Timers.DebounceDelay = 5 * time.Millisecond
	cfg.Timers.DrawPeriod = 10 * time.Millisecond

	ic := irq.NewController()
	board, err := hardware.NewBoard(ic, cfg)
	require.NoError(t, err)

	ctrl, err := lotto.NewController(ic, board.Peripherals(), lotto.Options{})
	require.NoError(t, err)

	ts := &testServer{ctrl: ctrl, board: board}
	deps := Deps{
		DeviceName: "test-lotto",
		Controller: ctrl,
		Panel:      board.Panel,
		UART:       board.UART,
	}
	if withPort {
		deps.Port = board.Port
	}
	if withDB {
		db := repository.SetupTestDB()
		ts.repos = repository.NewManager(db)
		ts.journal = journal.NewRecorder(ts.repos, 0)
		ctrl.Subscribe(ts.journal.Observe)
		deps.Repos = ts.repos
		deps.Journal = ts.journal
		t.Cleanup(func() { repository.CleanupTestDB(db) })
	}

	hub := ws.NewHub(ws.Config{}, nil)
	ctrl.Subscribe(hub.Observe)
	deps.Hub = hub
	ts.router = NewRouter(deps)
	hub.SetStatusProvider(func() interface{} { return ts.router.Status() })

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	ctrl.Boot()
	if ts.journal != nil {
		require.NoError(t, ts.journal.Begin(context.Background(), ctrl.Snapshot().RoundID))
	}

	t.Cleanup(func() {
		ctrl.Halt()
		cancel()
		<-hub.Done()
		if ts.journal != nil {
			ts.journal.Close()
		}
		board.Close()
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	ts.router.ServeHTTP(w, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return w, body
}

func errorCode(body map[string]interface{}) float64 {
	e, _ := body["error"].(map[string]interface{})
	code, _ := e["code"].(float64)
	return code
}

func TestHealthAndStatus(t *testing.T) {
	ts := newTestServer(t, true, true)

	t.Run("健康检查", func(t *testing.T) {
		w, body := ts.do(t, http.MethodGet, "/health")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "healthy", body["status"])
		assert.Equal(t, "ok", body["database"])
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	})

	t.Run("状态", func(t *testing.T) {
		w, body := ts.do(t, http.MethodGet, "/api/v1/status")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "test-lotto", body["device"])

		ctrl := body["controller"].(map[string]interface{})
		assert.Equal(t, "idle", ctrl["phase"])
		assert.EqualValues(t, 0, ctrl["count"])
		assert.Contains(t, body, "serial")
		assert.Contains(t, body, "journal")
		assert.Contains(t, body, "panel")
	})

	t.Run("不存在的接口", func(t *testing.T) {
		w, body := ts.do(t, http.MethodGet, "/api/v1/spin")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "NOT_FOUND", body["code"])
	})
}

func TestPressCommitsAndJournals(t *testing.T) {
	ts := newTestServer(t, true, true)
	roundID := ts.ctrl.Snapshot().RoundID

	w, body := ts.do(t, http.MethodPost, "/api/v1/buttons/start/press?hold=20ms")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "S4", body["line"])
	assert.Equal(t, "start", body["action"])

	require.Eventually(t, func() bool {
		return ts.ctrl.Snapshot().Candidate != nil
	}, time.Second, time.Millisecond)

	w, body = ts.do(t, http.MethodPost, "/api/v1/buttons/S3/press?hold=20ms")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "stop", body["action"])

	require.Eventually(t, func() bool {
		return ts.ctrl.Snapshot().Count == 1
	}, time.Second, time.Millisecond)
	drawn := ts.ctrl.Snapshot().Drawn[0]

	require.Eventually(t, func() bool {
		return ts.journal.Stats().Written == 1
	}, time.Second, time.Millisecond)

	w, body = ts.do(t, http.MethodGet, "/api/v1/draws?limit=10")
	require.Equal(t, http.StatusOK, w.Code)
	items := body["items"].([]interface{})
	require.Len(t, items, 1)
	rec := items[0].(map[string]interface{})
	assert.Equal(t, "commit", rec["event"])
	assert.EqualValues(t, drawn, rec["value"])
	assert.EqualValues(t, lotto.DigitToASCII(drawn), rec["serial_byte"])

	w, body = ts.do(t, http.MethodGet, "/api/v1/rounds/"+roundID+"/draws")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["items"], 1)

	w, body = ts.do(t, http.MethodGet, "/api/v1/rounds/"+roundID)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{float64(drawn)}, body["values"])

	w, body = ts.do(t, http.MethodGet, "/api/v1/rounds")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["items"], 1)
}

func TestPressBounce(t *testing.T) {
	ts := newTestServer(t, true, false)

	w, body := ts.do(t, http.MethodPost, "/api/v1/buttons/start/press?bounce=true")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, true, body["bounce"])

	assert.Eventually(t, func() bool {
		return ts.ctrl.Snapshot().Stats.Bounced == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, lotto.PhaseIdle, ts.ctrl.Snapshot().Phase)
}

func TestPressRejected(t *testing.T) {
	ts := newTestServer(t, true, false)

	cases := []struct {
		name string
		path string
		code int
		err  float64
	}{
		{"未知按键", "/api/v1/buttons/coin/press", http.StatusBadRequest, 3005},
		{"按住时长无效", "/api/v1/buttons/stop/press?hold=abc", http.StatusBadRequest, 1001},
		{"按住时长过长", "/api/v1/buttons/stop/press?hold=5s", http.StatusBadRequest, 1001},
		{"按住时长为零", "/api/v1/buttons/stop/press?hold=0s", http.StatusBadRequest, 1001},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, body := ts.do(t, http.MethodPost, tc.path)
			assert.Equal(t, tc.code, w.Code)
			assert.Equal(t, tc.err, errorCode(body))
			assert.Equal(t, false, body["success"])
		})
	}
	assert.Zero(t, ts.ctrl.Snapshot().Stats.Edges)
}

func TestPressWithoutVirtualPort(t *testing.T) {
	ts := newTestServer(t, false, false)

	w, body := ts.do(t, http.MethodPost, "/api/v1/buttons/start/press")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.EqualValues(t, 3006, errorCode(body))
}

func TestJournalEndpointsWithoutDatabase(t *testing.T) {
	ts := newTestServer(t, true, false)

	for _, path := range []string{"/api/v1/draws", "/api/v1/rounds", "/api/v1/rounds/x/draws"} {
		w, body := ts.do(t, http.MethodGet, path)
		assert.Equal(t, http.StatusConflict, w.Code, path)
		assert.EqualValues(t, 1008, errorCode(body), path)
	}

	w, body := ts.do(t, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, body, "database")
}

func TestJournalQueryErrors(t *testing.T) {
	ts := newTestServer(t, true, true)

	w, body := ts.do(t, http.MethodGet, "/api/v1/draws?limit=-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.EqualValues(t, 1001, errorCode(body))

	w, body = ts.do(t, http.MethodGet, "/api/v1/rounds/missing/draws")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.EqualValues(t, 1002, errorCode(body))

	w, _ = ts.do(t, http.MethodGet, "/api/v1/rounds/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body = ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/draws?limit=%d", repository.MaxListLimit+100))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, repository.MaxListLimit, body["limit"])
}

func TestWebSocketStream(t *testing.T) {
	ts := newTestServer(t, true, false)
	server := httptest.NewServer(ts.router)
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	next := func(want string) ws.Message {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		for {
			var msg ws.Message
			require.NoError(t, conn.ReadJSON(&msg))
			if msg.Type == want {
				return msg
			}
		}
	}

	status := next(ws.MessageTypeStatus)
	assert.Contains(t, string(status.Data), `"device":"test-lotto"`)

	ts.board.Port.Bounce(lotto.LineS4)
	ev := next(ws.MessageTypeEvent)
	assert.Contains(t, string(ev.Data), `"type":"bounce"`)
}
