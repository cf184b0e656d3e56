package route

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"singlish-bot/api"
	"singlish-bot/dao"
	"singlish-bot/internal/aiclient"
	"singlish-bot/model"
	"singlish-bot/service"
)

const testSecret = "test-secret"

type testApp struct {
	engine *gin.Engine
	auth   *api.Authenticator
	store  *dao.MemoryStore
	redis  *miniredis.Miniredis
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	return newTestAppWithProvider(t, nil)
}

func newTestAppWithProvider(t *testing.T, provider service.Provider) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := dao.NewRedisClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = client.Close() })
	cache := dao.NewResponseCache(client, "intent:", time.Hour, zap.NewNop())

	store := dao.NewMemoryStore()
	catalog := service.NewCatalog(store, cache, zap.NewNop())
	if _, err := catalog.Seed(context.Background(), "../config/intents.yaml"); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	first := func(int) int { return 0 }
	decision := service.NewDecisionLayer(service.DecisionLayerConfig{
		Provider: provider,
		Cache:    cache,
		Catalog:  catalog,
		Matcher:  service.NewMatcher(service.DefaultCutoff, first),
		Choose:   first,
	})
	sessions := service.NewSessionManager(store, zap.NewNop())
	auth := api.NewAuthenticator(testSecret, "admin")

	engine := NewEngine(Deps{
		Chat:      service.NewChatService(decision, sessions, service.DefaultHistoryTurns, zap.NewNop()),
		Catalog:   catalog,
		Sessions:  sessions,
		Analytics: service.NewAnalyticsService(store),
		Auth:      auth,
		Health: map[string]api.HealthCheck{
			"redis":    cache.Ping,
			"database": store.Ping,
		},
		Logger: zap.NewNop(),
	})
	return &testApp{engine: engine, auth: auth, store: store, redis: mr}
}

func (a *testApp) token(t *testing.T, subject, role string) string {
	t.Helper()
	tok, err := a.auth.Sign(subject, role, time.Hour)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return tok
}

func (a *testApp) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			if err := json.NewEncoder(&buf).Encode(b); err != nil {
				t.Fatalf("encode body: %v", err)
			}
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
		Field   string `json:"field"`
	} `json:"error"`
}

func TestChatAnonymous(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/api/chat", "", model.ChatRequest{Message: "kohomda"})
	if w.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d body=%s", w.Code, w.Body.String())
	}
	resp := decode[model.ChatResponse](t, w)
	if resp.Intent != "greeting" || resp.Confidence < service.DefaultCutoff || resp.SessionID == "" {
		t.Fatalf("response: %+v", resp)
	}
	if !app.redis.Exists("intent:kohomda") {
		t.Fatalf("matcher result not cached in redis")
	}

	w = app.do(t, http.MethodPost, "/api/chat", "", model.ChatRequest{Message: "asdkjasd"})
	if resp := decode[model.ChatResponse](t, w); resp.Intent != model.IntentUnknown || resp.Confidence != 0 {
		t.Fatalf("gibberish: %+v", resp)
	}
}

func TestChatValidation(t *testing.T) {
	app := newTestApp(t)

	cases := map[string]any{
		"empty message": model.ChatRequest{Message: ""},
		"too long":      model.ChatRequest{Message: strings.Repeat("x", 1001)},
		"malformed":     `{"message":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := app.do(t, http.MethodPost, "/api/chat", "", body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status: want=400 got=%d", w.Code)
			}
			if env := decode[errorEnvelope](t, w); env.Error.Code != "validation_error" || env.Error.Field == "" {
				t.Fatalf("envelope: %+v", env)
			}
		})
	}
}

func TestChatRejectsBadToken(t *testing.T) {
	app := newTestApp(t)
	w := app.do(t, http.MethodPost, "/api/chat", "not-a-jwt", model.ChatRequest{Message: "hi"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status: want=401 got=%d", w.Code)
	}

	other := api.NewAuthenticator("other-secret", "admin")
	forged, _ := other.Sign("u1", "admin", time.Hour)
	if w := app.do(t, http.MethodPost, "/api/chat", forged, model.ChatRequest{Message: "hi"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("foreign signature: want=401 got=%d", w.Code)
	}
}

func TestOwnerSessionFlow(t *testing.T) {
	app := newTestApp(t)
	tok := app.token(t, "u1", "")

	w := app.do(t, http.MethodPost, "/api/chat", tok, model.ChatRequest{Message: "hi"})
	first := decode[model.ChatResponse](t, w)
	w = app.do(t, http.MethodPost, "/api/chat", tok, model.ChatRequest{Message: "thank you", SessionID: first.SessionID})
	if second := decode[model.ChatResponse](t, w); second.SessionID != first.SessionID || second.Intent != "thanks" {
		t.Fatalf("second turn: %+v", second)
	}

	w = app.do(t, http.MethodGet, "/api/sessions", tok, nil)
	list := decode[struct {
		Data  []model.Session `json:"data"`
		Total int             `json:"total"`
	}](t, w)
	if list.Total != 1 || list.Data[0].ID != first.SessionID {
		t.Fatalf("sessions: %+v", list)
	}

	w = app.do(t, http.MethodGet, "/api/sessions/"+first.SessionID+"/messages", tok, nil)
	msgs := decode[struct {
		Data []model.Message `json:"data"`
	}](t, w)
	if len(msgs.Data) != 4 {
		t.Fatalf("messages: want=4 got=%d", len(msgs.Data))
	}

	intruder := app.token(t, "u2", "")
	if w := app.do(t, http.MethodGet, "/api/sessions/"+first.SessionID+"/messages", intruder, nil); w.Code != http.StatusNotFound {
		t.Fatalf("foreign history: want=404 got=%d", w.Code)
	}
	if w := app.do(t, http.MethodGet, "/api/sessions", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous sessions: want=401 got=%d", w.Code)
	}

	if w := app.do(t, http.MethodDelete, "/api/sessions/"+first.SessionID, tok, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete: want=204 got=%d", w.Code)
	}
	if _, err := app.store.GetSession(context.Background(), first.SessionID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("session survived delete")
	}
}

func TestIntentAdmin(t *testing.T) {
	app := newTestApp(t)
	admin := app.token(t, "root", "admin")

	if w := app.do(t, http.MethodGet, "/api/admin/intents", app.token(t, "u1", ""), nil); w.Code != http.StatusForbidden {
		t.Fatalf("non-admin: want=403 got=%d", w.Code)
	}
	if w := app.do(t, http.MethodGet, "/api/admin/intents", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous admin: want=401 got=%d", w.Code)
	}

	in := model.IntentInput{
		Name: "cricket", Phrases: []string{"match eka"}, Responses: []string{"Sri Lanka jayawewa!"}, Category: "sport", Priority: 5,
	}
	w := app.do(t, http.MethodPost, "/api/admin/intents", admin, in)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: want=201 got=%d body=%s", w.Code, w.Body.String())
	}
	created := decode[model.Intent](t, w)

	if w := app.do(t, http.MethodPost, "/api/admin/intents", admin, in); w.Code != http.StatusConflict {
		t.Fatalf("duplicate: want=409 got=%d", w.Code)
	}

	bad := in
	bad.Name = "other"
	bad.Priority = 11
	w = app.do(t, http.MethodPost, "/api/admin/intents", admin, bad)
	if w.Code != http.StatusBadRequest || decode[errorEnvelope](t, w).Error.Field != "priority" {
		t.Fatalf("priority 11: got=%d %s", w.Code, w.Body.String())
	}

	if resp := decode[model.ChatResponse](t, app.do(t, http.MethodPost, "/api/chat", "", model.ChatRequest{Message: "match eka"})); resp.Intent != "cricket" {
		t.Fatalf("new intent not served: %+v", resp)
	}

	if w := app.do(t, http.MethodPut, "/api/admin/intents/missing", admin, in); w.Code != http.StatusNotFound {
		t.Fatalf("update missing: want=404 got=%d", w.Code)
	}
	if w := app.do(t, http.MethodDelete, "/api/admin/intents/"+created.ID, admin, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete: want=204 got=%d", w.Code)
	}
	if app.redis.Exists("intent:match eka") {
		t.Fatalf("cache not invalidated by delete")
	}
	if resp := decode[model.ChatResponse](t, app.do(t, http.MethodPost, "/api/chat", "", model.ChatRequest{Message: "match eka"})); resp.Intent == "cricket" {
		t.Fatalf("deleted intent still served: %+v", resp)
	}

	active := decode[struct {
		Total int `json:"total"`
	}](t, app.do(t, http.MethodGet, "/api/admin/intents", admin, nil))
	all := decode[struct {
		Total int `json:"total"`
	}](t, app.do(t, http.MethodGet, "/api/admin/intents?include_inactive=true", admin, nil))
	if active.Total != 10 || all.Total != 11 {
		t.Fatalf("list totals: active=%d all=%d", active.Total, all.Total)
	}
}

func TestAnalyticsAndHealth(t *testing.T) {
	app := newTestApp(t)
	tok := app.token(t, "u1", "")
	app.do(t, http.MethodPost, "/api/chat", tok, model.ChatRequest{Message: "hi"})
	app.do(t, http.MethodPost, "/api/chat", tok, model.ChatRequest{Message: "asdkjasd"})

	admin := app.token(t, "root", "admin")
	w := app.do(t, http.MethodGet, "/api/admin/analytics/summary", admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("summary: %d %s", w.Code, w.Body.String())
	}
	sum := decode[model.AnalyticsSummary](t, w)
	if sum.TotalInteractions != 2 || len(sum.IntentDistribution) != 2 {
		t.Fatalf("summary: %+v", sum)
	}
	if w := app.do(t, http.MethodGet, "/api/admin/analytics/summary?from=yesterday", admin, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad from: want=400 got=%d", w.Code)
	}

	health := decode[struct {
		Status string `json:"status"`
	}](t, app.do(t, http.MethodGet, "/health", "", nil))
	if health.Status != "ok" {
		t.Fatalf("health: %s", health.Status)
	}
	app.redis.Close()
	health = decode[struct {
		Status string `json:"status"`
	}](t, app.do(t, http.MethodGet, "/health", "", nil))
	if health.Status != "degraded" {
		t.Fatalf("health with redis down: %s", health.Status)
	}

	// chat keeps answering without redis
	if resp := decode[model.ChatResponse](t, app.do(t, http.MethodPost, "/api/chat", "", model.ChatRequest{Message: "hello"})); resp.Intent != "greeting" {
		t.Fatalf("chat with redis down: %+v", resp)
	}
}

func TestChatSocket(t *testing.T) {
	app := newTestApp(t)
	srv := httptest.NewServer(app.engine)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	send := func(msg string) map[string]any {
		t.Helper()
		if err := conn.WriteJSON(model.ChatRequest{Message: msg}); err != nil {
			t.Fatalf("WriteJSON: %v", err)
		}
		var out map[string]any
		if err := conn.ReadJSON(&out); err != nil {
			t.Fatalf("ReadJSON: %v", err)
		}
		return out
	}

	first := send("kohomada")
	if first["intent"] != "greeting" {
		t.Fatalf("first frame: %+v", first)
	}
	second := send("thank you")
	if second["sessionId"] != first["sessionId"] {
		t.Fatalf("socket lost its session: %v vs %v", first["sessionId"], second["sessionId"])
	}

	bad := send("   ")
	errObj, ok := bad["error"].(map[string]any)
	if !ok || errObj["code"] != "validation_error" {
		t.Fatalf("invalid frame reply: %+v", bad)
	}
}

// turnRecorder answers every prediction and remembers how many context
// turns each request carried.
type turnRecorder struct {
	mu    sync.Mutex
	turns []int
}

func (r *turnRecorder) Predict(_ context.Context, req model.PredictRequest) (aiclient.Prediction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, len(req.Context.RecentTurns))
	return aiclient.Prediction{Response: "Hari honda!", Intent: "greeting", Confidence: 0.9}, nil
}

func (r *turnRecorder) seen() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.turns...)
}

func TestChatSocketSessionSwitchDropsContext(t *testing.T) {
	rec := &turnRecorder{}
	app := newTestAppWithProvider(t, rec)
	srv := httptest.NewServer(app.engine)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	send := func(req model.ChatRequest) model.ChatResponse {
		t.Helper()
		if err := conn.WriteJSON(req); err != nil {
			t.Fatalf("WriteJSON: %v", err)
		}
		var out model.ChatResponse
		if err := conn.ReadJSON(&out); err != nil {
			t.Fatalf("ReadJSON: %v", err)
		}
		return out
	}

	first := send(model.ChatRequest{Message: "kohomada"})
	send(model.ChatRequest{Message: "thank you"})
	switched := send(model.ChatRequest{Message: "kohomada", SessionID: "other-session"})
	if switched.SessionID != "other-session" || first.SessionID == "other-session" {
		t.Fatalf("session ids: first=%s switched=%s", first.SessionID, switched.SessionID)
	}
	same := send(model.ChatRequest{Message: "oya kawda"})
	if same.SessionID != "other-session" {
		t.Fatalf("socket did not keep the new session: %s", same.SessionID)
	}

	want := []int{0, 2, 0, 2}
	got := rec.seen()
	if len(got) != len(want) {
		t.Fatalf("provider calls: want=%v got=%v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("context turns: want=%v got=%v", want, got)
		}
	}
}
