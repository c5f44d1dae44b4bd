package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"kidsmoney/internal/action"
	"kidsmoney/internal/auth"
	"kidsmoney/internal/config"
	"kidsmoney/internal/game"
	"kidsmoney/internal/model"
	"kidsmoney/internal/notify"
	"kidsmoney/internal/persistence"
	"kidsmoney/internal/sim"
	"kidsmoney/internal/store"
)

var epoch = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, mutate func(*config.APIConfig)) (*httptest.Server, *game.Service) {
	t.Helper()
	ctx := context.Background()
	cfg := config.DefaultAPI()
	cfg.Storage.Driver = "memory"
	cfg.AdminIDs = []string{"admin_1"}
	cfg.RateLimit = config.RateLimitConfig{PerSecond: 1000, Burst: 1000}
	if mutate != nil {
		mutate(&cfg)
	}

	st, err := store.Open(ctx, persistence.NewMemory(), func() *model.GameState {
		return model.NewGameState(epoch, 1, time.Minute)
	}, store.Options{}, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	svc := game.NewService(st, sim.New(sim.DefaultConfig(), rand.New(rand.NewSource(1))), action.NewProcessor(action.DefaultConfig()), notify.NewHub(nil), nil)
	svc.SetClock(func() time.Time { return epoch })
	if err := svc.EnsureUser(ctx, "admin_1", "Admin", model.RoleAdmin); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}

	srv, err := New(cfg, nil, auth.NewResolver(cfg.AdminIDs, cfg.BankerIDs), svc)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, svc
}

type response struct {
	status int
	header http.Header
	body   map[string]any
}

func call(t *testing.T, ts *httptest.Server, method, path, user string, body any, headers ...string) response {
	t.Helper()
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case string:
		rdr = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, ts.URL+path, rdr)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set(auth.HeaderName, user)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out := response{status: resp.StatusCode, header: resp.Header}
	if resp.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&out.body)
	}
	return out
}

func signup(t *testing.T, ts *httptest.Server, user string) {
	t.Helper()
	if r := call(t, ts, http.MethodPost, "/v1/signup", user, map[string]any{"name": "Kid " + user}); r.status != http.StatusCreated {
		t.Fatalf("signup %s: status %d body %v", user, r.status, r.body)
	}
}

func receiptOf(t *testing.T, r response) map[string]any {
	t.Helper()
	rec, ok := r.body["receipt"].(map[string]any)
	if !ok {
		t.Fatalf("no receipt in %v", r.body)
	}
	return rec
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	r := call(t, ts, http.MethodGet, "/healthz", "", nil)
	if r.status != http.StatusOK || r.body["ok"] != true {
		t.Fatalf("healthz = %d %v", r.status, r.body)
	}
}

func TestIdentityRequired(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	if r := call(t, ts, http.MethodGet, "/v1/state", "", nil); r.status != http.StatusUnauthorized {
		t.Fatalf("missing id status = %d", r.status)
	}
	if r := call(t, ts, http.MethodGet, "/v1/state", "bad id!", nil); r.status != http.StatusUnauthorized {
		t.Fatalf("malformed id status = %d", r.status)
	}
}

func TestCookieIdentity(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	signup(t, ts, "kid_one")
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/v1/state", nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: "kid_one"})
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	var body map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&body)
	me, _ := body["me"].(map[string]any)
	if resp.StatusCode != http.StatusOK || me["id"] != "kid_one" {
		t.Fatalf("cookie identity: %d %v", resp.StatusCode, me)
	}
}

func TestSignupAndConflict(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	signup(t, ts, "kid_one")
	r := call(t, ts, http.MethodPost, "/v1/signup", "kid_one", map[string]any{"name": "Again"})
	if r.status != http.StatusConflict {
		t.Fatalf("second signup status = %d", r.status)
	}
	r = call(t, ts, http.MethodPost, "/v1/signup", "kid_two", map[string]any{"nickname": "x"})
	if r.status != http.StatusBadRequest {
		t.Fatalf("unknown field status = %d", r.status)
	}
}

func TestBuyStockRoute(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	signup(t, ts, "kid_one")

	r := call(t, ts, http.MethodPost, "/v1/stocks/candy/buy", "kid_one", map[string]any{"quantity": 3})
	if r.status != http.StatusOK {
		t.Fatalf("buy status = %d body %v", r.status, r.body)
	}
	rec := receiptOf(t, r)
	if rec["amount"] != float64(300) || rec["balance"] != float64(700) {
		t.Fatalf("receipt = %v", rec)
	}

	r = call(t, ts, http.MethodPost, "/v1/stocks/CANDY/sell", "kid_one", map[string]any{"quantity": 5})
	if r.status != http.StatusBadRequest {
		t.Fatalf("oversell status = %d", r.status)
	}
	r = call(t, ts, http.MethodPost, "/v1/stocks/NOPE/buy", "kid_one", map[string]any{"quantity": 1})
	if r.status != http.StatusNotFound {
		t.Fatalf("unknown stock status = %d", r.status)
	}
	r = call(t, ts, http.MethodPost, "/v1/stocks/CANDY/buy", "ghost_kid", map[string]any{"quantity": 1})
	if r.status != http.StatusUnauthorized {
		t.Fatalf("unknown user status = %d", r.status)
	}
}

func TestIdempotencyKeyHeader(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	signup(t, ts, "kid_one")
	body := map[string]any{"amount": 200}

	first := call(t, ts, http.MethodPost, "/v1/loans/take", "kid_one", body, "Idempotency-Key", "loan-1")
	second := call(t, ts, http.MethodPost, "/v1/loans/take", "kid_one", body, "Idempotency-Key", "loan-1")
	if first.status != http.StatusOK || second.status != http.StatusOK {
		t.Fatalf("statuses %d %d", first.status, second.status)
	}
	if receiptOf(t, second)["replayed"] != true {
		t.Fatalf("second call not replayed: %v", receiptOf(t, second))
	}
	st := call(t, ts, http.MethodGet, "/v1/state", "kid_one", nil)
	me := st.body["me"].(map[string]any)
	if me["debt"] != float64(200) || me["balance"] != float64(1200) {
		t.Fatalf("loan applied twice: %v", me)
	}

	r := call(t, ts, http.MethodPost, "/v1/loans/repay", "kid_one", body, "Idempotency-Key", "loan-1")
	if r.status != http.StatusConflict {
		t.Fatalf("reused key status = %d", r.status)
	}
}

func TestStateSince(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	signup(t, ts, "kid_one")

	r := call(t, ts, http.MethodGet, "/v1/state", "kid_one", nil)
	if r.status != http.StatusOK {
		t.Fatalf("state status = %d", r.status)
	}
	rev := int64(r.body["revision"].(float64))
	if r.header.Get("ETag") != strconv.FormatInt(rev, 10) {
		t.Fatalf("etag = %q rev = %d", r.header.Get("ETag"), rev)
	}
	if _, ok := r.body["users"]; ok {
		t.Fatalf("raw users leaked into the view")
	}

	r = call(t, ts, http.MethodGet, "/v1/state?since="+strconv.FormatInt(rev, 10), "kid_one", nil)
	if r.status != http.StatusNoContent {
		t.Fatalf("unchanged status = %d", r.status)
	}
	call(t, ts, http.MethodPost, "/v1/actions", "kid_one", map[string]any{"kind": "deposit", "amount": 10})
	r = call(t, ts, http.MethodGet, "/v1/state?since="+strconv.FormatInt(rev, 10), "kid_one", nil)
	if r.status != http.StatusOK {
		t.Fatalf("changed status = %d", r.status)
	}
	if r := call(t, ts, http.MethodGet, "/v1/state?since=abc", "kid_one", nil); r.status != http.StatusBadRequest {
		t.Fatalf("bad since status = %d", r.status)
	}
}

func TestActionEnvelope(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	signup(t, ts, "kid_one")
	signup(t, ts, "kid_two")

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"unknown kind", `{"kind":"teleport"}`, http.StatusBadRequest},
		{"unknown field", `{"kind":"deposit","amount":5,"bonus":true}`, http.StatusBadRequest},
		{"wrong type", `{"kind":"deposit","amount":"lots"}`, http.StatusBadRequest},
		{"negative amount", `{"kind":"deposit","amount":-5}`, http.StatusBadRequest},
		{"not json", `deposit please`, http.StatusBadRequest},
		{"signup elsewhere", `{"kind":"signup"}`, http.StatusBadRequest},
		{"transfer", `{"kind":"transfer","targetId":"kid_two","amount":25}`, http.StatusOK},
		{"admin only", `{"kind":"admin_grant","amount":5}`, http.StatusForbidden},
		{"message", `{"kind":"send_message","targetId":"kid_two","body":"hello"}`, http.StatusOK},
	}
	for _, tc := range tests {
		r := call(t, ts, http.MethodPost, "/v1/actions", "kid_one", tc.body)
		if r.status != tc.status {
			t.Fatalf("%s: status %d want %d (%v)", tc.name, r.status, tc.status, r.body)
		}
	}
}

func TestActorIsAlwaysCaller(t *testing.T) {
	ts, svc := newTestServer(t, nil)
	signup(t, ts, "kid_one")
	signup(t, ts, "kid_two")

	r := call(t, ts, http.MethodPost, "/v1/actions", "kid_one", `{"kind":"deposit","amount":50,"actorId":"kid_two"}`)
	if r.status != http.StatusOK {
		t.Fatalf("status = %d", r.status)
	}
	st, err := svc.State(context.Background(), "kid_two")
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if st.Me.Deposit != 0 {
		t.Fatalf("actorId in the body was trusted")
	}
}

func TestAdminRoutes(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	signup(t, ts, "kid_one")

	if r := call(t, ts, http.MethodPost, "/v1/admin/grant", "kid_one", map[string]any{"amount": 5}); r.status != http.StatusForbidden {
		t.Fatalf("player grant status = %d", r.status)
	}
	r := call(t, ts, http.MethodPost, "/v1/admin/grant", "admin_1", map[string]any{"amount": 5, "note": "well done"})
	if r.status != http.StatusOK || receiptOf(t, r)["quantity"] != float64(1) {
		t.Fatalf("grant = %d %v", r.status, r.body)
	}

	r = call(t, ts, http.MethodPost, "/v1/admin/settings", "admin_1", `{"taxRate":"0.05","loanCap":10}`)
	if r.status != http.StatusOK {
		t.Fatalf("settings status = %d %v", r.status, r.body)
	}
	r = call(t, ts, http.MethodPost, "/v1/admin/settings", "admin_1", `{"taxRate":"2"}`)
	if r.status != http.StatusBadRequest {
		t.Fatalf("bad settings status = %d", r.status)
	}
	if r := call(t, ts, http.MethodPost, "/v1/loans/take", "kid_one", map[string]any{"amount": 11}); r.status != http.StatusBadRequest {
		t.Fatalf("loan over new cap status = %d", r.status)
	}
}

func TestLandAndMarketRoutes(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	signup(t, ts, "kid_one")
	signup(t, ts, "kid_two")

	if r := call(t, ts, http.MethodPost, "/v1/lands/L0-0/buy", "kid_one", nil); r.status != http.StatusOK {
		t.Fatalf("buy land status = %d %v", r.status, r.body)
	}
	if r := call(t, ts, http.MethodPost, "/v1/lands/L0-0/buy", "kid_two", nil); r.status != http.StatusConflict {
		t.Fatalf("double sale status = %d", r.status)
	}

	r := call(t, ts, http.MethodGet, "/v1/stocks", "kid_one", nil)
	stocks, _ := r.body["stocks"].([]any)
	if r.status != http.StatusOK || len(stocks) != 6 {
		t.Fatalf("stocks = %d %d", r.status, len(stocks))
	}
	if r := call(t, ts, http.MethodGet, "/v1/forbidden-market", "kid_one", nil); r.status != http.StatusForbidden {
		t.Fatalf("locked market status = %d", r.status)
	}
	if r := call(t, ts, http.MethodGet, "/v1/stocks/robot", "kid_one", nil); r.status != http.StatusOK || r.body["id"] != "ROBOT" {
		t.Fatalf("detail = %d %v", r.status, r.body)
	}

	r = call(t, ts, http.MethodGet, "/v1/leaderboard?limit=1", "kid_one", nil)
	rows, _ := r.body["rows"].([]any)
	if r.status != http.StatusOK || len(rows) != 1 {
		t.Fatalf("leaderboard = %d %v", r.status, r.body)
	}
}

func TestRateLimit(t *testing.T) {
	ts, _ := newTestServer(t, func(c *config.APIConfig) {
		c.RateLimit = config.RateLimitConfig{PerSecond: 0.001, Burst: 1}
	})
	signup(t, ts, "kid_one")
	r := call(t, ts, http.MethodPost, "/v1/actions", "kid_one", `{"kind":"deposit","amount":1}`)
	if r.status != http.StatusTooManyRequests || r.header.Get("Retry-After") == "" {
		t.Fatalf("status = %d", r.status)
	}
	// Reads are not limited.
	if r := call(t, ts, http.MethodGet, "/v1/state", "kid_one", nil); r.status != http.StatusOK {
		t.Fatalf("read status = %d", r.status)
	}
}

func TestStream(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	signup(t, ts, "kid_one")
	signup(t, ts, "kid_two")

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/stream"
	header := http.Header{}
	header.Set(auth.HeaderName, "kid_two")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello map[string]any
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("read hello: %v", err)
	}
	if hello["type"] != "hello" || hello["userId"] != "kid_two" {
		t.Fatalf("hello = %v", hello)
	}

	call(t, ts, http.MethodPost, "/v1/actions", "kid_one", `{"kind":"transfer","targetId":"kid_two","amount":15}`)
	for {
		var frame map[string]any
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read frame: %v", err)
		}
		if frame["type"] != "notification" {
			t.Fatalf("frame = %v", frame)
		}
		if uid, ok := frame["userId"]; ok && uid != "kid_two" {
			t.Fatalf("foreign notification: %v", frame)
		}
		if frame["kind"] == "balance_changed" && frame["amount"] == float64(1015) {
			return
		}
	}
}

func TestStreamUnknownUser(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/stream"
	header := http.Header{}
	header.Set(auth.HeaderName, "ghost_kid")
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Fatalf("expected dial failure")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("response = %v", resp)
	}
}

func TestLimiterEvictsIdleUsers(t *testing.T) {
	srv, err := New(config.DefaultAPI(), nil, auth.NewResolver(nil, nil), nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	first := srv.limiter("kid_one", epoch)
	if srv.limiter("kid_one", epoch.Add(time.Minute)) != first {
		t.Fatalf("limiter replaced while in use")
	}
	srv.limiter("kid_two", epoch.Add(5*time.Minute))
	srv.limiter("kid_two", epoch.Add(12*time.Minute))

	if len(srv.limiters) != 1 {
		t.Fatalf("limiters = %d want 1", len(srv.limiters))
	}
	if _, ok := srv.limiters["kid_one"]; ok {
		t.Fatalf("idle limiter kept")
	}
	if srv.limiter("kid_one", epoch.Add(13*time.Minute)) == first {
		t.Fatalf("evicted limiter came back")
	}
}
