package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/banarnia/infected/internal/auth"
	"github.com/banarnia/infected/internal/contagion"
	"github.com/banarnia/infected/internal/eventbus"
	"github.com/banarnia/infected/internal/listener"
	"github.com/banarnia/infected/internal/messages"
	"github.com/banarnia/infected/internal/testutil/testlog"
	"github.com/banarnia/infected/internal/world"
)

type harness struct {
	server  *Server
	world   *world.World
	sched   *contagion.Scheduler
	reloads int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	testlog.Start(t)
	w := world.New(world.DefaultConfig())
	effects, _ := world.BuildEffects(world.DefaultEffects(), time.Minute)
	w.SetInfectionEffects(effects)
	bus := eventbus.New()
	engine := contagion.NewEngine(contagion.DefaultConfig(), contagion.Deps{
		Population: w,
		Proximity:  w,
		Effects:    w,
		Sink:       bus,
	})
	sched, err := contagion.NewScheduler(engine, time.Hour)
	if err != nil {
		t.Fatalf("unexpected scheduler error: %v", err)
	}
	catalog := messages.New()
	l := listener.New(engine, w, catalog, true)
	l.Attach(bus)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = sched.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-sched.Done()
	})

	h := &harness{world: w, sched: sched}
	h.server = New("admin-test", nil, Deps{
		Scheduler: sched,
		World:     w,
		Listener:  l,
		Catalog:   catalog,
		Reload: func(context.Context) error {
			h.reloads++
			if h.reloads > 1 {
				return errors.New("bad config")
			}
			return nil
		},
	})
	return h
}

func (h *harness) call(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.server.HTTPRouter().ServeHTTP(rr, req)

	var out map[string]any
	if rr.Body.Len() > 0 && strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %s %s response: %v body=%s", method, path, err, rr.Body.String())
		}
	}
	return rr.Code, out
}

func (h *harness) join(t *testing.T, name string, x float64) string {
	t.Helper()
	code, body := h.call(t, http.MethodPost, "/players", `{"name":"`+name+`","position":{"x":`+jsonFloat(x)+`,"y":64,"z":0}}`)
	if code != http.StatusCreated {
		t.Fatalf("expected 201 for join, got %d body=%v", code, body)
	}
	player := body["player"].(map[string]any)
	return player["id"].(string)
}

func jsonFloat(v float64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestInfectAndCureCommands(t *testing.T) {
	h := newHarness(t)
	id := h.join(t, "Alex", 0)

	code, body := h.call(t, http.MethodPost, "/players/Alex/infect", "")
	if code != http.StatusOK {
		t.Fatalf("expected 200 for infect, got %d body=%v", code, body)
	}
	status := body["status"].(map[string]any)
	if status["infected"] != true {
		t.Fatalf("expected infected status: %v", status)
	}

	code, body = h.call(t, http.MethodPost, "/players/"+id+"/infect", "")
	if code != http.StatusConflict {
		t.Fatalf("expected 409 for second infect, got %d", code)
	}
	if body["error"] != "§cThis player is already infected!" {
		t.Fatalf("unexpected error message: %v", body["error"])
	}

	code, _ = h.call(t, http.MethodPost, "/players/"+id+"/cure", "")
	if code != http.StatusOK {
		t.Fatalf("expected 200 for cure, got %d", code)
	}
	code, body = h.call(t, http.MethodPost, "/players/"+id+"/cure", "")
	if code != http.StatusConflict || body["error"] != "§cThis player is not infected!" {
		t.Fatalf("expected 409 for second cure, got %d body=%v", code, body)
	}

	code, body = h.call(t, http.MethodPost, "/players/"+id+"/infect", "")
	if code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 while protected, got %d", code)
	}
	if body["reason"] != string(contagion.RejectProtected) {
		t.Fatalf("unexpected reason: %v", body["reason"])
	}
}

func TestInfectRejectsExcludedModeAndUnknownPlayers(t *testing.T) {
	h := newHarness(t)
	h.join(t, "Builder", 0)
	code, _ := h.call(t, http.MethodPut, "/players/Builder/mode", `{"mode":"creative"}`)
	if code != http.StatusOK {
		t.Fatalf("expected 200 for mode, got %d", code)
	}
	code, body := h.call(t, http.MethodPost, "/players/Builder/infect", "")
	if code != http.StatusUnprocessableEntity || body["reason"] != string(contagion.RejectGameMode) {
		t.Fatalf("expected game mode rejection, got %d body=%v", code, body)
	}
	if code, _ := h.call(t, http.MethodPost, "/players/Nobody/infect", ""); code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown player, got %d", code)
	}
}

func TestWorldHooks(t *testing.T) {
	h := newHarness(t)
	id := h.join(t, "Alex", 0)
	h.call(t, http.MethodPost, "/players/"+id+"/infect", "")

	code, body := h.call(t, http.MethodPost, "/players/"+id+"/consume", `{"item":"MILK_BUCKET"}`)
	if code != http.StatusOK || body["cured"] != true {
		t.Fatalf("expected milk cure, got %d body=%v", code, body)
	}

	code, body = h.call(t, http.MethodGet, "/players/"+id, "")
	if code != http.StatusOK {
		t.Fatalf("expected 200 for status, got %d", code)
	}
	status := body["status"].(map[string]any)
	if status["infected"] != false || status["protected"] != true {
		t.Fatalf("unexpected status after milk: %v", status)
	}

	code, body = h.call(t, http.MethodPost, "/players/"+id+"/death", "")
	if code != http.StatusOK || body["cured"] != false {
		t.Fatalf("healthy death must not cure, got %d body=%v", code, body)
	}

	code, body = h.call(t, http.MethodPut, "/players/"+id+"/position", `{"position":{"x":3,"y":70,"z":1},"on_ground":false}`)
	if code != http.StatusOK {
		t.Fatalf("expected 200 for move, got %d", code)
	}
	pos := body["player"].(map[string]any)["position"].(map[string]any)
	if pos["x"] != 3.0 {
		t.Fatalf("unexpected position: %v", pos)
	}

	code, _ = h.call(t, http.MethodDelete, "/players/"+id, "")
	if code != http.StatusOK {
		t.Fatalf("expected 200 for quit, got %d", code)
	}
	code, body = h.call(t, http.MethodGet, "/players/"+id, "")
	status = body["status"].(map[string]any)
	if code != http.StatusOK || status["protected"] != false {
		t.Fatalf("expected protection dropped after quit, got %d %v", code, status)
	}
	if code, _ := h.call(t, http.MethodDelete, "/players/"+id, ""); code != http.StatusNotFound {
		t.Fatalf("expected 404 for second quit, got %d", code)
	}
}

func TestJoinValidation(t *testing.T) {
	h := newHarness(t)
	h.join(t, "Alex", 0)
	if code, _ := h.call(t, http.MethodPost, "/players", `{"name":"alex"}`); code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate name, got %d", code)
	}
	if code, _ := h.call(t, http.MethodPost, "/players", `{"name":"x","mode":"hardcore"}`); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad mode, got %d", code)
	}
	if code, _ := h.call(t, http.MethodPost, "/players", `{"name":"y","id":"nope"}`); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", code)
	}
	code, body := h.call(t, http.MethodGet, "/players", "")
	if code != http.StatusOK || len(body["players"].([]any)) != 1 {
		t.Fatalf("unexpected player list: %d %v", code, body)
	}
}

func TestHealthReloadAndMetrics(t *testing.T) {
	h := newHarness(t)
	h.join(t, "Alex", 0)
	h.call(t, http.MethodPost, "/players/Alex/infect", "")

	code, body := h.call(t, http.MethodGet, "/health", "")
	if code != http.StatusOK {
		t.Fatalf("expected 200 for health, got %d", code)
	}
	if body["online"] != 1.0 || body["infected"] != 1.0 || body["armed"] != true {
		t.Fatalf("unexpected health body: %v", body)
	}

	code, body = h.call(t, http.MethodPost, "/reload", "")
	if code != http.StatusOK || body["message"] != reloadedMessage {
		t.Fatalf("expected reload ok, got %d body=%v", code, body)
	}
	if code, _ := h.call(t, http.MethodPost, "/reload", ""); code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for failing reload, got %d", code)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	h.server.HTTPRouter().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "infected_contagion_transitions_total") {
		t.Fatalf("expected transitions metric, got %d", rr.Code)
	}
}

func TestClosedSchedulerReturnsUnavailable(t *testing.T) {
	testlog.Start(t)
	w := world.New(world.DefaultConfig())
	engine := contagion.NewEngine(contagion.DefaultConfig(), contagion.Deps{Population: w, Proximity: w})
	sched, _ := contagion.NewScheduler(engine, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = sched.Run(ctx)

	srv := New("admin-closed", nil, Deps{
		Scheduler: sched,
		World:     w,
		Listener:  listener.New(engine, w, messages.New(), false),
		Catalog:   messages.New(),
	})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	srv.HTTPRouter().ServeHTTP(rr, req)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	req = httptest.NewRequest(http.MethodPost, "/reload", nil)
	rr = httptest.NewRecorder()
	srv.HTTPRouter().ServeHTTP(rr, req)
	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501 without reload hook, got %d", rr.Code)
	}
}

func TestAuthGuardsCommandRoutes(t *testing.T) {
	testlog.Start(t)
	w := world.New(world.DefaultConfig())
	engine := contagion.NewEngine(contagion.DefaultConfig(), contagion.Deps{Population: w, Proximity: w})
	sched, _ := contagion.NewScheduler(engine, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = sched.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-sched.Done()
	})

	srv := New("admin-auth", nil, Deps{
		Scheduler: sched,
		World:     w,
		Listener:  listener.New(engine, w, messages.New(), false),
		Catalog:   messages.New(),
		Auth:      auth.FromToken("secret"),
	})
	call := func(method, path, token string) int {
		req := httptest.NewRequest(method, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rr := httptest.NewRecorder()
		srv.HTTPRouter().ServeHTTP(rr, req)
		return rr.Code
	}

	if code := call(http.MethodGet, "/health", ""); code != http.StatusOK {
		t.Fatalf("expected open health, got %d", code)
	}
	if code := call(http.MethodGet, "/players", ""); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}
	if code := call(http.MethodPost, "/players/Alex/infect", "wrong"); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong token, got %d", code)
	}
	if code := call(http.MethodGet, "/players", "secret"); code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", code)
	}
}
