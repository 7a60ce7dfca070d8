package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/entrhq/medisimple/pkg/browser"
	"github.com/entrhq/medisimple/pkg/browser/browsertest"
	"github.com/entrhq/medisimple/pkg/classify"
	"github.com/entrhq/medisimple/pkg/dialogue"
	"github.com/entrhq/medisimple/pkg/history"
	"github.com/entrhq/medisimple/pkg/llm"
	"github.com/entrhq/medisimple/pkg/plan"
	"github.com/entrhq/medisimple/pkg/prompts"
	"github.com/entrhq/medisimple/pkg/tasks"
	"github.com/entrhq/medisimple/pkg/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct{}

func (stubSource) Fetch(context.Context, string) (string, error) {
	return strings.Repeat("Asthma narrows the airways and makes breathing hard. ", 4), nil
}

type harness struct {
	srv      *Server
	pages    *browser.PageManager
	fake     *browsertest.Browser
	page     *browsertest.Page
	provider *llm.MockProvider
	store    *history.MemoryStore
	tasks    *tasks.Store
}

func newHarness(t *testing.T, allowed ...string) *harness {
	t.Helper()
	log := zerolog.Nop()

	h := &harness{
		page:     browsertest.NewPage(),
		provider: llm.NewMockProvider(),
		store:    history.NewMemoryStore(),
		tasks:    tasks.NewStore(filepath.Join(t.TempDir(), "tasks.yaml")),
	}
	h.page.EvalResult = []interface{}{
		map[string]interface{}{"index": float64(0), "tag": "INPUT", "type": "search", "name": "search"},
	}
	h.fake = &browsertest.Browser{NewPageFunc: func() (*browsertest.Page, error) { return h.page, nil }}
	h.pages = browser.NewPageManager(browsertest.Launcher(h.fake, nil), log)

	hosts, err := browser.NewHostMatcher(allowed)
	require.NoError(t, err)

	registry := prompts.New(log)
	exec := plan.NewExecutor(h.pages, log, plan.WithDelays(0, 0))
	h.srv = New(Options{AllowedOrigins: []string{"http://localhost:5173"}}, Deps{
		Pages:      h.pages,
		Hosts:      hosts,
		Chat:       dialogue.New(h.store, h.provider, registry, stubSource{}, log),
		History:    h.store,
		Planner:    plan.NewPlanner(h.provider, registry, log),
		Executor:   exec,
		Simplifier: dialogue.NewSimplifier(h.pages, h.provider, registry, 0, log),
		Tasks:      h.tasks,
		Runner:     tasks.NewRunner(h.tasks, h.pages, exec, hosts, 0, log),
		Model:      "granite3.1-dense:8b",
	}, log)
	return h
}

func (h *harness) do(t *testing.T, method, path string, body interface{}) map[string]interface{} {
	t.Helper()
	rec := h.raw(t, method, path, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (h *harness) raw(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (h *harness) connect(t *testing.T) {
	t.Helper()
	out := h.do(t, http.MethodPost, "/connect", map[string]string{"url": "https://en.wikipedia.org/wiki/Asthma"})
	require.Equal(t, "connected", out["status"], out)
}

func TestHealth(t *testing.T) {
	h := newHarness(t)

	out := h.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, false, out["browser_connected"])
	assert.Equal(t, "granite3.1-dense:8b", out["model"])

	h.connect(t)
	out = h.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, true, out["browser_connected"])
}

func TestConnect(t *testing.T) {
	h := newHarness(t)

	out := h.do(t, http.MethodPost, "/connect", map[string]string{"url": " https://en.wikipedia.org/ "})
	assert.Equal(t, "connected", out["status"])
	dom, ok := out["dom"].([]interface{})
	require.True(t, ok)
	require.Len(t, dom, 1)
	assert.Equal(t, "search", dom[0].(map[string]interface{})["name"])
	assert.Equal(t, "goto https://en.wikipedia.org/", h.page.Calls()[0])
}

func TestConnectErrors(t *testing.T) {
	t.Run("missing url", func(t *testing.T) {
		h := newHarness(t)
		out := h.do(t, http.MethodPost, "/connect", map[string]string{})
		assert.Equal(t, "URL is required", out["error"])
	})

	t.Run("host not allowed", func(t *testing.T) {
		h := newHarness(t, "*.wikipedia.org")
		out := h.do(t, http.MethodPost, "/connect", map[string]string{"url": "https://evil.example/"})
		assert.Contains(t, out["error"], "Host not allowed")
		assert.Empty(t, h.fake.Pages(), "no page is opened")
	})

	t.Run("timeout", func(t *testing.T) {
		h := newHarness(t)
		h.page.Errors["goto"] = browser.NewTimeoutError("navigate", errors.New("15000ms exceeded"))
		out := h.do(t, http.MethodPost, "/connect", map[string]string{"url": "https://slow.example/"})
		assert.Equal(t, errPageLoadTimeout, out["error"])
	})

	t.Run("driver error", func(t *testing.T) {
		h := newHarness(t)
		h.page.Errors["goto"] = errors.New("net::ERR_NAME_NOT_RESOLVED")
		out := h.do(t, http.MethodPost, "/connect", map[string]string{"url": "https://nowhere.example/"})
		assert.Contains(t, out["error"], "ERR_NAME_NOT_RESOLVED")
	})
}

func TestPlan(t *testing.T) {
	h := newHarness(t)
	h.provider.Responses = []string{`[{"type":"click","selector":"#go"}]`}

	out := h.do(t, http.MethodPost, "/plan", map[string]string{"instruction": "press go", "dom": "[]"})
	assert.Equal(t, `[{"type":"click","selector":"#go"}]`, out["plan"])

	out = h.do(t, http.MethodPost, "/plan", map[string]string{"instruction": "again", "dom": "[]"})
	assert.NotEmpty(t, out["error"], "provider failures surface as error")
}

func TestExecute(t *testing.T) {
	h := newHarness(t)

	out := h.do(t, http.MethodPost, "/execute", map[string]string{"actions": "[]"})
	assert.Equal(t, errNotConnected, out["error"])

	h.connect(t)

	out = h.do(t, http.MethodPost, "/execute", map[string]string{
		"actions": `Sure! [{"type":"fill","selector":"input[name='search']","value":"asthma"},{"type":"press","selector":"input[name='search']"}] Done.`,
		"url":     "https://en.wikipedia.org/",
	})
	assert.Equal(t, "success", out["status"])
	assert.Equal(t, []interface{}{
		"✓ Filled 'input[name='search']' with 'asthma'",
		"✓ Pressed 'Enter' on 'input[name='search']'",
	}, out["results"])

	out = h.do(t, http.MethodPost, "/execute", map[string]string{"actions": "no plan here"})
	assert.Equal(t, "error", out["status"])
	assert.Equal(t, "No JSON array found in actions", out["message"])

	out = h.do(t, http.MethodPost, "/execute", map[string]string{"actions": `[{"type":]`})
	assert.Equal(t, "error", out["status"])
	assert.True(t, strings.HasPrefix(out["message"].(string), "Invalid action JSON: "), out["message"])
}

func TestSimplify(t *testing.T) {
	h := newHarness(t)

	out := h.do(t, http.MethodPost, "/simplify", nil)
	assert.Equal(t, errNotConnectedBare, out["error"])

	h.connect(t)
	h.page.HTML = "<html><body><p>Sign in</p></body></html>"
	out = h.do(t, http.MethodPost, "/simplify", nil)
	assert.Equal(t, errNoArticle, out["error"])

	h.page.HTML = "<html><body><article>" + strings.Repeat("Asthma is a lung disease. ", 20) + "</article></body></html>"
	h.provider.Responses = []string{"Asthma makes breathing hard."}
	out = h.do(t, http.MethodPost, "/simplify", nil)
	assert.Equal(t, "Asthma makes breathing hard.", out["simplified"])
}

func TestAnalyzeAndClickBest(t *testing.T) {
	h := newHarness(t)

	out := h.do(t, http.MethodPost, "/analyze", nil)
	assert.Equal(t, errNotConnectedBare, out["error"])
	out = h.do(t, http.MethodPost, "/click-best", map[string]string{"search_term": "flu"})
	assert.Equal(t, errNotConnectedBare, out["error"])

	h.connect(t)
	h.page.EvalResult = map[string]interface{}{
		"isSearchPage": true,
		"resultCount":  float64(2),
		"results": []interface{}{
			map[string]interface{}{"index": float64(2), "title": "Common cold symptoms and care", "url": "https://example.org/cold", "snippet": "runny nose"},
			map[string]interface{}{"index": float64(5), "title": "Influenza (flu) explained simply", "url": "https://example.org/flu", "snippet": "fever and aches"},
		},
	}

	out = h.do(t, http.MethodPost, "/analyze", nil)
	assert.Equal(t, true, out["isSearchPage"])
	assert.Equal(t, float64(2), out["resultCount"])
	assert.Len(t, out["results"], 2)

	out = h.do(t, http.MethodPost, "/click-best", map[string]string{"search_term": " "})
	assert.Equal(t, errSearchTermRequired, out["error"])

	out = h.do(t, http.MethodPost, "/click-best", map[string]string{"search_term": "flu fever"})
	assert.Equal(t, "clicked", out["status"])
	assert.Equal(t, "Clicked: Influenza (flu) explained simply", out["result"])
	assert.Equal(t, "https://example.org/flu", h.page.URL())

	out = h.do(t, http.MethodPost, "/click-best", map[string]string{"search_term": "measles"})
	assert.Equal(t, "No relevant result found", out["error"])

	h.page.EvalResult = map[string]interface{}{"isSearchPage": false, "resultCount": float64(0), "results": []interface{}{}}
	out = h.do(t, http.MethodPost, "/click-best", map[string]string{"search_term": "flu"})
	assert.Equal(t, "Not a search results page", out["error"])
}

func TestChatAndHistory(t *testing.T) {
	h := newHarness(t)

	out := h.do(t, http.MethodPost, "/chat", map[string]string{"query": "  "})
	assert.Equal(t, "Query is required", out["error"])

	out = h.do(t, http.MethodPost, "/chat", map[string]string{"query": "hi"})
	assert.Equal(t, classify.GreetingReply, out["response"])

	turns, err := h.store.RecentWindow(context.Background(), "default", 10)
	require.NoError(t, err)
	assert.Len(t, turns, 2, "session defaults to 'default'")

	out = h.do(t, http.MethodPost, "/chat", map[string]string{"query": strings.Repeat("a", 501), "session_id": "s1"})
	assert.Equal(t, dialogue.MsgTooLong, out["response"])

	out = h.do(t, http.MethodGet, "/history/default", nil)
	assert.Equal(t, []interface{}{
		map[string]interface{}{"role": "user", "content": "hi"},
		map[string]interface{}{"role": "assistant", "content": classify.GreetingReply},
	}, out["messages"])

	out = h.do(t, http.MethodDelete, "/history/default", nil)
	assert.Equal(t, "cleared", out["status"])

	rec := h.raw(t, http.MethodGet, "/history/default", nil)
	assert.JSONEq(t, `{"messages":[]}`, rec.Body.String())
}

func TestChatAnswer(t *testing.T) {
	h := newHarness(t)
	h.provider.Responses = []string{"OK", "Asthma makes your airways tight."}

	out := h.do(t, http.MethodPost, "/chat", map[string]string{"query": "what is asthma", "session_id": "s1"})
	assert.Equal(t, "Asthma makes your airways tight.", out["response"])
}

func TestHistoryLimit(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 120; i++ {
		require.NoError(t, h.store.Append(context.Background(), "s", types.RoleUser, "q"))
	}

	out := h.do(t, http.MethodGet, "/history/s", nil)
	assert.Len(t, out["messages"], 100)
}

func TestTasks(t *testing.T) {
	h := newHarness(t)

	out := h.do(t, http.MethodGet, "/tasks", nil)
	assert.Equal(t, []interface{}{}, out["tasks"])

	out = h.do(t, http.MethodPost, "/tasks", tasks.Task{
		Name:        "search",
		URL:         "https://www.wikipedia.org",
		Instruction: "search asthma",
		Actions: []plan.ActionStep{
			{Type: plan.StepFill, Selector: "#searchInput", Value: "asthma"},
			{Type: plan.StepWait},
		},
	})
	assert.Equal(t, "saved", out["status"])

	out = h.do(t, http.MethodGet, "/tasks", nil)
	assert.Len(t, out["tasks"], 1)

	out = h.do(t, http.MethodPost, "/tasks/search/run", nil)
	assert.Equal(t, "success", out["status"])
	assert.Equal(t, []interface{}{"✓ Filled '#searchInput' with 'asthma'", "✓ Waited 0ms"}, out["results"])

	out = h.do(t, http.MethodPost, "/tasks/ghost/run", nil)
	assert.Equal(t, "Task ghost not found", out["error"])

	out = h.do(t, http.MethodPost, "/tasks", map[string]string{"name": "broken"})
	assert.Contains(t, out["error"], "url")
}

func TestInvalidBody(t *testing.T) {
	h := newHarness(t)
	rec := h.raw(t, http.MethodPost, "/chat", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid JSON body"}`, rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestServeShutsDownBrowser(t *testing.T) {
	h := newHarness(t)
	_, err := h.pages.AcquireFresh()
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.srv.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.True(t, h.fake.Closed(), "browser is closed on shutdown")
	assert.False(t, h.pages.HasPage())
}
