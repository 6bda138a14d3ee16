package http_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/insurai"
	insuraihttp "github.com/aretw0/insurai/pkg/adapters/http"
	"github.com/aretw0/insurai/pkg/domain"
	"github.com/aretw0/insurai/pkg/graph"
	"github.com/aretw0/insurai/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quoteFlow(t *testing.T) *graph.Graph {
	t.Helper()
	b := graph.New("quote").Start("AskName").Terminal("Done")
	b.Add("AskName").Ask("name", domain.Prompt("Your name?")).Go("AskMembers")
	b.Add("AskMembers").Ask("members", domain.Prompt("How many members?")).Do(func(_ context.Context, s *domain.State) error {
		n, ok := s.Int("members")
		if !ok {
			return &domain.ValidationError{Field: "members", Message: "Members must be a number."}
		}
		return s.Set("premium", float64(8000+n*2000))
	}).End()
	b.Add("Done").Do(func(_ context.Context, s *domain.State) error {
		premium, _ := s.Float("premium")
		s.Sayf("Your premium is %.0f.", premium)
		return nil
	})
	g, err := b.Compile()
	require.NoError(t, err)
	return g
}

type fixture struct {
	t   *testing.T
	srv *httptest.Server
}

func newFixture(t *testing.T, opts ...insurai.Option) *fixture {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	eng := insurai.New(append(opts, insurai.WithLifecycleHooks(metrics.Hooks()))...)
	require.NoError(t, eng.Register(quoteFlow(t)))

	srv := httptest.NewServer(insuraihttp.NewHandler(eng,
		insuraihttp.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))))
	t.Cleanup(srv.Close)
	return &fixture{t: t, srv: srv}
}

func (f *fixture) do(method, path, body string) (int, map[string]any) {
	f.t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(f.t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(f.t, err)
	defer resp.Body.Close()

	var out map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(f.t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func TestServer_SessionLifecycle(t *testing.T) {
	f := newFixture(t)

	code, res := f.do(http.MethodPost, "/flows/quote/sessions", "")
	require.Equal(t, http.StatusCreated, code)
	id := res["session_id"].(string)
	assert.Equal(t, "name", res["awaiting"])
	assert.Equal(t, "Your name?", res["prompt"])

	code, res = f.do(http.MethodPost, "/sessions/"+id+"/advance", `{"text":"Asha"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "members", res["awaiting"])

	code, rec := f.do(http.MethodGet, "/sessions/"+id, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "AskMembers", rec["suspended_at"])

	code, res = f.do(http.MethodPost, "/sessions/"+id+"/advance", `{"inputs":[{"name":"members","value":3}]}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "done", res["status"])
	assert.Equal(t, []any{"Your premium is 14000."}, res["messages"])

	code, _ = f.do(http.MethodPost, "/sessions/"+id+"/advance", `{"text":"4"}`)
	assert.Equal(t, http.StatusBadRequest, code, "a finished session awaits nothing")

	code, _ = f.do(http.MethodPost, "/sessions/"+id+"/advance", `{"inputs":[{"name":"members","value":4}]}`)
	assert.Equal(t, http.StatusConflict, code)

	code, res = f.do(http.MethodDelete, "/sessions/"+id, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, res["state"].(map[string]any)["fields"].(map[string]any)["session_complete"])

	code, _ = f.do(http.MethodGet, "/sessions/"+id, "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestServer_Errors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown flow", http.MethodPost, "/flows/travel/sessions", "", http.StatusNotFound},
		{"unknown session", http.MethodPost, "/sessions/nope/advance", `{"inputs":[{"name":"name","value":"x"}]}`, http.StatusNotFound},
		{"malformed body", http.MethodPost, "/flows/quote/sessions", `{`, http.StatusBadRequest},
		{"nameless input", http.MethodPost, "/flows/quote/sessions", `{"inputs":[{"value":"x"}]}`, http.StatusBadRequest},
		{"oversized input", http.MethodPost, "/flows/quote/sessions", `{"inputs":[{"name":"name","value":"` + strings.Repeat("a", 5000) + `"}]}`, http.StatusBadRequest},
		{"unknown graph", http.MethodGet, "/flows/travel/graph", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, res := f.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, code)
			if code != http.StatusBadRequest || tt.body != "{" {
				assert.NotEmpty(t, res["error"])
			}
		})
	}
}

func TestServer_FlowsGraphAndMetrics(t *testing.T) {
	f := newFixture(t)

	code, res := f.do(http.MethodGet, "/flows", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{"quote"}, res["flows"])

	_, started := f.do(http.MethodPost, "/flows/quote/sessions", `{"inputs":[{"name":"name","value":"Asha"}]}`)
	id := started["session_id"].(string)

	code, res = f.do(http.MethodGet, "/flows/quote/graph?session="+id, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "AskName", res["start"])
	assert.Len(t, res["nodes"], 3)
	assert.Contains(t, res["mermaid"], "class AskMembers current;")

	code, _ = f.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, code)

	resp, err := http.Get(f.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body := new(strings.Builder)
	_, err = bufio.NewReader(resp.Body).WriteTo(body)
	require.NoError(t, err)
	assert.Contains(t, body.String(), `insurai_suspensions_total{flow="quote",node="AskMembers"} 1`)
}

func TestServer_SubscribeEvents(t *testing.T) {
	f := newFixture(t)
	_, started := f.do(http.MethodPost, "/flows/quote/sessions", "")
	id := started["session_id"].(string)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.srv.URL+"/sessions/"+id+"/events?watch=name", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	require.True(t, lines.Scan())
	assert.Equal(t, "event: ping", lines.Text())

	code, _ := f.do(http.MethodPost, "/sessions/"+id+"/advance", `{"text":"Asha"}`)
	require.Equal(t, http.StatusOK, code)

	for lines.Scan() {
		if strings.HasPrefix(lines.Text(), "data: {") {
			assert.Contains(t, lines.Text(), `"name":"Asha"`)
			return
		}
	}
	t.Fatal("no diff received")
}

func TestStreamManager_CloseEndsSubscribers(t *testing.T) {
	sm := insuraihttp.NewStreamManager()
	ch, cancel := sm.Subscribe("s1")
	sm.Broadcast("s1", "hello")
	assert.Equal(t, "hello", <-ch)

	sm.Close("s1")
	_, open := <-ch
	assert.False(t, open)
	cancel()
}
