package server_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/effective-security/toolrouter/callbacks"
	"github.com/effective-security/toolrouter/config"
	"github.com/effective-security/toolrouter/pkg/llmfactory"
	"github.com/effective-security/toolrouter/pkg/provider"
	"github.com/effective-security/toolrouter/server"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const completionTemplate = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"created": 1700000000,
	"model": "gpt-3.5-turbo",
	"choices": [{"index": 0, "finish_reason": "tool_calls", "message": {"role": "assistant", "content": null}}]
}`

type fixture struct {
	llmCalls      atomic.Int32
	providerCalls atomic.Int32
	llmStatus     int
	llmReply      string
	// llmReplies are returned in order, before llmReply
	llmReplies []string
	lock       sync.Mutex
	llmBodies  []string
	cfg        *config.Config
}

func newFixture(t *testing.T, token string) *fixture {
	f := &fixture{llmStatus: http.StatusOK}

	reply, err := sjson.Set(completionTemplate, "choices.0.message.tool_calls.0", map[string]any{
		"id":   "call_1",
		"type": "function",
		"function": map[string]any{
			"name":      "call_electronics_dept",
			"arguments": `{"customerQuery":"My laptop screen is cracked"}`,
		},
	})
	require.NoError(t, err)
	f.llmReply = reply

	llmServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(f.llmCalls.Add(1))
		body, _ := io.ReadAll(r.Body)
		f.lock.Lock()
		f.llmBodies = append(f.llmBodies, string(body))
		f.lock.Unlock()

		reply := f.llmReply
		if n <= len(f.llmReplies) {
			reply = f.llmReplies[n-1]
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.llmStatus)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(llmServer.Close)

	providerServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.providerCalls.Add(1)
		_, _ = w.Write([]byte(`{"completion": "{\"Ticket No.\": \"E-102\", \"Classification\": \"Hardware Damage\"}"}`))
	}))
	t.Cleanup(providerServer.Close)

	t.Setenv("OPENAI_API_KEY", "")
	f.cfg = &config.Config{
		LLM: llmfactory.Config{
			Providers: []*llmfactory.ProviderConfig{
				{
					Name:         "openai",
					Token:        token,
					DefaultModel: "gpt-3.5-turbo",
					OpenAI: llmfactory.OpenAIConfig{
						BaseURL: llmServer.URL,
					},
				},
			},
		},
		Providers: []provider.Config{
			{ID: "sports", BaseURL: providerServer.URL, Token: "s"},
			{ID: "electronics", BaseURL: providerServer.URL, Token: "e"},
			{ID: "travel", BaseURL: providerServer.URL, Token: "t"},
		},
	}
	return f
}

func (f *fixture) get(t *testing.T, target string) *httptest.ResponseRecorder {
	srv, err := server.New(f.cfg, server.WithCallback(callbacks.NewNoop()))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, target, nil)
	srv.Handler().ServeHTTP(w, r)
	return w
}

func TestSupport(t *testing.T) {
	f := newFixture(t, "sk-test")

	w := f.get(t, "/support?query="+url.QueryEscape("My laptop screen is cracked"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get(server.RequestIDHeader))

	body := w.Body.String()
	assert.Contains(t, body, "<title>TechBay Customer Support</title>")
	assert.Contains(t, body, "<h2>Your Query:</h2>\n<p>My laptop screen is cracked</p>")
	assert.Contains(t, body, "<p>Ticket No.: E-102, Classification: Hardware Damage</p>")

	assert.EqualValues(t, 1, f.llmCalls.Load())
	assert.EqualValues(t, 1, f.providerCalls.Load())

	// the root path serves the same flow
	w = f.get(t, "/?query=laptop")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSummarize(t *testing.T) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body><nav>Home</nav><p>TechBay sells cabin bags.</p><p>Free shipping on suitcases.</p></body></html>`))
	}))
	defer page.Close()
	pageURL := page.URL + "/luggage"

	f := newFixture(t, "sk-test")
	toolCall, err := sjson.Set(completionTemplate, "choices.0.message.tool_calls.0", map[string]any{
		"id":   "call_1",
		"type": "function",
		"function": map[string]any{
			"name":      "read_content",
			"arguments": `{"url":"` + pageURL + `"}`,
		},
	})
	require.NoError(t, err)
	answer, err := sjson.Set(completionTemplate, "choices.0.message.content", "TechBay sells cabin bags\nwith free shipping.")
	require.NoError(t, err)
	answer, err = sjson.Set(answer, "choices.0.finish_reason", "stop")
	require.NoError(t, err)
	f.llmReplies = []string{toolCall, answer}

	w := f.get(t, "/summarize?message="+url.QueryEscape("What does this page sell?")+"&url="+url.QueryEscape(pageURL))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, "<h2>Your Query:</h2>\n<p>What does this page sell?</p>")
	assert.Contains(t, body, `<p><a href="`+pageURL+`">`+pageURL+`</a></p>`)
	assert.Contains(t, body, "<p>TechBay sells cabin bags</p>\n<p>with free shipping.</p>")

	assert.EqualValues(t, 2, f.llmCalls.Load())
	assert.Zero(t, f.providerCalls.Load())

	f.lock.Lock()
	defer f.lock.Unlock()
	require.Len(t, f.llmBodies, 2)
	assert.Equal(t, "read_content", gjson.Get(f.llmBodies[0], "tools.0.function.name").String())
	assert.Contains(t, gjson.Get(f.llmBodies[0], "messages.1.content").String(), pageURL)
	second := f.llmBodies[1]
	assert.False(t, gjson.Get(second, "tools").Exists())
	assert.Equal(t, "tool", gjson.Get(second, "messages.3.role").String())
	assert.Equal(t, "call_1", gjson.Get(second, "messages.3.tool_call_id").String())
	assert.Equal(t, "TechBay sells cabin bags.\n\nFree shipping on suitcases.", gjson.Get(second, "messages.3.content").String())
}

func TestSupport_MissingQuery(t *testing.T) {
	f := newFixture(t, "sk-test")

	for _, target := range []string{"/", "/support", "/support?query=", "/support?query=%20%20"} {
		w := f.get(t, target)
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
		assert.Equal(t, "No query provided", w.Body.String())
	}

	w := f.get(t, "/summarize?url=https://techbay.example")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No message provided", w.Body.String())

	assert.Zero(t, f.llmCalls.Load())
	assert.Zero(t, f.providerCalls.Load())
}

func TestSupport_MissingCredential(t *testing.T) {
	f := newFixture(t, "")

	w := f.get(t, "/support?query=laptop")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "OPENAI_API_KEY is not set", w.Body.String())

	assert.Zero(t, f.llmCalls.Load())
	assert.Zero(t, f.providerCalls.Load())
}

func TestSupport_LLMFailure(t *testing.T) {
	f := newFixture(t, "sk-test")
	f.llmStatus = http.StatusInternalServerError
	f.llmReply = `{"error": {"message": "boom"}}`

	w := f.get(t, "/support?query=laptop")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "Sorry, our assistant is not available right now, please try again later.", w.Body.String())
	assert.NotContains(t, w.Body.String(), "boom")
	assert.Zero(t, f.providerCalls.Load())
}

func TestSupport_EscapesQuery(t *testing.T) {
	f := newFixture(t, "sk-test")

	w := f.get(t, "/support?query="+url.QueryEscape("<script>alert(1)</script>"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "<script>")
	assert.Contains(t, w.Body.String(), "&lt;script&gt;alert(1)&lt;/script&gt;")
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, "")
	w := f.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestListenAndServe(t *testing.T) {
	f := newFixture(t, "")
	f.cfg.HTTP.ListenAddr = "127.0.0.1:0"
	srv, err := server.New(f.cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, srv.ListenAndServe(ctx))
}

func TestNew_InvalidTimeout(t *testing.T) {
	f := newFixture(t, "")
	f.cfg.HTTP.Timeout = "never"
	_, err := server.New(f.cfg)
	assert.EqualError(t, err, `invalid configuration: http.timeout: "never"`)
}
