package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/entrhq/medisimple/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseServer(t *testing.T, lines []string, inspect func(body map[string]interface{})) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if inspect != nil {
			var body map[string]interface{}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			inspect(body)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			io.WriteString(w, line+"\n\n")
		}
	}))
}

func TestNewProviderRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewProvider("")
	assert.Error(t, err)
}

func TestNewProviderDefaults(t *testing.T) {
	t.Setenv("OPENAI_BASE_URL", "")
	p, err := NewProvider("k")
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, p.GetModel())
	assert.Equal(t, DefaultBaseURL, p.GetBaseURL())
	assert.Equal(t, "openai", p.GetModelInfo().Provider)
}

func TestComplete(t *testing.T) {
	server := sseServer(t, []string{
		`: keep-alive comment`,
		`data: {"choices":[{"delta":{"role":"assistant"},"finish_reason":null}]}`,
		`data: {"choices":[{"delta":{"content":"<think>the user misspelled</think>"},"finish_reason":null}]}`,
		`data: {"choices":[{"delta":{"content":"TYPO: Did you mean: "},"finish_reason":null}]}`,
		`data: not json`,
		`data: {"choices":[{"delta":{"content":"Asthma?"},"finish_reason":null}]}`,
		`data: [DONE]`,
	}, func(body map[string]interface{}) {
		assert.Equal(t, "test-model", body["model"])
		assert.Equal(t, true, body["stream"])
		msgs, _ := body["messages"].([]interface{})
		assert.Len(t, msgs, 2)
	})
	defer server.Close()

	p, err := NewProvider("test-key", WithBaseURL(server.URL+"/"), WithModel("test-model"))
	require.NoError(t, err)

	msg, err := p.Complete(context.Background(), []*types.Message{
		{Role: types.RoleSystem, Content: "be brief"},
		types.NewUserMessage("astma"),
	})
	require.NoError(t, err)
	assert.Equal(t, types.RoleAssistant, msg.Role)
	assert.Equal(t, "TYPO: Did you mean: Asthma?", msg.Content)
}

func TestCompleteStopsOnFinishReason(t *testing.T) {
	server := sseServer(t, []string{
		`data: {"choices":[{"delta":{"role":"assistant","content":"FOLLOW_UP"},"finish_reason":"stop"}]}`,
		`data: {"choices":[{"delta":{"content":"ignored"},"finish_reason":null}]}`,
	}, nil)
	defer server.Close()

	p, err := NewProvider("test-key", WithBaseURL(server.URL))
	require.NoError(t, err)

	msg, err := p.Complete(context.Background(), []*types.Message{types.NewUserMessage("and then?")})
	require.NoError(t, err)
	assert.Equal(t, "FOLLOW_UP", msg.Content)
}

func TestCompleteHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	p, err := NewProvider("test-key", WithBaseURL(server.URL))
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), []*types.Message{types.NewUserMessage("hi")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Contains(t, err.Error(), "model not found")
}

func TestWithTemperature(t *testing.T) {
	server := sseServer(t, []string{`data: [DONE]`}, func(body map[string]interface{}) {
		assert.Equal(t, 0.1, body["temperature"])
	})
	defer server.Close()

	p, err := NewProvider("test-key", WithBaseURL(server.URL), WithTemperature(0.1))
	require.NoError(t, err)
	msg, err := p.Complete(context.Background(), []*types.Message{types.NewUserMessage("hi")})
	require.NoError(t, err)
	assert.Empty(t, msg.Content)
}
