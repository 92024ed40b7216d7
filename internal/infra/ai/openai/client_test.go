package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/profixion/internal/domain/ai"
)

func completion(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]string{"role": "assistant", "content": content},
		}},
	})
	return string(b)
}

func TestClient_Analyze_StructuredOutput(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completion(`{"url":"u","name":"Jane","headline":"Eng","overallScore":81,
			"strengths":["a","b","c"],"weaknesses":["d","e"],"recommendations":["f","g"],
			"parameterScores":[{"parameterName":"Headline","score":8,"justification":"clear"}]}`))
	}))
	defer srv.Close()

	c := NewClient("sk-test", srv.URL+"/v1/", "")
	res, err := c.Analyze(context.Background(), json.RawMessage(`{"full_name":"Jane"}`))
	require.NoError(t, err)
	assert.Equal(t, "Jane", res.Name)
	assert.Equal(t, 81.0, res.OverallScore)
	require.Len(t, res.ParameterScores, 1)

	format := got["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])
	schema := format["json_schema"].(map[string]any)
	assert.Equal(t, "profile_audit", schema["name"])
	assert.Equal(t, true, schema["strict"])
	assert.Equal(t, defaultModel, got["model"])
}

func TestClient_Analyze_QuotaExceeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"quota","type":"insufficient_quota"}}`)
	}))
	defer srv.Close()

	c := NewClient("sk-test", srv.URL+"/v1", "gpt-4o-mini")
	_, err := c.Analyze(context.Background(), json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ai.ErrQuotaExceeded)
}

func TestClient_Analyze_EmptyAndMalformed(t *testing.T) {
	content := ""
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completion(content))
	}))
	defer srv.Close()
	c := NewClient("sk-test", srv.URL+"/v1", "gpt-4o-mini")

	_, err := c.Analyze(context.Background(), json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ai.ErrEmptyResponse)

	content = "Sure! Here is the audit: {"
	_, err = c.Analyze(context.Background(), json.RawMessage(`{}`))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ai.ErrEmptyResponse)
}
