package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const completionBody = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"model": "gpt-4o-mini-2024",
	"choices": [{"index": 0, "message": {"role": "assistant", "content": " {\"overallGrade\": \"PASS\"} "}, "finish_reason": "stop"}],
	"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
}`

func newTestGrader(t *testing.T, url string, retries int) *OpenAIGrader {
	t.Helper()
	grader, err := NewOpenAIGrader(OpenAIConfig{
		APIKey:     "test-key",
		BaseURL:    url + "/v1",
		MaxRetries: retries,
		RetryDelay: time.Millisecond,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	return grader
}

func TestOpenAIGraderRetriesTransientFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"error": {"message": "upstream overloaded", "type": "server_error"}}`)
			return
		}
		_, _ = io.WriteString(w, completionBody)
	}))
	defer server.Close()

	resp, err := newTestGrader(t, server.URL, 2).Grade(context.Background(), GradeRequest{
		Mode:          ModeExtractedText,
		CriteriaCodes: []string{"P1"},
		ExtractedText: "body",
	})

	require.NoError(t, err)
	require.Equal(t, int32(2), atomic.LoadInt32(&calls))
	require.JSONEq(t, `{"overallGrade": "PASS"}`, string(resp.Raw))
	require.Equal(t, "openai", resp.Provider)
	require.Equal(t, "gpt-4o-mini-2024", resp.Model)
}

func TestOpenAIGraderDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error": {"message": "bad request", "type": "invalid_request_error"}}`)
	}))
	defer server.Close()

	_, err := newTestGrader(t, server.URL, 3).Grade(context.Background(), GradeRequest{Mode: ModeExtractedText})

	require.Error(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestOpenAIGraderEmptyAnswer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id": "x", "object": "chat.completion", "model": "m", "choices": []}`)
	}))
	defer server.Close()

	resp, err := newTestGrader(t, server.URL, 0).Grade(context.Background(), GradeRequest{Mode: ModeExtractedText})

	require.NoError(t, err)
	require.Nil(t, resp.Raw)
	require.Equal(t, "openai", resp.Provider)
	require.Equal(t, "m", resp.Model)
}

func TestOpenAIGraderSendsPageImages(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionBody)
	}))
	defer server.Close()

	_, err := newTestGrader(t, server.URL, 0).Grade(context.Background(), GradeRequest{
		Mode:            ModeRawPageImages,
		AssignmentTitle: "Networking",
		CriteriaCodes:   []string{"P1", "M1"},
		PageImageURLs:   []string{"https://files.example/p1.png", "https://files.example/p2.png"},
	})
	require.NoError(t, err)

	messages := captured["messages"].([]any)
	require.Len(t, messages, 2)
	user := messages[1].(map[string]any)
	parts := user["content"].([]any)
	require.Len(t, parts, 3)
	require.Equal(t, "text", parts[0].(map[string]any)["type"])
	require.Contains(t, parts[0].(map[string]any)["text"], "2 page images")
	image := parts[2].(map[string]any)
	require.Equal(t, "image_url", image["type"])
	require.Equal(t, "https://files.example/p2.png", image["image_url"].(map[string]any)["url"])
}

func TestBuildUserPromptExtractedText(t *testing.T) {
	prompt := buildUserPrompt(GradeRequest{
		Mode:            ModeExtractedText,
		AssignmentTitle: "Networking",
		Brief:           "Design a LAN",
		CriteriaCodes:   []string{"P1", "P2"},
		ExtractedText:   "The network uses a star topology.",
	})

	require.True(t, strings.HasPrefix(prompt, "# Assignment\nNetworking"))
	require.Contains(t, prompt, "## Brief\nDesign a LAN")
	require.Contains(t, prompt, "P1, P2")
	require.Contains(t, prompt, "star topology")

	message := buildUserMessage(GradeRequest{Mode: ModeRawPageImages, ExtractedText: "fallback"})
	require.Empty(t, message.MultiContent)
	require.Contains(t, message.Content, "fallback")
}

func TestNewOpenAIGraderRequiresKey(t *testing.T) {
	_, err := NewOpenAIGrader(OpenAIConfig{})
	require.Error(t, err)
}
