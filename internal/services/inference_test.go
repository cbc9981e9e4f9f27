package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartreply-backend/internal/models"
)

func completionBody(content string) string {
	b, _ := json.Marshal(map[string]interface{}{
		"choices": []interface{}{
			map[string]interface{}{"message": map[string]interface{}{"role": "assistant", "content": content}},
		},
	})
	return string(b)
}

func newCompletionServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	calls := &atomic.Int32{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, calls
}

func TestChatCompletionsClient_RequestShape(t *testing.T) {
	bodies := make(chan chatCompletionRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body chatCompletionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies <- body
		w.Write([]byte(completionBody(`["A","B","C"]`)))
	}))
	t.Cleanup(srv.Close)

	client := NewChatCompletionsClient(srv.URL+"/", srv.Client())
	input := []models.ConversationMessage{{User: "Ann", Text: "hi"}, {User: "Bo", Text: "yo"}}

	_, err := client.RequestReplies(context.Background(), input, "secret-key")
	require.NoError(t, err)

	want := chatCompletionRequest{
		Model: SyntheticModel,
		Messages: []chatCompletionMessage{
			{Role: "system", Content: smartReplySystemPrompt},
			{Role: "user", Content: "Recent conversation:\nAnn: hi\nBo: yo\n\nGenerate 3 smart reply suggestions as a JSON array."},
		},
		Temperature: 0.7,
		MaxTokens:   200,
	}
	if diff := cmp.Diff(want, <-bodies); diff != "" {
		t.Fatalf("request body mismatch (-want +got):\n%s", diff)
	}
}

func TestChatCompletionsClient_Success(t *testing.T) {
	srv, calls := newCompletionServer(t, http.StatusOK, completionBody(`["A","B","C","D"]`))
	client := NewChatCompletionsClient(srv.URL, srv.Client())

	parsed, err := client.RequestReplies(context.Background(), msgs("hey"), "k")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, parsed.Replies)
	assert.Equal(t, SyntheticModel, parsed.Model)
	assert.EqualValues(t, 1, calls.Load())
}

func TestChatCompletionsClient_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   FailureKind
		label  string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":"bad key"}`, FailureRemoteRejected, "unauthorized"},
		{"rate limited", http.StatusTooManyRequests, `{}`, FailureRemoteRejected, "rate_limited"},
		{"server error", http.StatusInternalServerError, ``, FailureRemoteRejected, "server_error"},
		{"bad gateway", http.StatusBadGateway, ``, FailureRemoteRejected, "server_error"},
		{"bad request", http.StatusBadRequest, ``, FailureRemoteRejected, "rejected"},
		{"no choices", http.StatusOK, `{"choices":[]}`, FailureEmptyResponse, ""},
		{"null content", http.StatusOK, `{"choices":[{"message":{"content":null}}]}`, FailureEmptyResponse, ""},
		{"empty content", http.StatusOK, completionBody(""), FailureEmptyResponse, ""},
		{"body not json", http.StatusOK, `<html>oops</html>`, FailureEmptyResponse, ""},
		{"empty body", http.StatusOK, ``, FailureEmptyResponse, ""},
		{"content not json", http.StatusOK, completionBody("not json"), FailureMalformedContent, ""},
		{"content empty array", http.StatusOK, completionBody("[]"), FailureMalformedContent, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv, calls := newCompletionServer(t, tc.status, tc.body)
			client := NewChatCompletionsClient(srv.URL, srv.Client())

			parsed, err := client.RequestReplies(context.Background(), msgs("hey"), "k")
			require.Error(t, err)
			assert.Nil(t, parsed)

			var ie *InferenceError
			require.True(t, errors.As(err, &ie))
			assert.Equal(t, tc.kind, ie.Kind)
			assert.Equal(t, tc.label, ie.Status())
			assert.EqualValues(t, 1, calls.Load(), "must not retry")
		})
	}
}

func TestChatCompletionsClient_RejectedCarriesStatusAndBody(t *testing.T) {
	srv, _ := newCompletionServer(t, http.StatusUnauthorized, `{"error":"bad key"}`)
	client := NewChatCompletionsClient(srv.URL, srv.Client())

	_, err := client.RequestReplies(context.Background(), msgs("hey"), "k")

	var ie *InferenceError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, http.StatusUnauthorized, ie.StatusCode)
	assert.Equal(t, `{"error":"bad key"}`, ie.Detail)
	assert.Contains(t, ie.Error(), "HTTP 401")
}

func TestChatCompletionsClient_NoKeyIsUnconfigured(t *testing.T) {
	srv, calls := newCompletionServer(t, http.StatusOK, completionBody(`["A"]`))
	client := NewChatCompletionsClient(srv.URL, srv.Client())

	_, err := client.RequestReplies(context.Background(), msgs("hey"), "")
	assert.Equal(t, FailureUnconfigured, FailureKindOf(err))
	assert.EqualValues(t, 0, calls.Load())
}

func TestChatCompletionsClient_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewChatCompletionsClient(url, nil)
	_, err := client.RequestReplies(context.Background(), msgs("hey"), "k")
	assert.Equal(t, FailureNetwork, FailureKindOf(err))
}

func TestChatCompletionsClient_ContextCancelAbortsRequest(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	client := NewChatCompletionsClient(srv.URL, srv.Client())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.RequestReplies(ctx, msgs("hey"), "k")

	assert.Equal(t, FailureNetwork, FailureKindOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}
