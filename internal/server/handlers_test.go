package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/chatbridge/chatbot-backend/internal/config"
	"github.com/chatbridge/chatbot-backend/internal/models"
	"github.com/chatbridge/chatbot-backend/internal/openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubCompleter struct {
	answer string
	err    error

	gotModel       string
	gotMessages    []models.ChatCompletionMessage
	gotTemperature float64
}

func (s *stubCompleter) CreateChatCompletion(ctx context.Context, model string, messages []models.ChatCompletionMessage, temperature float64) (string, error) {
	s.gotModel = model
	s.gotMessages = messages
	s.gotTemperature = temperature
	return s.answer, s.err
}

func newTestServer(stub *stubCompleter, completerErr error) *Server {
	cfg := &config.Config{}
	cfg.Server.Mode = "test"

	s := New(cfg, zap.NewNop())
	s.newCompleter = func() (chatCompleter, error) {
		if completerErr != nil {
			return nil, completerErr
		}
		return stub, nil
	}
	return s
}

func postChat(s *Server, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/chat/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(&stubCompleter{}, nil)

	// Idempotent regardless of prior requests
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health/", nil)
		w := httptest.NewRecorder()
		s.Router().ServeHTTP(w, req)

		assert.Equal(t, 200, w.Code)
		assert.Equal(t, "Server is up!", decodeBody(t, w)["message"])
	}
}

func TestChat_Success(t *testing.T) {
	stub := &stubCompleter{answer: "Hello!"}
	s := newTestServer(stub, nil)

	w := postChat(s, `{"question": "Hi"}`)

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "Hello!", decodeBody(t, w)["answer"])

	assert.Equal(t, models.DefaultModel, stub.gotModel)
	assert.Equal(t, 0.7, stub.gotTemperature)
	require.Len(t, stub.gotMessages, 1)
	assert.Equal(t, "user", stub.gotMessages[0].Role)
	assert.Equal(t, "Hi", stub.gotMessages[0].Content)
}

func TestChat_SystemPromptAndModel(t *testing.T) {
	stub := &stubCompleter{answer: "Sure."}
	s := newTestServer(stub, nil)

	w := postChat(s, `{"question": "  Hi  ", "model": "gpt-4o", "system_prompt": "Be terse."}`)

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "gpt-4o", stub.gotModel)
	require.Len(t, stub.gotMessages, 2)
	assert.Equal(t, "system", stub.gotMessages[0].Role)
	assert.Equal(t, "Be terse.", stub.gotMessages[0].Content)
	assert.Equal(t, "user", stub.gotMessages[1].Role)
	assert.Equal(t, "Hi", stub.gotMessages[1].Content) // trimmed
}

func TestChat_MissingQuestion(t *testing.T) {
	cases := []string{
		`{}`,
		`{"question": ""}`,
		`{"question": "   "}`,
		`{"question": 42}`,
		`[1, 2, 3]`,
		`"just a string"`,
		`not json at all`,
	}

	for _, body := range cases {
		s := newTestServer(&stubCompleter{answer: "unused"}, nil)
		w := postChat(s, body)

		assert.Equal(t, 400, w.Code, "body: %s", body)
		assert.Contains(t, decodeBody(t, w), "error", "body: %s", body)
	}
}

func TestChat_MissingAPIKey(t *testing.T) {
	s := newTestServer(nil, openai.ErrMissingAPIKey)

	w := postChat(s, `{"question": "Hi"}`)

	assert.Equal(t, 500, w.Code)
	assert.Equal(t, "OPENAI_API_KEY environment variable is not set.", decodeBody(t, w)["error"])
}

func TestChat_ClientUnavailable(t *testing.T) {
	s := newTestServer(nil, openai.ErrUnavailable)

	w := postChat(s, `{"question": "Hi"}`)

	assert.Equal(t, 500, w.Code)
	assert.Equal(t, "OpenAI client support is not enabled on this server.", decodeBody(t, w)["error"])
}

func TestChat_ClientInitFailure(t *testing.T) {
	s := newTestServer(nil, errors.New("openai: invalid base URL"))

	w := postChat(s, `{"question": "Hi"}`)

	assert.Equal(t, 500, w.Code)
	assert.Equal(t, "Failed to initialize language model.", decodeBody(t, w)["error"])
}

func TestChat_UpstreamFailure(t *testing.T) {
	stub := &stubCompleter{err: errors.New("connection refused")}
	s := newTestServer(stub, nil)

	w := postChat(s, `{"question": "Hi"}`)

	assert.Equal(t, 500, w.Code)
	errMsg := decodeBody(t, w)["error"]
	assert.Contains(t, errMsg, "Failed to retrieve response from OpenAI:")
	assert.Contains(t, errMsg, "connection refused")
}

func TestChat_EmptyUpstreamResponse(t *testing.T) {
	stub := &stubCompleter{err: openai.ErrEmptyResponse}
	s := newTestServer(stub, nil)

	w := postChat(s, `{"question": "Hi"}`)

	assert.Equal(t, 500, w.Code)
	assert.Equal(t, "Empty response from OpenAI.", decodeBody(t, w)["error"])
}

func TestChat_FailureDoesNotAffectNextRequest(t *testing.T) {
	stub := &stubCompleter{err: errors.New("boom")}
	s := newTestServer(stub, nil)

	w := postChat(s, `{"question": "Hi"}`)
	assert.Equal(t, 500, w.Code)

	stub.err = nil
	stub.answer = "recovered"
	w = postChat(s, `{"question": "Hi"}`)
	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "recovered", decodeBody(t, w)["answer"])
}

func TestRequestIDHeader(t *testing.T) {
	s := newTestServer(&stubCompleter{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/health/", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/health/", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w = httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
}
