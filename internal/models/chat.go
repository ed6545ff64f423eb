package models

import (
	"errors"
	"strings"
)

// DefaultModel is used when the caller does not pick a model.
const DefaultModel = "gpt-4o-mini"

// ErrMissingQuestion is returned when the question field is absent,
// not a string, or blank after trimming.
var ErrMissingQuestion = errors.New("Field 'question' is required and must be a non-empty string.")

// ChatRequest is the validated inbound chat payload. It lives for a
// single request and is discarded after the upstream call.
type ChatRequest struct {
	Question     string
	Model        string
	SystemPrompt string
}

// ParseChatRequest validates a decoded JSON body into a ChatRequest.
// Non-object bodies are treated as empty, which then fails on the
// missing question.
func ParseChatRequest(data map[string]interface{}) (*ChatRequest, error) {
	question, _ := data["question"].(string)
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrMissingQuestion
	}

	model, _ := data["model"].(string)
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}

	req := &ChatRequest{
		Question: question,
		Model:    model,
	}

	// system_prompt passes through only when it is actually a string
	if sp, ok := data["system_prompt"].(string); ok {
		req.SystemPrompt = sp
	}

	return req, nil
}

// Messages builds the outbound message sequence: an optional system
// message followed by the user question.
func (r *ChatRequest) Messages() []ChatCompletionMessage {
	var msgs []ChatCompletionMessage
	if strings.TrimSpace(r.SystemPrompt) != "" {
		msgs = append(msgs, ChatCompletionMessage{Role: "system", Content: r.SystemPrompt})
	}
	msgs = append(msgs, ChatCompletionMessage{Role: "user", Content: r.Question})
	return msgs
}
