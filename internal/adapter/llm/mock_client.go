package llm

import (
	"context"
	"fmt"
	"time"
)

// MockClient is a scriptable implementation of LLMClient for tests and dev.
// When Respond is set it takes over; otherwise a canned text reply is
// generated from the last user message.
type MockClient struct {
	Respond func(req *ChatCompletionRequest) (*ChatCompletionResponse, error)
}

// NewMockClient creates a new mock LLM client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Ensure MockClient implements LLMClient interface.
var _ LLMClient = (*MockClient)(nil)

// CreateChatCompletion returns a scripted or canned response.
func (m *MockClient) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if m.Respond != nil {
		return m.Respond(req)
	}

	var lastUserMessage string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			lastUserMessage = req.Messages[i].Content
			break
		}
	}

	content := "[MOCK] This is a mock response from the LLM client."
	if lastUserMessage != "" {
		content = fmt.Sprintf("[MOCK] Received your message: %q.", truncate(lastUserMessage, 100))
	}

	return &ChatCompletionResponse{
		ID:      fmt.Sprintf("mock-chatcmpl-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []Choice{
			{
				Index: 0,
				Message: &ChatMessage{
					Role:    "assistant",
					Content: content,
				},
				FinishReason: "stop",
			},
		},
		Usage: &Usage{
			PromptTokens:     len(lastUserMessage) / 4,
			CompletionTokens: len(content) / 4,
			TotalTokens:      (len(lastUserMessage) + len(content)) / 4,
		},
	}, nil
}

// truncate truncates a string to the given length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
