package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fieldline/assistant/internal/adapter/llm"
	"github.com/fieldline/assistant/internal/planner"
)

const systemPrompt = "You are an assistant for a field-service business. " +
	"You can look up jobs, invoices, quotes and reminders with the tools " +
	"provided. Keep answers short and concrete. Never invent ids."

// buildLLMMessages assembles the fallback conversation: system prompt,
// recent transcript, then the new user message. The transcript comes back
// oldest first so the model reads it in order.
func (s *Service) buildLLMMessages(ctx context.Context, id Identity, message string) ([]llm.ChatMessage, error) {
	history, err := s.store.GetChatMessages(ctx, id.BusinessID, id.UserID, s.config.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("load chat history: %w", err)
	}

	messages := make([]llm.ChatMessage, 0, len(history)+2)
	messages = append(messages, llm.ChatMessage{Role: "system", Content: systemPrompt})
	for _, msg := range history {
		if msg.Content == message && msg.Role == "user" {
			// The just-persisted turn is appended explicitly below.
			continue
		}
		messages = append(messages, llm.ChatMessage{Role: msg.Role, Content: msg.Content})
	}
	messages = append(messages, llm.ChatMessage{Role: "user", Content: message})
	return messages, nil
}

func (s *Service) complete(ctx context.Context, messages []llm.ChatMessage) (*llm.ChatCompletionResponse, error) {
	req := &llm.ChatCompletionRequest{
		Model:    s.config.LLMModel,
		Messages: messages,
		Tools:    s.llmTools(),
	}
	return s.llmClient.CreateChatCompletion(ctx, req)
}

// llmTools renders the registry catalog in the OpenAI tool-calling shape.
func (s *Service) llmTools() []llm.Tool {
	descriptors := s.registry.List()
	tools := make([]llm.Tool, 0, len(descriptors))
	for _, d := range descriptors {
		tools = append(tools, llm.Tool{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Schema,
			},
		})
	}
	return tools
}

func firstChoice(resp *llm.ChatCompletionResponse) *llm.ChatMessage {
	if resp == nil || len(resp.Choices) == 0 {
		return nil
	}
	return resp.Choices[0].Message
}

// runToolCall executes one model-requested tool call and renders the
// outcome as a tool-role message. Failures go back to the model as text so
// it can explain them to the user.
func (s *Service) runToolCall(ctx context.Context, ec planner.ExecContext, call llm.ToolCall) llm.ChatMessage {
	result, err := s.registry.Execute(ctx, call.Function.Name, json.RawMessage(call.Function.Arguments), ec)
	content := string(result)
	if err != nil {
		payload, _ := json.Marshal(map[string]string{"error": err.Error()})
		content = string(payload)
	}
	return llm.ChatMessage{
		Role:       "tool",
		Content:    content,
		ToolCallID: call.ID,
	}
}
