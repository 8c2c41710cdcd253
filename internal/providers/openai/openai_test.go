package openai

import (
	"encoding/json"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/linggen/linggen-agent/internal/providers"
	"github.com/linggen/linggen-agent/pkg/models"
)

func TestConvertMessages(t *testing.T) {
	tests := []struct {
		name     string
		messages []providers.CompletionMessage
		system   string
		wantLen  int
	}{
		{
			name: "basic text messages",
			messages: []providers.CompletionMessage{
				{Role: "user", Content: "Hello"},
				{Role: "assistant", Content: "Hi there!"},
			},
			system:  "You are a helpful assistant",
			wantLen: 3,
		},
		{
			name: "message with tool calls",
			messages: []providers.CompletionMessage{
				{Role: "user", Content: "What's the weather?"},
				{
					Role: "assistant",
					ToolCalls: []models.ToolCall{
						{ID: "call_123", Name: "get_weather", Args: json.RawMessage(`{"location":"NYC"}`)},
					},
				},
			},
			wantLen: 2,
		},
		{
			name: "message with tool results",
			messages: []providers.CompletionMessage{
				{
					Role:        "tool",
					ToolResults: []models.ToolResult{models.NewSuccessResult("Sunny, 72F")},
				},
			},
			wantLen: 1,
		},
		{
			name: "message with image attachment",
			messages: []providers.CompletionMessage{
				{
					Role:    "user",
					Content: "What's in this image?",
					Attachments: []models.Attachment{
						{MimeType: "image/jpeg", URL: "https://example.com/image.jpg"},
					},
				},
			},
			wantLen: 1,
		},
	}

	p := &Provider{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.convertMessages(tt.messages, tt.system)
			if err != nil {
				t.Fatalf("convertMessages() error = %v", err)
			}
			if len(got) != tt.wantLen {
				t.Errorf("convertMessages() got %d messages, want %d", len(got), tt.wantLen)
			}
		})
	}
}

func TestConvertMessagesToolErrorUsesMessage(t *testing.T) {
	p := &Provider{}
	messages := []providers.CompletionMessage{
		{
			Role:        "tool",
			ToolResults: []models.ToolResult{models.NewErrorResult(models.ErrorKindNotFound, "file not found")},
		},
	}
	got, err := p.convertMessages(messages, "")
	if err != nil {
		t.Fatalf("convertMessages() error = %v", err)
	}
	if len(got) != 1 || got[0].Content != "file not found" {
		t.Fatalf("expected tool message content %q, got %+v", "file not found", got)
	}
}

func TestConvertTools(t *testing.T) {
	p := &Provider{}
	tools := []providers.ToolDefinition{
		{Name: "test_tool", Description: "A test tool", Schema: json.RawMessage(`{"type":"object","properties":{"arg":{"type":"string"}}}`)},
	}

	got := p.convertTools(tools)
	if len(got) != 1 {
		t.Fatalf("convertTools() got %d tools, want 1", len(got))
	}
	if got[0].Function.Name != "test_tool" {
		t.Errorf("convertTools() name = %v, want test_tool", got[0].Function.Name)
	}
}

func TestWrapError(t *testing.T) {
	p := &Provider{}
	apiErr := &openai.APIError{
		HTTPStatusCode: 429,
		Message:        "rate limit exceeded",
		Code:           "rate_limit_error",
	}

	wrapped := p.wrapError(apiErr, "gpt-4o")
	if !providers.IsProviderError(wrapped) {
		t.Fatalf("expected a ProviderError, got %T", wrapped)
	}
	if !providers.IsRetryable(wrapped) {
		t.Error("expected 429 to classify as retryable")
	}
}

func TestCompleteWithoutAPIKeyFails(t *testing.T) {
	p := New("")
	_, err := p.Complete(nil, &providers.CompletionRequest{Model: "gpt-4o"}) //nolint:staticcheck
	if err == nil {
		t.Fatal("expected error when API key is not configured")
	}
}

func TestModelsNonEmpty(t *testing.T) {
	p := New("test-key")
	if len(p.Models()) == 0 {
		t.Fatal("expected at least one model")
	}
	if p.Name() != "openai" {
		t.Errorf("Name() = %q, want openai", p.Name())
	}
	if !p.SupportsTools() {
		t.Error("expected SupportsTools() to be true")
	}
}
