// Package openai implements providers.LLMProvider against OpenAI's chat
// completions API via github.com/sashabaranov/go-openai.
package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/linggen/linggen-agent/internal/providers"
	"github.com/linggen/linggen-agent/pkg/models"
)

// Provider implements providers.LLMProvider against OpenAI chat models.
type Provider struct {
	client     *openai.Client
	maxRetries int
	retryDelay time.Duration
}

// New creates a Provider. An empty apiKey is tolerated so the provider can
// be registered but disabled (credential resolution happens at config load
// time); Complete fails fast in that case rather than at registration.
func New(apiKey string) *Provider {
	p := &Provider{maxRetries: 3, retryDelay: time.Second}
	if apiKey != "" {
		p.client = openai.NewClient(apiKey)
	}
	return p
}

// NewWithBaseURL creates a Provider against an OpenAI-compatible chat
// completions endpoint other than OpenAI's own — Ollama's `/v1` surface is
// the motivating case (cmd/linggen's `--ollama-url` flag). apiKey may be
// empty; most local Ollama installs don't require one.
func NewWithBaseURL(apiKey, baseURL string) *Provider {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &Provider{client: openai.NewClientWithConfig(cfg), maxRetries: 3, retryDelay: time.Second}
}

func (p *Provider) Name() string { return "openai" }

func (p *Provider) Models() []providers.Model {
	return []providers.Model{
		{ID: "gpt-4o", Name: "GPT-4o", ContextSize: 128000, SupportsVision: true},
		{ID: "gpt-4-turbo", Name: "GPT-4 Turbo", ContextSize: 128000, SupportsVision: true},
		{ID: "gpt-3.5-turbo", Name: "GPT-3.5 Turbo", ContextSize: 16385, SupportsVision: false},
		{ID: "gpt-4", Name: "GPT-4", ContextSize: 8192, SupportsVision: false},
	}
}

func (p *Provider) SupportsTools() bool { return true }

func (p *Provider) Complete(ctx context.Context, req *providers.CompletionRequest) (<-chan *providers.CompletionChunk, error) {
	if p.client == nil {
		return nil, errors.New("openai: API key not configured")
	}

	messages, err := p.convertMessages(req.Messages, req.System)
	if err != nil {
		return nil, fmt.Errorf("openai: failed to convert messages: %w", err)
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   true,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = p.convertTools(req.Tools)
	}

	var stream *openai.ChatCompletionStream
	var lastErr error

	for attempt := 0; attempt < p.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.retryDelay * time.Duration(attempt)):
			}
		}

		stream, lastErr = p.client.CreateChatCompletionStream(ctx, chatReq)
		if lastErr == nil {
			break
		}
		wrapped := p.wrapError(lastErr, req.Model)
		if !providers.IsRetryable(wrapped) {
			return nil, wrapped
		}
		lastErr = wrapped
	}
	if lastErr != nil {
		return nil, fmt.Errorf("openai: max retries exceeded: %w", lastErr)
	}

	chunks := make(chan *providers.CompletionChunk)
	go p.processStream(ctx, stream, chunks, req.Model)

	return chunks, nil
}

func (p *Provider) processStream(ctx context.Context, stream *openai.ChatCompletionStream, chunks chan<- *providers.CompletionChunk, model string) {
	defer close(chunks)
	defer stream.Close()

	toolCalls := make(map[int]*models.ToolCall)
	var inputTokens, outputTokens int

	flushToolCalls := func() {
		for _, tc := range toolCalls {
			if tc.ID != "" && tc.Name != "" {
				chunks <- &providers.CompletionChunk{ToolCall: tc}
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			chunks <- &providers.CompletionChunk{Error: ctx.Err()}
			return
		default:
		}

		response, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				flushToolCalls()
				chunks <- &providers.CompletionChunk{Done: true, InputTokens: inputTokens, OutputTokens: outputTokens}
				return
			}
			chunks <- &providers.CompletionChunk{Error: p.wrapError(err, model)}
			return
		}

		if response.Usage != nil {
			inputTokens = response.Usage.PromptTokens
			outputTokens = response.Usage.CompletionTokens
		}

		if len(response.Choices) == 0 {
			continue
		}
		delta := response.Choices[0].Delta

		if delta.Content != "" {
			chunks <- &providers.CompletionChunk{Text: delta.Content}
		}

		for _, tc := range delta.ToolCalls {
			index := 0
			if tc.Index != nil {
				index = *tc.Index
			}
			if toolCalls[index] == nil {
				toolCalls[index] = &models.ToolCall{}
			}
			if tc.ID != "" {
				toolCalls[index].ID = tc.ID
			}
			if tc.Function.Name != "" {
				toolCalls[index].Name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				toolCalls[index].Args = json.RawMessage(string(toolCalls[index].Args) + tc.Function.Arguments)
			}
		}

		if response.Choices[0].FinishReason == openai.FinishReasonToolCalls {
			flushToolCalls()
			toolCalls = make(map[int]*models.ToolCall)
		}
	}
}

func (p *Provider) convertMessages(messages []providers.CompletionMessage, system string) ([]openai.ChatCompletionMessage, error) {
	result := make([]openai.ChatCompletionMessage, 0, len(messages)+1)

	if system != "" {
		result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}

	for _, msg := range messages {
		switch msg.Role {
		case "tool":
			for _, tr := range msg.ToolResults {
				result = append(result, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    resultText(tr),
					ToolCallID: tr.ToolCallID,
				})
			}

		case "assistant":
			oaiMsg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: msg.Content}
			if len(msg.ToolCalls) > 0 {
				oaiMsg.ToolCalls = make([]openai.ToolCall, len(msg.ToolCalls))
				for i, tc := range msg.ToolCalls {
					oaiMsg.ToolCalls[i] = openai.ToolCall{
						ID:   tc.ID,
						Type: openai.ToolTypeFunction,
						Function: openai.FunctionCall{
							Name:      tc.Name,
							Arguments: string(tc.Args),
						},
					}
				}
			}
			result = append(result, oaiMsg)

		default: // user, system (mid-conversation)
			if len(msg.Attachments) == 0 {
				result = append(result, openai.ChatCompletionMessage{Role: msg.Role, Content: msg.Content})
				continue
			}

			parts := make([]openai.ChatMessagePart, 0, len(msg.Attachments)+1)
			if msg.Content != "" {
				parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: msg.Content})
			}
			for _, att := range msg.Attachments {
				url := att.URL
				if url == "" && len(att.Data) > 0 {
					url = "data:" + att.MimeType + ";base64," + base64.StdEncoding.EncodeToString(att.Data)
				}
				if url == "" {
					continue
				}
				parts = append(parts, openai.ChatMessagePart{
					Type:     openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{URL: url, Detail: openai.ImageURLDetailAuto},
				})
			}
			result = append(result, openai.ChatCompletionMessage{Role: msg.Role, MultiContent: parts})
		}
	}

	return result, nil
}

// resultText renders a models.ToolResult as the plain text OpenAI's tool
// message content expects, regardless of which tagged variant produced it.
func resultText(r models.ToolResult) string {
	if r.IsError() {
		return r.Message
	}
	switch r.Kind {
	case models.ToolResultFileContent:
		return r.Content
	case models.ToolResultCommandOutput:
		if r.Stderr != "" {
			return r.Stdout + "\n" + r.Stderr
		}
		return r.Stdout
	case models.ToolResultSuccess:
		return r.Text
	default:
		payload, _ := json.Marshal(r)
		return string(payload)
	}
}

func (p *Provider) convertTools(tools []providers.ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, tool := range tools {
		var schema map[string]any
		if err := json.Unmarshal(tool.Schema, &schema); err != nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  schema,
			},
		}
	}
	return result
}

func (p *Provider) wrapError(err error, model string) error {
	if err == nil {
		return nil
	}
	if providers.IsProviderError(err) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		pe := providers.NewProviderError("openai", model, err).WithStatus(apiErr.HTTPStatusCode)
		if apiErr.Code != nil {
			if code, ok := apiErr.Code.(string); ok {
				pe = pe.WithCode(code)
			}
		}
		return pe
	}

	return providers.NewProviderError("openai", model, err)
}
