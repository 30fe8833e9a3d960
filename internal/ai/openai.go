package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/samber/lo"
	openai "github.com/sashabaranov/go-openai"
)

type OpenAIProvider struct {
	client *openai.Client
	Model  string
}

func NewOpenAIProvider(apiKey, baseURL, model string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(cfg),
		Model:  model,
	}
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	return lo.Map(messages, func(m Message, _ int) openai.ChatCompletionMessage {
		return openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	})
}

func (p *OpenAIProvider) request(messages []Message, opts Options) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:       p.Model,
		Messages:    toOpenAIMessages(messages),
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
}

func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message, opts Options) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.request(messages, opts))
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty response")
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", errors.New("openai: empty completion")
	}
	return content, nil
}

// StreamChat streams assistant content chunks.
func (p *OpenAIProvider) StreamChat(ctx context.Context, messages []Message, opts Options) (<-chan string, <-chan error) {
	chunks := make(chan string, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		req := p.request(messages, opts)
		req.Stream = true

		stream, err := p.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			errs <- fmt.Errorf("openai: %w", err)
			return
		}
		defer stream.Close()

		for {
			msg, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				errs <- fmt.Errorf("openai: %w", err)
				return
			}
			for _, c := range msg.Choices {
				if c.Delta.Content == "" {
					continue
				}
				select {
				case chunks <- c.Delta.Content:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}
		}
	}()

	return chunks, errs
}

func (p *OpenAIProvider) CallTools(ctx context.Context, messages []Message, tools []Tool, opts Options) (Completion, error) {
	req := p.request(messages, opts)
	req.Tools = lo.Map(tools, func(t Tool, _ int) openai.Tool {
		return openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	})

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) != 1 {
		return nil, fmt.Errorf("openai: unexpected choices len=%d", len(resp.Choices))
	}

	msg := resp.Choices[0].Message
	for _, call := range msg.ToolCalls {
		if call.Type != "" && call.Type != openai.ToolTypeFunction {
			continue
		}
		return StructuredCall{Name: call.Function.Name, Arguments: call.Function.Arguments}, nil
	}
	return FreeText{Content: msg.Content}, nil
}
