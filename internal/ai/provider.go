package ai

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options are the sampling knobs every call site passes explicitly.
type Options struct {
	Temperature float32
	MaxTokens   int
}

type Provider interface {
	Chat(ctx context.Context, messages []Message, opts Options) (string, error)
}

// ChatStream returns the provider's fragment stream when it supports one, otherwise
// it runs a blocking Chat and emits the full text as a single fragment.
func ChatStream(ctx context.Context, p Provider, messages []Message, opts Options) (<-chan string, <-chan error) {
	if sp, ok := p.(StreamProvider); ok {
		return sp.StreamChat(ctx, messages, opts)
	}

	chunks := make(chan string, 1)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)

		text, err := p.Chat(ctx, messages, opts)
		if err != nil {
			errs <- err
			return
		}
		if text != "" {
			chunks <- text
		}
	}()
	return chunks, errs
}
