package ai

import "context"

// Tool describes one callable function offered to the model. Parameters is a JSON schema.
type Tool struct {
	Name        string
	Description string
	Parameters  any
}

// Completion is the result of a tool-enabled request: either a StructuredCall or FreeText.
type Completion interface {
	completion()
}

type StructuredCall struct {
	Name      string
	Arguments string // raw JSON object
}

type FreeText struct {
	Content string
}

func (StructuredCall) completion() {}
func (FreeText) completion()       {}

// ToolCaller is an optional interface for providers that support function/tool calling.
type ToolCaller interface {
	CallTools(ctx context.Context, messages []Message, tools []Tool, opts Options) (Completion, error)
}
