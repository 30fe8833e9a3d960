package intent

import (
	"context"
	"time"

	"github.com/suPer8Hu/careerbot/internal/ai"
	"github.com/suPer8Hu/careerbot/internal/logx"
	"github.com/suPer8Hu/careerbot/internal/metrics"
)

const (
	SourceModel = "model"
	SourceRules = "rules"
)

type Result struct {
	Intent Intent
	Source string
}

// Classifier asks the model to pick a tool and falls back to ClassifyRules whenever the
// model is absent, fails, answers in free text or returns unusable arguments.
// It keeps no per-call state and is safe to share.
type Classifier struct {
	caller      ai.ToolCaller
	temperature float32
	timeout     time.Duration
}

// NewClassifier accepts a nil caller, in which case only the rules are used.
func NewClassifier(caller ai.ToolCaller, temperature float32) *Classifier {
	return &Classifier{caller: caller, temperature: temperature, timeout: 20 * time.Second}
}

func (c *Classifier) Classify(ctx context.Context, utterance string, profile map[string]any) Result {
	res := c.classify(ctx, utterance, profile)
	metrics.IntentsTotal.WithLabelValues(string(res.Intent.Kind()), res.Source).Inc()
	return res
}

func (c *Classifier) classify(ctx context.Context, utterance string, profile map[string]any) Result {
	if c.caller == nil {
		return c.fallback(utterance, "no_model")
	}

	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	msgs := []ai.Message{
		{Role: ai.RoleSystem, Content: SystemPrompt(profile)},
		{Role: ai.RoleUser, Content: utterance},
	}
	completion, err := c.caller.CallTools(cctx, msgs, Tools(), ai.Options{Temperature: c.temperature, MaxTokens: 300})
	if err != nil {
		logx.Warn().Err(err).Msg("intent: model classification failed, using rules")
		return c.fallback(utterance, "provider_error")
	}

	switch out := completion.(type) {
	case ai.StructuredCall:
		in, err := FromCall(out.Name, out.Arguments, utterance)
		if err != nil {
			logx.Warn().Err(err).Str("tool", out.Name).Msg("intent: unusable tool call, using rules")
			return c.fallback(utterance, "invalid_call")
		}
		return guardDisclosure(in, utterance)
	case ai.FreeText:
		return c.fallback(utterance, "free_text")
	default:
		return c.fallback(utterance, "unknown_completion")
	}
}

func (c *Classifier) fallback(utterance, reason string) Result {
	metrics.ClassifierFallbacks.WithLabelValues(reason).Inc()
	return Result{Intent: ClassifyRules(utterance), Source: SourceRules}
}

// guardDisclosure keeps a model-chosen small-talk tag from swallowing a disclosure the
// rules can see.
func guardDisclosure(in Intent, utterance string) Result {
	switch in.(type) {
	case Greeting, Goodbye, Confirmation, Rejection:
		if info, ok := matchPersonalInfo(utterance); ok {
			return Result{Intent: info, Source: SourceRules}
		}
	}
	return Result{Intent: in, Source: SourceModel}
}
