// Package diagnostics produces short LLM-written explanations for
// audit issues. Annotation is strictly best effort: a slow, failing or
// unconfigured model never fails an audit, it just leaves the fallback
// text in place.
package diagnostics

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/seolytics/aeo-audit/internal/audit"
)

// AnthropicGenerator asks Claude for a concise, owner-facing
// explanation of one issue. Implements audit.DiagnosticGenerator.
type AnthropicGenerator struct {
	client   anthropic.Client
	model    string
	maxWords int
}

// NewAnthropicGenerator builds a generator for the given model. The key
// comes from configuration, not the environment, so tests can inject
// fakes at the interface instead.
func NewAnthropicGenerator(apiKey, model string, maxWords int) *AnthropicGenerator {
	if maxWords <= 0 {
		maxWords = 60
	}
	return &AnthropicGenerator{
		client:   anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:    model,
		maxWords: maxWords,
	}
}

func (g *AnthropicGenerator) Generate(ctx context.Context, req audit.DiagnosticRequest) (string, error) {
	prompt := g.buildPrompt(req)
	msg, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: int64(g.maxWords * 4),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}
	text := strings.TrimSpace(textContent(msg.Content))
	if text == "" {
		return "", fmt.Errorf("anthropic: empty completion")
	}
	return text, nil
}

// textContent concatenates the text blocks of a completion; tool-use
// and thinking blocks carry no prose and are skipped.
func textContent(blocks []anthropic.ContentBlockUnion) string {
	var sb strings.Builder
	for _, block := range blocks {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}

func (g *AnthropicGenerator) buildPrompt(req audit.DiagnosticRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are helping a site owner fix an issue found during a website audit.\n")
	fmt.Fprintf(&sb, "Issue: %s\n", req.Title)
	fmt.Fprintf(&sb, "Category: %s\n", req.Category)
	fmt.Fprintf(&sb, "Detail: %s\n", req.Description)
	if req.Impact != "" {
		fmt.Fprintf(&sb, "Impact: %s\n", req.Impact)
	}
	if req.Snippet != "" {
		fmt.Fprintf(&sb, "Relevant HTML:\n%s\n", req.Snippet)
	}
	fmt.Fprintf(&sb, "Explain in plain language, in at most %d words, why this matters and the single most effective fix. No preamble.", g.maxWords)
	return sb.String()
}
