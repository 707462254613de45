package diagnostics

import (
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/require"

	"github.com/seolytics/aeo-audit/internal/audit"
)

func TestTextContentKeepsOnlyTextBlocks(t *testing.T) {
	t.Parallel()

	blocks := []anthropic.ContentBlockUnion{
		{Type: "text", Text: "Add a descriptive title. "},
		{Type: "tool_use"},
		{Type: "text", Text: "Keep it under 60 characters."},
	}
	require.Equal(t, "Add a descriptive title. Keep it under 60 characters.", textContent(blocks))
	require.Empty(t, textContent(nil))
}

func TestBuildPromptIncludesIssueFields(t *testing.T) {
	t.Parallel()

	g := NewAnthropicGenerator("key", "claude-sonnet-4-5", 40)
	prompt := g.buildPrompt(audit.DiagnosticRequest{
		Title:       "Missing page title",
		Description: "No title element.",
		Impact:      "Pages without titles are rarely cited.",
		Category:    audit.CategoryContent,
	})

	require.True(t, strings.Contains(prompt, "Missing page title"))
	require.True(t, strings.Contains(prompt, "No title element."))
	require.True(t, strings.Contains(prompt, "Pages without titles are rarely cited."))
	require.True(t, strings.Contains(prompt, "at most 40 words"))
	// Snippet is optional and must not leave an empty section behind.
	require.False(t, strings.Contains(prompt, "Relevant HTML"))
}
