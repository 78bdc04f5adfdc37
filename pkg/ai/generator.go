// Package ai provides the text-generation clients behind the video study
// assistant: transcript summarization and follow-up question answering.
package ai

import "context"

// TextGenerator generates text from a system prompt and user prompt.
// Both providers (Ollama, OpenAI-compatible) implement this interface.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
