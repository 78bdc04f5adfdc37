package ai

import (
	"context"
	"fmt"
	"strings"

	"studyhive/pkg/domain"
)

const (
	summarySystemPrompt = "You are a study assistant. You summarize lecture " +
		"transcripts for students. Be accurate and keep the student's time in mind."
	answerSystemPrompt = "You are a study assistant answering follow-up " +
		"questions about a video the student watched. Answer from the " +
		"transcript; say so when the transcript does not cover the question."

	// Long transcripts are truncated before prompting. Providers enforce
	// their own context limits; this keeps requests predictable.
	maxPromptTranscript = 24000

	// Only the tail of the chat log is replayed as context.
	maxHistoryEntries = 12
)

// Summary is the pair of summaries stored on a session.
type Summary struct {
	Short    string
	Detailed string
}

// StudyAssistant produces transcript summaries and answers follow-up
// questions using a TextGenerator.
type StudyAssistant struct {
	generator TextGenerator
}

// NewStudyAssistant wraps a generator.
func NewStudyAssistant(generator TextGenerator) *StudyAssistant {
	return &StudyAssistant{generator: generator}
}

// Summarize produces the short and detailed summaries for a transcript.
func (a *StudyAssistant) Summarize(ctx context.Context, title, transcript string) (Summary, error) {
	transcript = clipTranscript(transcript)
	if transcript == "" {
		return Summary{}, fmt.Errorf("transcript required")
	}
	short, err := a.generator.GenerateText(ctx, summarySystemPrompt,
		fmt.Sprintf("Summarize this video in 2-3 sentences.\n\nTitle: %s\n\nTranscript:\n%s", title, transcript))
	if err != nil {
		return Summary{}, fmt.Errorf("short summary: %w", err)
	}
	detailed, err := a.generator.GenerateText(ctx, summarySystemPrompt,
		fmt.Sprintf("Write a detailed study summary of this video with the key points and any definitions or formulas.\n\nTitle: %s\n\nTranscript:\n%s", title, transcript))
	if err != nil {
		return Summary{}, fmt.Errorf("detailed summary: %w", err)
	}
	return Summary{Short: short, Detailed: detailed}, nil
}

// Answer responds to a follow-up question using the transcript and the
// tail of the prior chat log as context.
func (a *StudyAssistant) Answer(ctx context.Context, session domain.YouTubeSession, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("question required")
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Video: %s\n\nTranscript:\n%s\n", session.VideoTitle, clipTranscript(session.Transcript))
	history := session.ChatHistory
	if len(history) > maxHistoryEntries {
		history = history[len(history)-maxHistoryEntries:]
	}
	if len(history) > 0 {
		sb.WriteString("\nConversation so far:\n")
		for _, entry := range history {
			fmt.Fprintf(&sb, "%s: %s\n", entry.Role, entry.Content)
		}
	}
	fmt.Fprintf(&sb, "\nQuestion: %s", question)

	answer, err := a.generator.GenerateText(ctx, answerSystemPrompt, sb.String())
	if err != nil {
		return "", fmt.Errorf("answer question: %w", err)
	}
	return answer, nil
}

func clipTranscript(transcript string) string {
	transcript = strings.TrimSpace(transcript)
	if len(transcript) > maxPromptTranscript {
		return transcript[:maxPromptTranscript]
	}
	return transcript
}
