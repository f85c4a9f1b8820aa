package answer

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are an AI meeting assistant. Your task is to answer questions about meetings based on the provided transcript.

Guidelines:
- Be concise and accurate
- Quote relevant parts of the transcript when applicable
- If the answer is not in the transcript, say so clearly
- Extract action items, decisions, and key points when asked
- Identify speakers if mentioned in the transcript`

// Fixed questions for the finalization prompts. Summary, agenda, and action
// items are ordinary questions against the transcript, not separate code paths.
const (
	SummaryQuestion     = "Please provide a comprehensive summary of this meeting including key discussion points, decisions made, and any action items."
	AgendaQuestion      = "What was the agenda of this meeting? List the main topics discussed."
	ActionItemsQuestion = "Extract all action items, tasks, and follow-ups mentioned in this meeting. Format as a list with responsible persons if mentioned."
)

// BuildMessages assembles the chat messages for one question about a
// transcript. Briefing documents, when present, are appended as additional
// context after the transcript.
func BuildMessages(transcript string, documents []string, question string) []Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Meeting Transcript:\n%s\n", transcript)

	if len(documents) > 0 {
		b.WriteString("\nBriefing documents provided for this meeting:\n")
		for i, doc := range documents {
			fmt.Fprintf(&b, "\n--- Document %d ---\n%s\n", i+1, doc)
		}
	}

	fmt.Fprintf(&b, "\nQuestion: %s\n\nPlease provide a clear and helpful answer based on the transcript.", question)

	return []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: b.String()},
	}
}
