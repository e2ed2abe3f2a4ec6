package pipeline

import (
	"fmt"
	"strings"
)

const promptHeader = "You are a helpful legal assistant chatbot. " +
	"Use the CONTEXT from the documents to answer questions accurately."

const promptFooter = "Provide a detailed, conversational answer based on the context. " +
	"Cite sources using [src:i] format. Be helpful and natural in your responses. " +
	"If referring to previous questions, acknowledge them. " +
	"Include relevant legal disclaimers when appropriate."

// buildPrompt assembles the model prompt from the retrieved context, the
// trailing conversation window, and the current question.
//
// history includes the current question as its final turn; that turn is
// dropped from the conversation block because the question appears on its
// own line.
func buildPrompt(query, contextBlock string, history []ChatTurn, cfg Config) string {
	var b strings.Builder
	b.WriteString(promptHeader)
	b.WriteString("\n\nCONTEXT FROM DOCUMENTS:\n")
	b.WriteString(contextBlock)
	b.WriteString(historyBlock(history, cfg.HistoryWindow, cfg.HistoryCharLimit))
	b.WriteString("\n\nCURRENT QUESTION: ")
	b.WriteString(query)
	b.WriteString("\n\n")
	b.WriteString(promptFooter)
	return b.String()
}

// historyBlock renders the last window messages, minus the current one, each
// truncated to charLimit characters. Empty when there is no prior turn.
func historyBlock(history []ChatTurn, window, charLimit int) string {
	if len(history) < 2 {
		return ""
	}
	recent := history
	if len(recent) > window {
		recent = recent[len(recent)-window:]
	}
	recent = recent[:len(recent)-1]

	lines := make([]string, len(recent))
	for i, turn := range recent {
		lines[i] = fmt.Sprintf("%s: %s", strings.ToUpper(turn.Role), truncateRunes(turn.Content, charLimit))
	}
	return "\n\nPREVIOUS CONVERSATION:\n" + strings.Join(lines, "\n") + "\n"
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
