package rag

import (
	"fmt"
	"strings"

	"github.com/lmoretti/aide/docstore"
	"github.com/lmoretti/aide/llm"
)

const assistantSystemPrompt = "You are a helpful document assistant. Answer questions using the " +
	"provided document excerpts. If the excerpts do not contain enough information to answer, " +
	"say so instead of guessing."

func answerMessages(ws *workflowState) []llm.Message {
	var messages []llm.Message
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: assistantSystemPrompt})
	if ws.contextInfo != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: ws.contextInfo})
	}
	messages = append(messages, llm.Message{
		Role:    llm.RoleUser,
		Content: answerPrompt(ws.query, ws.results),
	})
	return messages
}

func answerPrompt(query string, results []docstore.SearchResult) string {
	var sb strings.Builder
	sb.WriteString("Document excerpts:\n\n")
	if len(results) == 0 {
		sb.WriteString("(no relevant content was retrieved)\n")
	}
	for _, result := range results {
		sb.WriteString(fmt.Sprintf("[%s]\n%s\n\n", result.DocumentName, result.Text))
	}
	sb.WriteString(fmt.Sprintf("Question: %s\n\nAnswer based on the excerpts above.", query))
	return sb.String()
}

func directMessages(ws *workflowState) []llm.Message {
	var messages []llm.Message
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: assistantSystemPrompt})
	if ws.contextInfo != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: ws.contextInfo})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: ws.query})
	return messages
}

func rewritePrompt(query string) string {
	return fmt.Sprintf("The following search query returned no relevant results from a document "+
		"collection. Rewrite it to be more specific and more likely to match indexed content. "+
		"Reply with the rewritten query only, no explanation.\n\nQuery: %s", query)
}
