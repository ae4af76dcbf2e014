package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/mindcanvas/brainbase/internal/domain"
	"github.com/mindcanvas/brainbase/internal/telemetry"
)

// PromptMessage is one message of a completion request.
type PromptMessage struct {
	Role    string
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// CompletionClient runs a single chat completion. CompleteJSON constrains
// the model to emit a JSON object.
type CompletionClient interface {
	Complete(ctx context.Context, messages []PromptMessage) (string, error)
	CompleteJSON(ctx context.Context, messages []PromptMessage) (string, error)
}

const decisionSystemPrompt = `You route user questions for a knowledge assistant.
Given the user's question and a snippet of the internal knowledge retrieved for it,
classify the question into exactly one action:

- "KNOWLEDGE_ONLY": the retrieved snippet is enough to answer the question.
- "WEB_SEARCH": the snippet is empty or the question needs external, current, or
  very specific information. Provide "search_query": a focused web search query.
- "CLARIFY": the question is too ambiguous to route. Provide
  "clarification_question": what to ask the user.
- "CONVERSATION_SUMMARY": the user explicitly asks to summarize this conversation.
- "KNOWLEDGE_SUMMARY": the user explicitly asks to summarize their uploaded or
  saved material.

Respond with a JSON object:
{"action": "...", "reason": "...", "search_query": "...", "clarification_question": "..."}
Leave "search_query" and "clarification_question" empty unless the action requires them.`

type decisionPayload struct {
	Action                string `json:"action"`
	Reason                string `json:"reason"`
	SearchQuery           string `json:"search_query"`
	ClarificationQuestion string `json:"clarification_question"`
}

// DecisionEngine classifies each query into one of the five answering
// strategies.
type DecisionEngine struct {
	llm CompletionClient
}

func NewDecisionEngine(llm CompletionClient) *DecisionEngine {
	return &DecisionEngine{llm: llm}
}

// Decide is a total function: it always yields exactly one valid
// decision. A provider failure or malformed reply falls back to
// WEB_SEARCH with the raw query, since under-answering beats crashing.
func (e *DecisionEngine) Decide(ctx context.Context, query, knowledgeSnippet string) domain.Decision {
	ctx, span := telemetry.StartSpan(ctx, "DecisionEngine.Decide", telemetry.SpanAttributes{
		Operation: "decide",
	})
	defer span.End()

	raw, err := e.llm.CompleteJSON(ctx, []PromptMessage{
		{Role: RoleSystem, Content: decisionSystemPrompt},
		{Role: RoleUser, Content: buildDecisionInput(query, knowledgeSnippet)},
	})
	if err != nil {
		log.Printf("decision classification failed, falling back to web search: %v", err)
		return webSearchFallback(query, "classification call failed")
	}

	var payload decisionPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		log.Printf("decision response was not valid JSON, falling back to web search: %v", err)
		return webSearchFallback(query, "classification response malformed")
	}

	action, err := domain.ParseAction(strings.TrimSpace(payload.Action))
	if err != nil {
		log.Printf("decision response carried unknown action %q, falling back to web search", payload.Action)
		return webSearchFallback(query, "classification produced unknown action")
	}

	decision := domain.Decision{
		Action: action,
		Reason: strings.TrimSpace(payload.Reason),
	}
	switch action {
	case domain.ActionWebSearch:
		decision.SearchQuery = strings.TrimSpace(payload.SearchQuery)
		if decision.SearchQuery == "" {
			decision.SearchQuery = query
		}
	case domain.ActionClarify:
		decision.ClarificationQuestion = strings.TrimSpace(payload.ClarificationQuestion)
		if decision.ClarificationQuestion == "" {
			// A CLARIFY without a question is unusable; route to web
			// search instead of dead-ending the turn.
			return webSearchFallback(query, "clarification question missing")
		}
	}

	return decision
}

func buildDecisionInput(query, snippet string) string {
	if strings.TrimSpace(snippet) == "" {
		snippet = "(no internal knowledge found)"
	}
	return fmt.Sprintf("Question:\n%s\n\nRetrieved knowledge snippet:\n%s", query, snippet)
}

func webSearchFallback(query, reason string) domain.Decision {
	return domain.Decision{
		Action:      domain.ActionWebSearch,
		Reason:      reason,
		SearchQuery: query,
	}
}
