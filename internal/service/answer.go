package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/mindcanvas/brainbase/internal/domain"
	"github.com/mindcanvas/brainbase/internal/telemetry"
)

const answerSystemPrompt = `You are the assistant for a personal knowledge canvas. The user keeps
notes, documents, and to-dos there, and you answer questions about them.

Rules:
- Ground every factual claim in the provided context. Do not invent
  facts that the context does not support.
- If the context is insufficient to answer, say so plainly and tell the
  user what is missing. Do not guess.
- Conversation history is provided for continuity only. Treat it as a
  source of facts only when the user explicitly asks you to summarize
  the conversation.
- Answer in the user's language. Keep the tone direct and helpful.`

const noContextPlaceholder = "(no context available)"

// SynthesisInput carries everything the synthesizer needs for one answer.
type SynthesisInput struct {
	Question         string
	Decision         domain.Decision
	KnowledgeContext string
	WebContext       string
	History          []domain.ChatTurn
}

// Synthesizer produces the final grounded answer with a single
// completion call.
type Synthesizer struct {
	llm CompletionClient
}

func NewSynthesizer(llm CompletionClient) *Synthesizer {
	return &Synthesizer{llm: llm}
}

// Synthesize builds the grounded prompt and returns the model's answer
// verbatim.
func (s *Synthesizer) Synthesize(ctx context.Context, input SynthesisInput) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "Synthesizer.Synthesize", telemetry.SpanAttributes{
		Action:    string(input.Decision.Action),
		Operation: "synthesize",
	})
	defer span.End()

	messages := []PromptMessage{
		{Role: RoleSystem, Content: answerSystemPrompt},
	}
	for _, turn := range input.History {
		role := RoleUser
		if turn.Role == domain.ChatRoleAssistant {
			role = RoleAssistant
		}
		messages = append(messages, PromptMessage{Role: role, Content: turn.Content})
	}
	messages = append(messages, PromptMessage{Role: RoleUser, Content: s.userPrompt(input)})

	answer, err := s.llm.Complete(ctx, messages)
	if err != nil {
		span.SetError(err)
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeProvider, "answer synthesis failed", err)
	}
	return strings.TrimSpace(answer), nil
}

func (s *Synthesizer) userPrompt(input SynthesisInput) string {
	var b strings.Builder

	knowledge := input.KnowledgeContext
	if knowledge == "" {
		knowledge = noContextPlaceholder
	}
	fmt.Fprintf(&b, "Knowledge context:\n%s\n\n", knowledge)

	if input.WebContext != "" {
		fmt.Fprintf(&b, "Web search results:\n%s\n\n", input.WebContext)
	}

	switch input.Decision.Action {
	case domain.ActionConversationSummary:
		b.WriteString("Task: summarize the conversation so far for the user.\n\n")
	case domain.ActionKnowledgeSummary:
		b.WriteString("Task: give the user an overview of their stored knowledge based on the context above.\n\n")
	}

	fmt.Fprintf(&b, "Question: %s", input.Question)
	return b.String()
}
