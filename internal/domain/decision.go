package domain

import "fmt"

// Action is the answering strategy chosen for a single query. Exactly one
// action is produced per query; downstream components switch entirely on
// this tag.
type Action string

const (
	ActionKnowledgeOnly       Action = "KNOWLEDGE_ONLY"
	ActionWebSearch           Action = "WEB_SEARCH"
	ActionClarify             Action = "CLARIFY"
	ActionConversationSummary Action = "CONVERSATION_SUMMARY"
	ActionKnowledgeSummary    Action = "KNOWLEDGE_SUMMARY"
)

// ParseAction maps a raw tag to an Action, rejecting anything outside the
// closed set.
func ParseAction(raw string) (Action, error) {
	switch Action(raw) {
	case ActionKnowledgeOnly, ActionWebSearch, ActionClarify,
		ActionConversationSummary, ActionKnowledgeSummary:
		return Action(raw), nil
	}
	return "", fmt.Errorf("unknown action %q", raw)
}

// Decision is the classification produced once per query by the decision
// engine and consumed immediately by the context builder. SearchQuery is
// populated only for WEB_SEARCH, ClarificationQuestion only for CLARIFY.
type Decision struct {
	Action                Action
	Reason                string
	SearchQuery           string
	ClarificationQuestion string
}

// Validate enforces the per-variant payload rules.
func (d Decision) Validate() error {
	if _, err := ParseAction(string(d.Action)); err != nil {
		return err
	}
	switch d.Action {
	case ActionWebSearch:
		if d.SearchQuery == "" {
			return fmt.Errorf("WEB_SEARCH decision requires a search query")
		}
	case ActionClarify:
		if d.ClarificationQuestion == "" {
			return fmt.Errorf("CLARIFY decision requires a clarification question")
		}
	}
	if d.Action != ActionWebSearch && d.SearchQuery != "" {
		return fmt.Errorf("%s decision must not carry a search query", d.Action)
	}
	if d.Action != ActionClarify && d.ClarificationQuestion != "" {
		return fmt.Errorf("%s decision must not carry a clarification question", d.Action)
	}
	return nil
}
