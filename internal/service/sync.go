package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/mindcanvas/brainbase/internal/domain"
	"github.com/mindcanvas/brainbase/internal/telemetry"
)

// NodeTypeTodo marks canvas nodes that mirror to-do items. They are
// excluded from the node document so they are not indexed twice.
const NodeTypeTodo = "todo"

const emptySectionPlaceholder = "(없음)"

// Node is the canvas-node shape the synchronizer consumes.
type Node struct {
	Type     string
	Title    string
	Subtitle string
}

// Memo is a free-form workspace memo, in creation order.
type Memo struct {
	Content string
}

// Todo is one to-do item.
type Todo struct {
	Content string
	Done    bool
}

// Synchronizer keeps one synthetic document per internal kind per canvas
// in step with live workspace state. Every sync renders the full state
// and replaces the singleton document's content and chunks.
type Synchronizer struct {
	knowledge *KnowledgeService
}

func NewSynchronizer(knowledge *KnowledgeService) *Synchronizer {
	return &Synchronizer{knowledge: knowledge}
}

// SyncNodes refreshes the internal-nodes document for the scope.
func (s *Synchronizer) SyncNodes(ctx context.Context, scope domain.Scope, nodes []Node) error {
	return s.sync(ctx, scope, domain.KindInternalNodes, "노드 목록", renderNodes(nodes))
}

// SyncMemos refreshes the internal-memos document for the scope.
func (s *Synchronizer) SyncMemos(ctx context.Context, scope domain.Scope, memos []Memo) error {
	return s.sync(ctx, scope, domain.KindInternalMemos, "메모 목록", renderMemos(memos))
}

// SyncTodos refreshes the internal-todos document for the scope.
func (s *Synchronizer) SyncTodos(ctx context.Context, scope domain.Scope, todos []Todo) error {
	return s.sync(ctx, scope, domain.KindInternalTodos, "할일 목록", renderTodos(todos))
}

func (s *Synchronizer) sync(ctx context.Context, scope domain.Scope, kind domain.DocumentKind, title, content string) error {
	ctx, span := telemetry.StartSpan(ctx, "Synchronizer.sync", telemetry.SpanAttributes{
		Scope:     scope.String(),
		Operation: string(kind),
	})
	defer span.End()

	docID, err := s.knowledge.UpsertDocument(ctx, UpsertDocumentInput{
		Scope:   scope,
		Kind:    kind,
		Title:   title,
		Content: content,
	})
	if err != nil {
		span.SetError(err)
		return fmt.Errorf("failed to upsert %s document: %w", kind, err)
	}

	if err := s.knowledge.ReplaceChunks(ctx, docID, content); err != nil {
		span.SetError(err)
		return fmt.Errorf("failed to refresh %s chunks: %w", kind, err)
	}
	return nil
}

// renderNodes formats every non-to-do node as a bullet line. To-do-typed
// nodes belong to the to-do document.
func renderNodes(nodes []Node) string {
	var b strings.Builder
	b.WriteString("[캔버스 노드]\n")

	count := 0
	for _, n := range nodes {
		if n.Type == NodeTypeTodo {
			continue
		}
		fmt.Fprintf(&b, "- [%s] %s - %s\n", n.Type, n.Title, n.Subtitle)
		count++
	}
	if count == 0 {
		b.WriteString(emptySectionPlaceholder + "\n")
	}
	return b.String()
}

// renderMemos numbers each memo's trimmed content in creation order.
func renderMemos(memos []Memo) string {
	var b strings.Builder
	b.WriteString("[메모]\n")

	count := 0
	for _, m := range memos {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		count++
		fmt.Fprintf(&b, "%d. %s\n", count, content)
	}
	if count == 0 {
		b.WriteString(emptySectionPlaceholder + "\n")
	}
	return b.String()
}

// renderTodos always emits both sections, with an explicit placeholder
// when a section is empty, so the document shape stays stable.
func renderTodos(todos []Todo) string {
	var open, done []string
	for _, t := range todos {
		content := strings.TrimSpace(t.Content)
		if content == "" {
			continue
		}
		if t.Done {
			done = append(done, content)
		} else {
			open = append(open, content)
		}
	}

	var b strings.Builder
	b.WriteString("할일(미완료)\n")
	writeBullets(&b, open)
	b.WriteString("\n할일(완료)\n")
	writeBullets(&b, done)
	return b.String()
}

func writeBullets(b *strings.Builder, items []string) {
	if len(items) == 0 {
		b.WriteString(emptySectionPlaceholder + "\n")
		return
	}
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}
