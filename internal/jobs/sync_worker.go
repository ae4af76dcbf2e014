package jobs

import (
	"context"

	"github.com/mindcanvas/brainbase/internal/domain"
	"github.com/mindcanvas/brainbase/internal/service"
)

// SyncService defines the interface for syncing canvas state into the
// knowledge base.
type SyncService interface {
	SyncNodes(ctx context.Context, scope domain.Scope, nodes []service.Node) error
	SyncMemos(ctx context.Context, scope domain.Scope, memos []service.Memo) error
	SyncTodos(ctx context.Context, scope domain.Scope, todos []service.Todo) error
}

// SyncWorker submits canvas state snapshots for background syncing. One
// snapshot per (scope, kind) runs at a time, and a newer snapshot
// replaces any queued one.
type SyncWorker struct {
	dispatcher *Dispatcher
	sync       SyncService
}

// NewSyncWorker creates a new SyncWorker instance.
func NewSyncWorker(dispatcher *Dispatcher, sync SyncService) *SyncWorker {
	return &SyncWorker{dispatcher: dispatcher, sync: sync}
}

// SubmitNodes queues a node snapshot for the scope.
func (w *SyncWorker) SubmitNodes(scope domain.Scope, nodes []service.Node) {
	w.dispatcher.Submit(laneKey(scope, domain.KindInternalNodes), "sync_nodes", func(ctx context.Context) error {
		return w.sync.SyncNodes(ctx, scope, nodes)
	})
}

// SubmitMemos queues a memo snapshot for the scope.
func (w *SyncWorker) SubmitMemos(scope domain.Scope, memos []service.Memo) {
	w.dispatcher.Submit(laneKey(scope, domain.KindInternalMemos), "sync_memos", func(ctx context.Context) error {
		return w.sync.SyncMemos(ctx, scope, memos)
	})
}

// SubmitTodos queues a to-do snapshot for the scope.
func (w *SyncWorker) SubmitTodos(scope domain.Scope, todos []service.Todo) {
	w.dispatcher.Submit(laneKey(scope, domain.KindInternalTodos), "sync_todos", func(ctx context.Context) error {
		return w.sync.SyncTodos(ctx, scope, todos)
	})
}

func laneKey(scope domain.Scope, kind domain.DocumentKind) string {
	return scope.String() + "/" + string(kind)
}
