package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mindcanvas/brainbase/internal/domain"
)

// ChatHistoryRepository reads recent chat turns. The chat feature owns
// this table; the RAG core never writes it.
type ChatHistoryRepository struct {
	pool *pgxpool.Pool
}

func NewChatHistoryRepository(pool *pgxpool.Pool) *ChatHistoryRepository {
	return &ChatHistoryRepository{pool: pool}
}

// RecentTurns returns the last n turns of a conversation in chronological
// order.
func (r *ChatHistoryRepository) RecentTurns(ctx context.Context, conversationID string, n int) ([]domain.ChatTurn, error) {
	if n <= 0 {
		n = 10
	}

	rows, err := r.pool.Query(ctx,
		`SELECT role, content, created_at
		 FROM chat_messages
		 WHERE conversation_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		conversationID, n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []domain.ChatTurn
	for rows.Next() {
		var t domain.ChatTurn
		if err := rows.Scan(&t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse newest-first to chronological.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}
