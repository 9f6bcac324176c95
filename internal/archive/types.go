// Package archive gives the otherwise process-volatile chat
// transcripts a durable trail. Writes are best-effort: the chat path
// never fails because the archive is down.
package archive

import (
	"context"
	"time"
)

// TurnRecord is one archived transcript turn.
type TurnRecord struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists chat turns.
type Store interface {
	SaveTurn(ctx context.Context, record TurnRecord) error
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]TurnRecord, error)
	Close() error
}
