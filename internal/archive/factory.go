package archive

import (
	"context"
	"strings"
)

// NewStore creates a postgres-backed archive when configured, otherwise
// a no-op store. The in-memory transcript in the conversation package
// already covers the unconfigured case, so there is nothing to archive
// without a database.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NopStore{}, nil
	}
	return NewPostgresStore(ctx, databaseURL)
}

// NopStore archives nothing.
type NopStore struct{}

func (NopStore) SaveTurn(context.Context, TurnRecord) error { return nil }

func (NopStore) RecentTurns(context.Context, string, int) ([]TurnRecord, error) {
	return nil, nil
}

func (NopStore) Close() error { return nil }
