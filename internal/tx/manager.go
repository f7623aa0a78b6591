package tx

import (
	"context"
	"database/sql"
	"fmt"
)

// Manager runs functions inside a database transaction.
type Manager struct {
	DB *sql.DB
}

func (m *Manager) WithTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	t, err := m.DB.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(ctx, t); err != nil {
		_ = t.Rollback()
		return err
	}

	if err := t.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
