package scoreboarddb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// BunStore keeps archives in the scoreboard_archives table.
type BunStore struct {
	DB bun.IDB
}

func (s *BunStore) Load(ctx context.Context, key string) ([]byte, error) {
	var archive ScoreboardArchive
	err := s.DB.NewSelect().Model(&archive).Where("key = ?", key).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to load archive %s: %w", key, err)
	}
	return archive.Data, nil
}

func (s *BunStore) Save(ctx context.Context, key string, data []byte) error {
	archive := &ScoreboardArchive{
		Key:       key,
		Data:      data,
		Size:      len(data),
		UpdatedAt: time.Now().UTC(),
	}
	_, err := s.DB.NewInsert().
		Model(archive).
		On("CONFLICT (key) DO UPDATE").
		Set("data = EXCLUDED.data").
		Set("size = EXCLUDED.size").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save archive %s: %w", key, err)
	}
	return nil
}

func (s *BunStore) List(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.DB.NewSelect().
		Model((*ScoreboardArchive)(nil)).
		Column("key").
		Order("key ASC").
		Scan(ctx, &keys)
	if err != nil {
		return nil, fmt.Errorf("failed to list archives: %w", err)
	}
	return keys, nil
}

func (s *BunStore) Delete(ctx context.Context, key string) error {
	res, err := s.DB.NewDelete().Model((*ScoreboardArchive)(nil)).Where("key = ?", key).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete archive %s: %w", key, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return nil
}
