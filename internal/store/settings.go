package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/oaubike/relay/internal/record"
)

// PutSetting upserts a keyed app setting. Writing an existing key
// overwrites value, timestamp, and updated_at.
func (s *Store) PutSetting(ctx context.Context, setting record.Setting) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_settings (key, value, timestamp, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			timestamp = excluded.timestamp,
			updated_at = excluded.updated_at
	`,
		setting.Key,
		string(setting.Value),
		setting.Timestamp,
		setting.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put setting: %w", err)
	}
	return nil
}

// GetSetting retrieves a setting by key.
// Returns found=false (not an error) when the key does not exist.
func (s *Store) GetSetting(ctx context.Context, key string) (record.Setting, bool, error) {
	var setting record.Setting
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT key, value, timestamp, updated_at FROM app_settings WHERE key = ?
	`, key).Scan(&setting.Key, &value, &setting.Timestamp, &setting.UpdatedAt)
	if err == sql.ErrNoRows {
		return record.Setting{}, false, nil
	}
	if err != nil {
		return record.Setting{}, false, fmt.Errorf("get setting: %w", err)
	}
	setting.Value = []byte(value)
	return setting, true, nil
}
