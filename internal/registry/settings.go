package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Settings section and key names used by the bridge.
const (
	SectionCredentials = "credentials"
	SectionSession     = "session"

	KeyEmail              = "email"
	KeyObfuscatedPassword = "password"
	KeyAccessToken        = "access_token"
	KeyRefreshToken       = "refresh_token"
	KeyTokenExpiry        = "token_expiry"
)

// GetSetting returns the stored value for section/key, or def when no value
// is stored.
func (r *SQLiteRepository) GetSetting(ctx context.Context, section, key, def string) (string, error) {
	const query = `SELECT value FROM settings WHERE section = ? AND key = ?`
	var value string
	err := r.db.QueryRowContext(ctx, query, section, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return def, nil
		}
		return "", fmt.Errorf("reading setting %s/%s: %w", section, key, err)
	}
	return value, nil
}

// SetSetting stores a value for section/key, replacing any existing value.
func (r *SQLiteRepository) SetSetting(ctx context.Context, section, key, value string) error {
	const query = `INSERT INTO settings (section, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (section, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	_, err := r.db.ExecContext(ctx, query, section, key, value, formatTime(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("writing setting %s/%s: %w", section, key, err)
	}
	return nil
}

// DeleteSetting removes a stored value. Deleting an absent key is not an
// error.
func (r *SQLiteRepository) DeleteSetting(ctx context.Context, section, key string) error {
	const query = `DELETE FROM settings WHERE section = ? AND key = ?`
	if _, err := r.db.ExecContext(ctx, query, section, key); err != nil {
		return fmt.Errorf("deleting setting %s/%s: %w", section, key, err)
	}
	return nil
}
