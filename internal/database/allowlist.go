// internal/database/allowlist.go
package database

import (
	"context"
	"fmt"
)

// EnsureSchema creates the tables this service owns. Safe to run on every
// startup.
func EnsureSchema(ctx context.Context) error {
	if DB == nil {
		return nil
	}
	q := `
		CREATE TABLE IF NOT EXISTS channel_allowlist (
			channel_key TEXT PRIMARY KEY,
			added_by    TEXT NOT NULL,
			added_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`
	if _, err := DB.Exec(ctx, q); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// ChannelAllowed reports whether games may run in the channel. With no
// database configured, or an empty allow-list, every channel is allowed.
func ChannelAllowed(ctx context.Context, channelKey string) (bool, error) {
	if DB == nil {
		return true, nil
	}
	var total int
	if err := DB.QueryRow(ctx, `SELECT COUNT(*) FROM channel_allowlist`).Scan(&total); err != nil {
		return false, fmt.Errorf("count allowlist: %w", err)
	}
	if total == 0 {
		return true, nil
	}
	var exists bool
	q := `SELECT EXISTS(SELECT 1 FROM channel_allowlist WHERE channel_key = $1)`
	if err := DB.QueryRow(ctx, q, channelKey).Scan(&exists); err != nil {
		return false, fmt.Errorf("query allowlist: %w", err)
	}
	return exists, nil
}

// AllowChannel adds a channel to the allow-list.
func AllowChannel(ctx context.Context, channelKey, addedBy string) error {
	if DB == nil {
		return nil
	}
	q := `
		INSERT INTO channel_allowlist (channel_key, added_by)
		VALUES ($1, $2)
		ON CONFLICT (channel_key) DO NOTHING
	`
	if _, err := DB.Exec(ctx, q, channelKey, addedBy); err != nil {
		return fmt.Errorf("insert allowlist: %w", err)
	}
	return nil
}

// RevokeChannel removes a channel from the allow-list.
func RevokeChannel(ctx context.Context, channelKey string) error {
	if DB == nil {
		return nil
	}
	q := `DELETE FROM channel_allowlist WHERE channel_key = $1`
	if _, err := DB.Exec(ctx, q, channelKey); err != nil {
		return fmt.Errorf("delete allowlist: %w", err)
	}
	return nil
}

// ListAllowedChannels returns every allow-listed channel key.
func ListAllowedChannels(ctx context.Context) ([]string, error) {
	if DB == nil {
		return nil, nil
	}
	rows, err := DB.Query(ctx, `SELECT channel_key FROM channel_allowlist ORDER BY channel_key`)
	if err != nil {
		return nil, fmt.Errorf("query allowlist: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
