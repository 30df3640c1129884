package repository

import (
	"database/sql"
	"fmt"

	"github.com/gabriel/anime-watchlist/backend/internal/models"
)

type SettingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the setting for key, or nil when the key is absent.
func (r *SettingsRepository) Get(key string) (*models.Setting, error) {
	row := r.db.QueryRow(`
		SELECT key, value, updated_at
		FROM settings
		WHERE key = ?
	`, key)

	var item models.Setting
	if err := row.Scan(&item.Key, &item.Value, &item.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get setting %q: %w", key, err)
	}

	return &item, nil
}

func (r *SettingsRepository) Set(key string, value string) error {
	_, err := r.db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}
