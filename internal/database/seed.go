package database

import (
	"database/sql"
	"fmt"
)

func SeedDefaults(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin seed tx: %w", err)
	}

	_, err = tx.Exec(`
		INSERT OR IGNORE INTO profiles (key, name)
		VALUES ('default', 'Default')
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("seed default profile: %w", err)
	}

	_, err = tx.Exec(`
		INSERT OR IGNORE INTO settings (key, value)
		VALUES
			('refresh_minutes', '60'),
			('refresh_statuses', 'RELEASING,NOT_YET_RELEASED');
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("seed settings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed tx: %w", err)
	}

	return nil
}
