package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SettingsRepository stores key/value settings.
type SettingsRepository struct {
	DB *sqlx.DB
}

// NewSettingsRepository creates a new SettingsRepository.
func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{DB: db}
}

// Get returns the value of key and whether it exists.
func (r *SettingsRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.DB.GetContext(ctx, &value, "SELECT setting_value FROM moodle_settings WHERE setting_key = ?", key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

// GetMany returns the stored values for keys. Missing keys are absent from the map.
func (r *SettingsRepository) GetMany(ctx context.Context, keys ...string) (map[string]string, error) {
	values := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return values, nil
	}
	query, args, err := sqlx.In("SELECT setting_key, setting_value FROM moodle_settings WHERE setting_key IN (?)", keys)
	if err != nil {
		return nil, err
	}
	var rows []Setting
	if err := r.DB.SelectContext(ctx, &rows, r.DB.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, s := range rows {
		values[s.Key] = s.Value
	}
	return values, nil
}

// Set inserts or overwrites a single setting.
func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	return r.SetMany(ctx, map[string]string{key: value})
}

// SetMany writes all values in one transaction.
func (r *SettingsRepository) SetMany(ctx context.Context, values map[string]string) error {
	query := upsertQuery(r.DB.DriverName(), "moodle_settings",
		[]string{"setting_key", "setting_value"},
		[]string{"setting_key"},
		[]string{"setting_value"})

	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for k, v := range values {
		if _, err := tx.NamedExecContext(ctx, query, Setting{Key: k, Value: v}); err != nil {
			return fmt.Errorf("failed to save setting %s: %w", k, err)
		}
	}
	return tx.Commit()
}

// SetIfAbsent stores value under key unless the key already exists, and
// returns whichever value is stored afterwards.
func (r *SettingsRepository) SetIfAbsent(ctx context.Context, key, value string) (string, error) {
	query := insertIgnoreQuery(r.DB.DriverName(), "moodle_settings", []string{"setting_key", "setting_value"})
	if _, err := r.DB.ExecContext(ctx, query, key, value); err != nil {
		return "", err
	}
	stored, _, err := r.Get(ctx, key)
	return stored, err
}
