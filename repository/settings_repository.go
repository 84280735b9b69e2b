package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"crashd/database"
	"crashd/models"
)

const gameConfigKey = "game_config"

// SettingsRepository implements the SettingsRepository interface over
// the system_settings key/value table
type SettingsRepository struct {
	q queryable
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *database.DB) *SettingsRepository {
	return &SettingsRepository{q: db.Pool}
}

// newSettingsRepositoryWithTx creates a new settings repository with a transaction
func newSettingsRepositoryWithTx(tx queryable) *SettingsRepository {
	return &SettingsRepository{q: tx}
}

// GetGameConfig loads the stored game configuration, nil if none saved
func (r *SettingsRepository) GetGameConfig(ctx context.Context) (*models.GameConfig, error) {
	query := `SELECT value FROM system_settings WHERE key = $1`

	var raw []byte
	err := r.q.QueryRow(ctx, query, gameConfigKey).Scan(&raw)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game config: %w", err)
	}

	var cfg models.GameConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game config: %w", err)
	}
	return &cfg, nil
}

// SaveGameConfig stores a validated game configuration
func (r *SettingsRepository) SaveGameConfig(ctx context.Context, cfg *models.GameConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal game config: %w", err)
	}

	query := `
		INSERT INTO system_settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`

	if _, err := r.q.Exec(ctx, query, gameConfigKey, raw); err != nil {
		return fmt.Errorf("failed to save game config: %w", err)
	}
	return nil
}
