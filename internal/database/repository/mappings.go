package repository

import (
	"context"
	"database/sql"
)

// MappingRepo handles the legacy-to-target identity translation table.
type MappingRepo struct{ db *sql.DB }

func NewMappingRepo(db *sql.DB) *MappingRepo { return &MappingRepo{db: db} }

func (r *MappingRepo) Get(ctx context.Context, entityType string, legacyID int64) (*IdentityMapping, error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT entity_type, legacy_id, target_id, created_at
	FROM identity_mappings WHERE entity_type = ? AND legacy_id = ?`, entityType, legacyID)
	var m IdentityMapping
	if err := row.Scan(&m.EntityType, &m.LegacyID, &m.TargetID, &m.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *MappingRepo) Insert(ctx context.Context, entityType string, legacyID int64, targetID string) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO identity_mappings(entity_type, legacy_id, target_id, created_at)
	VALUES(?, ?, ?, CURRENT_TIMESTAMP);
	`, entityType, legacyID, targetID)
	return err
}

func (r *MappingRepo) CountByType(ctx context.Context, entityType string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM identity_mappings WHERE entity_type = ?`, entityType).Scan(&n)
	return n, err
}
