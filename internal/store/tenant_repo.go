package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/voicehive-hotels/orchestrator/internal/domain"
)

// HierarchyRepository implements tenant.HierarchyStore against the
// properties and chain_policies tables.
type HierarchyRepository struct {
	db *sqlx.DB
}

func NewHierarchyRepository(db *sqlx.DB) *HierarchyRepository {
	return &HierarchyRepository{db: db}
}

type propertyRow struct {
	PropertyID      string         `db:"property_id"`
	ChainID         string         `db:"chain_id"`
	ParentID        string         `db:"parent_id"`
	Level           int            `db:"level"`
	Type            string         `db:"type"`
	Status          string         `db:"status"`
	InheritanceMode string         `db:"inheritance_mode"`
	SelectiveKeys   pq.StringArray `db:"selective_keys"`
	LocalConfig     []byte         `db:"local_config"`
	LocalOverrides  []byte         `db:"local_overrides"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func (row propertyRow) toDomain() (domain.PropertyHierarchy, error) {
	var localConfig, localOverrides map[string]any
	if len(row.LocalConfig) > 0 {
		if err := json.Unmarshal(row.LocalConfig, &localConfig); err != nil {
			return domain.PropertyHierarchy{}, err
		}
	}
	if len(row.LocalOverrides) > 0 {
		if err := json.Unmarshal(row.LocalOverrides, &localOverrides); err != nil {
			return domain.PropertyHierarchy{}, err
		}
	}
	return domain.PropertyHierarchy{
		PropertyID:      row.PropertyID,
		ChainID:         row.ChainID,
		ParentID:        row.ParentID,
		Level:           row.Level,
		Type:            domain.PropertyType(row.Type),
		Status:          domain.PropertyStatus(row.Status),
		InheritanceMode: domain.InheritanceMode(row.InheritanceMode),
		SelectiveKeys:   []string(row.SelectiveKeys),
		LocalConfig:     localConfig,
		LocalOverrides:  localOverrides,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}, nil
}

func (r *HierarchyRepository) GetProperty(ctx context.Context, propertyID string) (domain.PropertyHierarchy, bool, error) {
	var row propertyRow
	err := r.db.GetContext(ctx, &row, `
		SELECT property_id, chain_id, parent_id, level, type, status, inheritance_mode,
		       selective_keys, local_config, local_overrides, created_at, updated_at
		FROM properties WHERE property_id = $1`, propertyID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PropertyHierarchy{}, false, nil
	}
	if err != nil {
		return domain.PropertyHierarchy{}, false, err
	}
	p, err := row.toDomain()
	return p, err == nil, err
}

func (r *HierarchyRepository) SaveProperty(ctx context.Context, p domain.PropertyHierarchy) error {
	localConfig, err := json.Marshal(p.LocalConfig)
	if err != nil {
		return err
	}
	localOverrides, err := json.Marshal(p.LocalOverrides)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO properties (property_id, chain_id, parent_id, level, type, status, inheritance_mode,
		                         selective_keys, local_config, local_overrides, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (property_id) DO UPDATE SET
			chain_id = EXCLUDED.chain_id,
			parent_id = EXCLUDED.parent_id,
			level = EXCLUDED.level,
			type = EXCLUDED.type,
			status = EXCLUDED.status,
			inheritance_mode = EXCLUDED.inheritance_mode,
			selective_keys = EXCLUDED.selective_keys,
			local_config = EXCLUDED.local_config,
			local_overrides = EXCLUDED.local_overrides,
			updated_at = EXCLUDED.updated_at
	`, p.PropertyID, p.ChainID, p.ParentID, p.Level, p.Type, p.Status, p.InheritanceMode,
		pq.Array(p.SelectiveKeys), localConfig, localOverrides, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *HierarchyRepository) ChildrenOf(ctx context.Context, propertyID string) ([]domain.PropertyHierarchy, error) {
	var rows []propertyRow
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT property_id, chain_id, parent_id, level, type, status, inheritance_mode,
		       selective_keys, local_config, local_overrides, created_at, updated_at
		FROM properties WHERE parent_id = $1`, propertyID); err != nil {
		return nil, err
	}
	return toDomainProperties(rows)
}

func (r *HierarchyRepository) PropertiesInChain(ctx context.Context, chainID string) ([]domain.PropertyHierarchy, error) {
	var rows []propertyRow
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT property_id, chain_id, parent_id, level, type, status, inheritance_mode,
		       selective_keys, local_config, local_overrides, created_at, updated_at
		FROM properties WHERE chain_id = $1`, chainID); err != nil {
		return nil, err
	}
	return toDomainProperties(rows)
}

func toDomainProperties(rows []propertyRow) ([]domain.PropertyHierarchy, error) {
	out := make([]domain.PropertyHierarchy, 0, len(rows))
	for _, row := range rows {
		p, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *HierarchyRepository) ChainPolicies(ctx context.Context, chainID string) (map[string]any, error) {
	var raw []byte
	err := r.db.GetContext(ctx, &raw, `SELECT policies FROM chain_policies WHERE chain_id = $1`, chainID)
	if errors.Is(err, sql.ErrNoRows) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, err
	}
	var policies map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &policies); err != nil {
			return nil, err
		}
	}
	if policies == nil {
		policies = map[string]any{}
	}
	return policies, nil
}
