// Package tenant implements the property hierarchy (chain tree,
// inheritance resolution) and chain-wide bulk operations.
package tenant

import (
	"context"
	"fmt"

	"github.com/voicehive-hotels/orchestrator/internal/domain"
	"github.com/voicehive-hotels/orchestrator/pkg/voicehiveerr"
)

// HierarchyStore persists the chain tree; internal/store provides the
// sqlx-backed implementation.
type HierarchyStore interface {
	GetProperty(ctx context.Context, propertyID string) (domain.PropertyHierarchy, bool, error)
	SaveProperty(ctx context.Context, p domain.PropertyHierarchy) error
	ChildrenOf(ctx context.Context, propertyID string) ([]domain.PropertyHierarchy, error)
	PropertiesInChain(ctx context.Context, chainID string) ([]domain.PropertyHierarchy, error)
	ChainPolicies(ctx context.Context, chainID string) (map[string]any, error)
}

// HierarchyManager resolves and mutates the property tree.
type HierarchyManager struct {
	store HierarchyStore
}

func NewHierarchyManager(store HierarchyStore) *HierarchyManager {
	return &HierarchyManager{store: store}
}

// AddProperty inserts a new node under parentID (empty for a chain's HQ
// root), rejecting depth beyond domain.MaxHierarchyDepth.
func (m *HierarchyManager) AddProperty(ctx context.Context, parentID string, p domain.PropertyHierarchy) (domain.PropertyHierarchy, error) {
	level := 0
	if parentID != "" {
		parent, ok, err := m.store.GetProperty(ctx, parentID)
		if err != nil {
			return domain.PropertyHierarchy{}, err
		}
		if !ok {
			return domain.PropertyHierarchy{}, voicehiveerr.Validation(fmt.Sprintf("parent property %s not found", parentID), nil)
		}
		if parent.ChainID != p.ChainID {
			return domain.PropertyHierarchy{}, voicehiveerr.Validation("parent belongs to a different chain", nil)
		}
		level = parent.Level + 1
	}
	if level > domain.MaxHierarchyDepth {
		return domain.PropertyHierarchy{}, voicehiveerr.Validation(fmt.Sprintf("hierarchy depth %d exceeds max %d", level, domain.MaxHierarchyDepth), nil)
	}

	p.ParentID = parentID
	p.Level = level
	if p.Status == "" {
		p.Status = domain.PropertyActive
	}
	if err := m.store.SaveProperty(ctx, p); err != nil {
		return domain.PropertyHierarchy{}, err
	}
	return p, nil
}

// RemoveProperty soft-deletes a property (status → sold) after
// verifying it has no children.
func (m *HierarchyManager) RemoveProperty(ctx context.Context, propertyID string) error {
	children, err := m.store.ChildrenOf(ctx, propertyID)
	if err != nil {
		return err
	}
	if len(children) > 0 {
		return voicehiveerr.Conflict(fmt.Sprintf("property %s has %d child properties", propertyID, len(children)), nil)
	}

	p, ok, err := m.store.GetProperty(ctx, propertyID)
	if err != nil {
		return err
	}
	if !ok {
		return voicehiveerr.NotFound(fmt.Sprintf("property %s not found", propertyID), nil)
	}
	p.Status = domain.PropertySold
	return m.store.SaveProperty(ctx, p)
}

// EffectiveConfig resolves a property's configuration per its
// inheritance mode: start from its local config, merge in the parent's
// (recursively resolved) effective config (or the chain policies at
// the root) according to the mode, then apply local overrides last.
// Resolution is deterministic and side-effect-free.
func (m *HierarchyManager) EffectiveConfig(ctx context.Context, propertyID string) (map[string]any, error) {
	p, ok, err := m.store.GetProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, voicehiveerr.NotFound(fmt.Sprintf("property %s not found", propertyID), nil)
	}

	local := cloneMap(p.LocalConfig)

	if p.InheritanceMode == domain.InheritNone {
		return applyOverrides(local, p.LocalOverrides), nil
	}

	var inherited map[string]any
	if p.ParentID != "" {
		inherited, err = m.EffectiveConfig(ctx, p.ParentID)
		if err != nil {
			return nil, err
		}
	} else {
		inherited, err = m.store.ChainPolicies(ctx, p.ChainID)
		if err != nil {
			return nil, err
		}
	}

	var merged map[string]any
	switch p.InheritanceMode {
	case domain.InheritFull:
		// Chain config fully shadows local: local fills gaps the chain
		// doesn't define, but any key the chain also defines wins.
		merged = cloneMap(local)
		for k, v := range inherited {
			merged[k] = v
		}
	case domain.InheritOverride:
		// Local config wins over the inherited one key-for-key.
		merged = cloneMap(inherited)
		for k, v := range local {
			merged[k] = v
		}
	case domain.InheritSelective:
		merged = cloneMap(local)
		for _, key := range p.SelectiveKeys {
			if v, ok := inherited[key]; ok {
				merged[key] = v
			}
		}
	default:
		merged = local
	}

	return applyOverrides(merged, p.LocalOverrides), nil
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func applyOverrides(base, overrides map[string]any) map[string]any {
	for k, v := range overrides {
		base[k] = v
	}
	return base
}
