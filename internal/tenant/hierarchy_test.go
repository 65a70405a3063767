package tenant

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicehive-hotels/orchestrator/internal/domain"
)

type fakeStore struct {
	mu         sync.Mutex
	properties map[string]domain.PropertyHierarchy
	policies   map[string]map[string]any
}

func newFakeStore() *fakeStore {
	return &fakeStore{properties: make(map[string]domain.PropertyHierarchy), policies: make(map[string]map[string]any)}
}

func (s *fakeStore) GetProperty(ctx context.Context, propertyID string) (domain.PropertyHierarchy, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.properties[propertyID]
	return p, ok, nil
}

func (s *fakeStore) SaveProperty(ctx context.Context, p domain.PropertyHierarchy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.properties[p.PropertyID] = p
	return nil
}

func (s *fakeStore) ChildrenOf(ctx context.Context, propertyID string) ([]domain.PropertyHierarchy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var children []domain.PropertyHierarchy
	for _, p := range s.properties {
		if p.ParentID == propertyID {
			children = append(children, p)
		}
	}
	return children, nil
}

func (s *fakeStore) PropertiesInChain(ctx context.Context, chainID string) ([]domain.PropertyHierarchy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PropertyHierarchy
	for _, p := range s.properties {
		if p.ChainID == chainID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeStore) ChainPolicies(ctx context.Context, chainID string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneMap(s.policies[chainID]), nil
}

func TestAddProperty_RejectsDepthBeyondMax(t *testing.T) {
	store := newFakeStore()
	mgr := NewHierarchyManager(store)

	parentID := ""
	for level := 0; level <= domain.MaxHierarchyDepth; level++ {
		p := domain.PropertyHierarchy{PropertyID: idFor(level), ChainID: "chain-1"}
		saved, err := mgr.AddProperty(context.Background(), parentID, p)
		require.NoError(t, err)
		parentID = saved.PropertyID
	}

	// One more level exceeds MaxHierarchyDepth.
	_, err := mgr.AddProperty(context.Background(), parentID, domain.PropertyHierarchy{PropertyID: "too-deep", ChainID: "chain-1"})
	require.Error(t, err)
}

func idFor(level int) string {
	return "prop-" + string(rune('a'+level))
}

func TestRemoveProperty_RejectsWhenChildrenExist(t *testing.T) {
	store := newFakeStore()
	mgr := NewHierarchyManager(store)

	hq, err := mgr.AddProperty(context.Background(), "", domain.PropertyHierarchy{PropertyID: "hq", ChainID: "chain-1"})
	require.NoError(t, err)
	_, err = mgr.AddProperty(context.Background(), hq.PropertyID, domain.PropertyHierarchy{PropertyID: "child", ChainID: "chain-1"})
	require.NoError(t, err)

	err = mgr.RemoveProperty(context.Background(), hq.PropertyID)
	require.Error(t, err)
}

func TestRemoveProperty_SoftDeletesLeafToSold(t *testing.T) {
	store := newFakeStore()
	mgr := NewHierarchyManager(store)

	hq, err := mgr.AddProperty(context.Background(), "", domain.PropertyHierarchy{PropertyID: "hq", ChainID: "chain-1"})
	require.NoError(t, err)
	leaf, err := mgr.AddProperty(context.Background(), hq.PropertyID, domain.PropertyHierarchy{PropertyID: "leaf", ChainID: "chain-1"})
	require.NoError(t, err)

	require.NoError(t, mgr.RemoveProperty(context.Background(), leaf.PropertyID))

	got, ok, err := store.GetProperty(context.Background(), "leaf")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.PropertySold, got.Status)
}

func TestEffectiveConfig_FullInheritanceParentShadowsLocal(t *testing.T) {
	store := newFakeStore()
	store.policies["chain-1"] = map[string]any{"brand": "voicehive", "currency": "EUR"}
	mgr := NewHierarchyManager(store)

	hq, err := mgr.AddProperty(context.Background(), "", domain.PropertyHierarchy{
		PropertyID: "hq", ChainID: "chain-1", InheritanceMode: domain.InheritFull,
	})
	require.NoError(t, err)

	leaf, err := mgr.AddProperty(context.Background(), hq.PropertyID, domain.PropertyHierarchy{
		PropertyID:      "leaf",
		ChainID:         "chain-1",
		InheritanceMode: domain.InheritFull,
		LocalConfig:     map[string]any{"currency": "USD"},
	})
	require.NoError(t, err)

	cfg, err := mgr.EffectiveConfig(context.Background(), leaf.PropertyID)
	require.NoError(t, err)
	assert.Equal(t, "voicehive", cfg["brand"])
	assert.Equal(t, "EUR", cfg["currency"])
}

func TestEffectiveConfig_SelectiveOnlyInheritsNamedKeys(t *testing.T) {
	store := newFakeStore()
	store.policies["chain-1"] = map[string]any{"brand": "voicehive", "currency": "EUR", "tax_rate": 0.19}
	mgr := NewHierarchyManager(store)

	hq, err := mgr.AddProperty(context.Background(), "", domain.PropertyHierarchy{PropertyID: "hq", ChainID: "chain-1", InheritanceMode: domain.InheritFull})
	require.NoError(t, err)

	leaf, err := mgr.AddProperty(context.Background(), hq.PropertyID, domain.PropertyHierarchy{
		PropertyID:      "leaf",
		ChainID:         "chain-1",
		InheritanceMode: domain.InheritSelective,
		SelectiveKeys:   []string{"tax_rate"},
		LocalConfig:     map[string]any{"currency": "USD"},
	})
	require.NoError(t, err)

	cfg, err := mgr.EffectiveConfig(context.Background(), leaf.PropertyID)
	require.NoError(t, err)
	assert.Equal(t, 0.19, cfg["tax_rate"])
	assert.Equal(t, "USD", cfg["currency"])
	assert.NotContains(t, cfg, "brand")
}

func TestEffectiveConfig_NoneIgnoresParentEntirely(t *testing.T) {
	store := newFakeStore()
	store.policies["chain-1"] = map[string]any{"brand": "voicehive"}
	mgr := NewHierarchyManager(store)

	hq, err := mgr.AddProperty(context.Background(), "", domain.PropertyHierarchy{PropertyID: "hq", ChainID: "chain-1"})
	require.NoError(t, err)

	leaf, err := mgr.AddProperty(context.Background(), hq.PropertyID, domain.PropertyHierarchy{
		PropertyID:      "leaf",
		ChainID:         "chain-1",
		InheritanceMode: domain.InheritNone,
		LocalConfig:     map[string]any{"currency": "USD"},
	})
	require.NoError(t, err)

	cfg, err := mgr.EffectiveConfig(context.Background(), leaf.PropertyID)
	require.NoError(t, err)
	assert.NotContains(t, cfg, "brand")
	assert.Equal(t, "USD", cfg["currency"])
}

func TestEffectiveConfig_LocalOverridesApplyLast(t *testing.T) {
	store := newFakeStore()
	store.policies["chain-1"] = map[string]any{"currency": "EUR"}
	mgr := NewHierarchyManager(store)

	hq, err := mgr.AddProperty(context.Background(), "", domain.PropertyHierarchy{
		PropertyID:      "hq",
		ChainID:         "chain-1",
		InheritanceMode: domain.InheritFull,
		LocalOverrides:  map[string]any{"currency": "GBP"},
	})
	require.NoError(t, err)

	cfg, err := mgr.EffectiveConfig(context.Background(), hq.PropertyID)
	require.NoError(t, err)
	assert.Equal(t, "GBP", cfg["currency"])
}
