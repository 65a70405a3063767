package domain

import "time"

// PropertyType distinguishes a chain headquarters node from an
// individual hotel property in the same tree.
type PropertyType string

const (
	PropertyTypeHQ       PropertyType = "hq"
	PropertyTypeProperty PropertyType = "property"
)

type PropertyStatus string

const (
	PropertyActive     PropertyStatus = "active"
	PropertySuspended  PropertyStatus = "suspended"
	PropertyOnboarding PropertyStatus = "onboarding"
	// PropertySold is the terminal soft-delete state; sold properties
	// stay in the tree for audit but are excluded from chain operations.
	PropertySold PropertyStatus = "sold"
)

// InheritanceMode controls how a property's effective configuration is
// derived from its parent's.
type InheritanceMode string

const (
	// InheritFull: the inherited configuration wins; every inherited key
	// shadows a local key of the same name, and local keys fill only the
	// gaps the parent leaves.
	InheritFull InheritanceMode = "full"
	// InheritSelective: only the keys named in SelectiveKeys are copied
	// down from the inherited configuration; everything else is local-only.
	InheritSelective InheritanceMode = "selective"
	// InheritOverride: inherited configuration is the base; every key
	// present in the local config overwrites the corresponding inherited
	// key, and keys absent locally still come from the parent.
	InheritOverride InheritanceMode = "override"
	// InheritNone: the property ignores its parent's configuration
	// entirely.
	InheritNone InheritanceMode = "none"
)

const MaxHierarchyDepth = 5

// PropertyHierarchy is one node in the chain tree, rooted at a PropertyTypeHQ
// node with Level 0.
type PropertyHierarchy struct {
	PropertyID      string
	ChainID         string
	ParentID        string // empty for the HQ root
	Level           int
	Type            PropertyType
	Status          PropertyStatus
	InheritanceMode InheritanceMode
	SelectiveKeys   []string
	LocalConfig     map[string]any
	LocalOverrides  map[string]any
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ChainOperationType enumerates the bulk operations that can be fanned
// out across every property in a chain.
type ChainOperationType string

const (
	ChainOpConfigUpdate ChainOperationType = "config_update"
	ChainOpDeploy       ChainOperationType = "deploy"
	ChainOpPolicy       ChainOperationType = "policy"
	ChainOpRateUpdate   ChainOperationType = "rate_update"
	ChainOpPromo        ChainOperationType = "promo"
	ChainOpMaintenance  ChainOperationType = "maintenance"
	ChainOpTraining     ChainOperationType = "training"
)

type ChainOperationStatus string

const (
	ChainOpPending   ChainOperationStatus = "pending"
	ChainOpRunning   ChainOperationStatus = "running"
	ChainOpCompleted ChainOperationStatus = "completed"
	ChainOpCancelled ChainOperationStatus = "cancelled"
	ChainOpFailed    ChainOperationStatus = "failed"
)

// ChainOperation tracks one bulk operation's progress across a set of
// target properties. PercentComplete is recomputed as each resolved
// target finishes or is skipped, as finished targets over resolved
// targets. Schedule, when non-empty, is a cron
// expression; the operation is run by the tenant scheduler on that
// cadence instead of immediately.
type ChainOperation struct {
	ID              string
	ChainID         string
	Type            ChainOperationType
	Payload         map[string]any
	Targets         []string
	Exclusions      []string
	Schedule        string
	Status          ChainOperationStatus
	PercentComplete float64
	Results         map[string]ChainOperationResult
	StartedAt       time.Time
	FinishedAt      time.Time
}

type ChainOperationResult struct {
	PropertyID string
	Succeeded  bool
	Error      string
	Skipped    bool // true when the operation was cancelled before this target ran
}
