package tenant

import (
	"context"
	"sync"

	"github.com/voicehive-hotels/orchestrator/internal/domain"
	"github.com/voicehive-hotels/orchestrator/pkg/voicehiveerr"
)

// OperationHandler executes one chain operation against a single
// target property. Handlers are registered per domain.ChainOperationType.
type OperationHandler func(ctx context.Context, propertyID string, op *domain.ChainOperation) error

// DefaultConcurrency bounds how many properties a chain operation runs
// against in parallel.
const DefaultConcurrency = 5

// Engine executes chain-wide operations across a property tree.
type Engine struct {
	store       HierarchyStore
	handlers    map[domain.ChainOperationType]OperationHandler
	concurrency int
}

func NewEngine(store HierarchyStore, concurrency int) *Engine {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Engine{store: store, handlers: make(map[domain.ChainOperationType]OperationHandler), concurrency: concurrency}
}

func (e *Engine) RegisterHandler(t domain.ChainOperationType, h OperationHandler) {
	e.handlers[t] = h
}

// ResolveTargets expands op.Targets (if set) or every active property in
// the chain, then subtracts op.Exclusions. Property-type filtering is
// resolved at the call site rather than inside the engine.
func (e *Engine) ResolveTargets(ctx context.Context, op *domain.ChainOperation) ([]string, error) {
	candidates := op.Targets
	if len(candidates) == 0 {
		properties, err := e.store.PropertiesInChain(ctx, op.ChainID)
		if err != nil {
			return nil, err
		}
		candidates = make([]string, 0, len(properties))
		for _, p := range properties {
			if p.Status == domain.PropertyActive {
				candidates = append(candidates, p.PropertyID)
			}
		}
	}
	if len(op.Exclusions) == 0 {
		return candidates, nil
	}
	excluded := make(map[string]struct{}, len(op.Exclusions))
	for _, id := range op.Exclusions {
		excluded[id] = struct{}{}
	}
	targets := make([]string, 0, len(candidates))
	for _, id := range candidates {
		if _, skip := excluded[id]; !skip {
			targets = append(targets, id)
		}
	}
	return targets, nil
}

// Execute runs op's handler against every resolved target with bounded
// parallelism. On ctx cancellation, in-flight handlers are allowed to
// complete but any target not yet started is recorded as skipped
// rather than attempted; progress is updated incrementally so callers
// polling op.PercentComplete observe live progress.
func (e *Engine) Execute(ctx context.Context, op *domain.ChainOperation) error {
	handler, ok := e.handlers[op.Type]
	if !ok {
		return voicehiveerr.Validation("no handler registered for operation type "+string(op.Type), nil)
	}

	targets, err := e.ResolveTargets(ctx, op)
	if err != nil {
		return err
	}

	op.Status = domain.ChainOpRunning
	op.Results = make(map[string]domain.ChainOperationResult, len(targets))
	if len(targets) == 0 {
		op.Status = domain.ChainOpCompleted
		op.PercentComplete = 100
		return nil
	}

	sem := make(chan struct{}, e.concurrency)
	var mu sync.Mutex
	var wg sync.WaitGroup
	completed := 0

	for _, propertyID := range targets {
		propertyID := propertyID

		select {
		case <-ctx.Done():
			mu.Lock()
			op.Results[propertyID] = domain.ChainOperationResult{PropertyID: propertyID, Skipped: true}
			completed++
			op.PercentComplete = float64(completed) / float64(len(targets)) * 100
			mu.Unlock()
			continue
		default:
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			mu.Lock()
			op.Results[propertyID] = domain.ChainOperationResult{PropertyID: propertyID, Skipped: true}
			completed++
			op.PercentComplete = float64(completed) / float64(len(targets)) * 100
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			err := handler(ctx, propertyID, op)

			mu.Lock()
			defer mu.Unlock()
			result := domain.ChainOperationResult{PropertyID: propertyID, Succeeded: err == nil}
			if err != nil {
				result.Error = err.Error()
			}
			op.Results[propertyID] = result
			completed++
			op.PercentComplete = float64(completed) / float64(len(targets)) * 100
		}()
	}
	wg.Wait()

	op.Status = domain.ChainOpCompleted
	for _, r := range op.Results {
		if !r.Succeeded && !r.Skipped {
			op.Status = domain.ChainOpFailed
			break
		}
	}
	if ctx.Err() != nil {
		op.Status = domain.ChainOpCancelled
	}
	return nil
}
