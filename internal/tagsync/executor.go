package tagsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"micromanagerr/internal/logging"
	"micromanagerr/internal/services"
)

const defaultOpTimeout = 30 * time.Second

// Result is the outcome of one item's plan.
type Result struct {
	ItemID  int
	Applied []TagOperation
	// Failed is set when an operation failed; the rest of the item's
	// operations are in Skipped.
	Failed  *OperationError
	Skipped []TagOperation
	// Canceled is set when the item never started because ctx was done.
	Canceled bool
}

// Err returns the item's failure, if any.
func (r Result) Err() error {
	switch {
	case r.Failed != nil:
		return r.Failed
	case r.Canceled:
		return context.Canceled
	default:
		return nil
	}
}

// Observer is notified after every executed operation.
type Observer func(op TagOperation, err error)

// Executor applies item plans against a Remote.
type Executor struct {
	remote        Remote
	maxConcurrent int
	opTimeout     time.Duration
	logger        *slog.Logger
	observer      Observer

	mu sync.Mutex
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithMaxConcurrent bounds how many items run at once.
func WithMaxConcurrent(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.maxConcurrent = n
		}
	}
}

// WithOpTimeout bounds each remote operation.
func WithOpTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.opTimeout = d
		}
	}
}

// WithObserver registers an observer.
func WithObserver(fn Observer) ExecutorOption {
	return func(e *Executor) { e.observer = fn }
}

// WithExecutorLogger sets the executor logger.
func WithExecutorLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = logger }
}

// NewExecutor constructs an executor.
func NewExecutor(remote Remote, opts ...ExecutorOption) *Executor {
	e := &Executor{remote: remote, maxConcurrent: 1, opTimeout: defaultOpTimeout}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.NewComponentLogger(e.logger, "tagsync")
	return e
}

// Apply runs plans concurrently, each item's operations strictly in order.
//
// A failed operation aborts the remainder of that item only. Once ctx is
// done no new item starts; an item that already started finishes its
// sequence on a context detached from ctx, bounded per operation.
// state.Catalog is updated with created tags; a detach removes every id the
// item holds under the label in state.Held.
func (e *Executor) Apply(ctx context.Context, state RemoteTagState, plans []ItemPlan) []Result {
	if state.Catalog == nil {
		state.Catalog = NewCatalog(nil)
	}
	results := make([]Result, len(plans))
	var g errgroup.Group
	g.SetLimit(e.maxConcurrent)
	for i, plan := range plans {
		g.Go(func() error {
			results[i] = e.applyItem(ctx, state, plan)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (e *Executor) applyItem(ctx context.Context, state RemoteTagState, plan ItemPlan) Result {
	result := Result{ItemID: plan.ItemID}
	if ctx.Err() != nil {
		result.Canceled = true
		result.Skipped = plan.Ops
		return result
	}
	runCtx := services.WithItemID(context.WithoutCancel(ctx), plan.ItemID)
	logger := logging.WithContext(runCtx, e.logger)

	for i, op := range plan.Ops {
		err := e.applyOp(runCtx, state, op)
		if e.observer != nil {
			e.observer(op, err)
		}
		if err != nil {
			result.Failed = &OperationError{Op: op, Err: err}
			result.Skipped = plan.Ops[i+1:]
			logging.WarnWithContext(logger, "tag operation failed", "tag_operation_failed",
				logging.String("operation", op.String()),
				logging.Int("skipped", len(result.Skipped)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "re-run tags apply once the remote is healthy"),
				logging.String(logging.FieldImpact, "remaining operations for this item were not applied"),
			)
			return result
		}
		result.Applied = append(result.Applied, op)
		logger.Info("tag operation applied", logging.String("operation", op.String()))
	}
	return result
}

func (e *Executor) applyOp(ctx context.Context, state RemoteTagState, op TagOperation) error {
	ctx, cancel := context.WithTimeout(ctx, e.opTimeout)
	defer cancel()

	catalog := state.Catalog
	switch op.Kind {
	case OpCreateTag:
		e.mu.Lock()
		_, exists := catalog.Lookup(op.Label)
		e.mu.Unlock()
		if exists {
			return nil
		}
		tag, err := e.remote.CreateTag(ctx, op.Label)
		if err != nil {
			return err
		}
		e.mu.Lock()
		catalog.Add(tag)
		e.mu.Unlock()
		return nil
	case OpAttachTag:
		e.mu.Lock()
		tag, ok := catalog.Lookup(op.Label)
		e.mu.Unlock()
		if !ok {
			return fmt.Errorf("tag %q not in catalog", op.Label)
		}
		return e.remote.AttachTag(ctx, op.ItemID, tag.ID)
	case OpDetachTag:
		ids := state.HeldIDs(op.ItemID, op.Label)
		if len(ids) == 0 {
			e.mu.Lock()
			tag, ok := catalog.Lookup(op.Label)
			e.mu.Unlock()
			if !ok {
				return fmt.Errorf("tag %q not in catalog", op.Label)
			}
			ids = []int{tag.ID}
		}
		for _, id := range ids {
			if err := e.remote.DetachTag(ctx, op.ItemID, id); err != nil {
				return err
			}
		}
		return nil
	default:
		return errors.New("unknown operation kind " + string(op.Kind))
	}
}
