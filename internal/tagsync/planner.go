package tagsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"micromanagerr/internal/arr"
	"micromanagerr/internal/classify"
	"micromanagerr/internal/logging"
	"micromanagerr/internal/services"
)

// Remote is the subset of the Arr client that reconciliation uses.
type Remote interface {
	ListTags(ctx context.Context) ([]arr.Tag, error)
	GetItem(ctx context.Context, id int) (arr.Item, error)
	CreateTag(ctx context.Context, label string) (arr.Tag, error)
	AttachTag(ctx context.Context, itemID, tagID int) error
	DetachTag(ctx context.Context, itemID, tagID int) error
}

var _ Remote = (*arr.Client)(nil)

// Target pairs an item with its classification.
type Target struct {
	ItemID         int
	Classification classify.Classification
}

// Planner reads remote state and computes operation plans without
// executing them.
type Planner struct {
	remote  Remote
	options Options
	logger  *slog.Logger
}

// NewPlanner constructs a planner.
func NewPlanner(remote Remote, opts Options, logger *slog.Logger) *Planner {
	return &Planner{
		remote:  remote,
		options: opts,
		logger:  logging.NewComponentLogger(logger, "tagsync"),
	}
}

// FetchState reads the tag catalog and the tag labels and ids of each item.
// Tag ids missing from the catalog are dropped.
func (p *Planner) FetchState(ctx context.Context, itemIDs ...int) (RemoteTagState, error) {
	tags, err := p.remote.ListTags(ctx)
	if err != nil {
		return RemoteTagState{}, remoteFailure("list tags", err)
	}
	state := RemoteTagState{
		Items:   make(map[int][]string, len(itemIDs)),
		Catalog: NewCatalog(tags),
	}
	for _, id := range itemIDs {
		item, err := p.remote.GetItem(ctx, id)
		if err != nil {
			return RemoteTagState{}, remoteFailure(fmt.Sprintf("get item %d", id), err)
		}
		labels := make([]string, 0, len(item.TagIDs))
		for _, tagID := range item.TagIDs {
			tag, ok := state.Catalog.ByID(tagID)
			if !ok {
				p.logger.Debug("item references unknown tag id",
					logging.Int(logging.FieldItemID, id),
					logging.Int("tag_id", tagID),
				)
				continue
			}
			labels = append(labels, tag.Label)
			state.hold(id, tag)
		}
		state.Items[id] = labels
	}
	return state, nil
}

// Plan fetches the item's remote state and returns the reconciliation
// sequence for c.
func (p *Planner) Plan(ctx context.Context, c classify.Classification, itemID int) ([]TagOperation, error) {
	state, err := p.FetchState(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return Reconcile(c, state, itemID, p.options), nil
}

// PlanAll fetches state for every target once and plans each item against
// it. The returned state feeds Executor.Apply.
func (p *Planner) PlanAll(ctx context.Context, targets []Target) (RemoteTagState, []ItemPlan, error) {
	ids := make([]int, len(targets))
	for i, t := range targets {
		ids[i] = t.ItemID
	}
	state, err := p.FetchState(ctx, ids...)
	if err != nil {
		return RemoteTagState{}, nil, err
	}
	plans := make([]ItemPlan, 0, len(targets))
	for _, t := range targets {
		ops := Reconcile(t.Classification, state, t.ItemID, p.options)
		p.logger.Info("tag plan computed",
			logging.Int(logging.FieldItemID, t.ItemID),
			logging.Int("operations", len(ops)),
			logging.Strings("desired", DesiredLabels(t.Classification, p.options)),
		)
		plans = append(plans, ItemPlan{ItemID: t.ItemID, Ops: ops})
	}
	return state, plans, nil
}

// remoteFailure keeps not-found distinct and reports everything else as
// unavailable remote state.
func remoteFailure(op string, err error) error {
	if errors.Is(err, services.ErrRemoteStateUnavailable) || errors.Is(err, services.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return services.Wrap(services.ErrRemoteStateUnavailable, "tagsync", op, "", err)
}
