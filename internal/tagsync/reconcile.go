package tagsync

import (
	"slices"

	"micromanagerr/internal/arr"
	"micromanagerr/internal/classify"
)

// Reconcile computes the minimal ordered operation sequence that brings
// itemID's managed labels in line with c. It never mutates state.
//
// Operations come as creates, then attaches, then detaches, each sorted by
// label. Foreign labels are never detached.
func Reconcile(c classify.Classification, state RemoteTagState, itemID int, opts Options) []TagOperation {
	desired := DesiredLabels(c, opts)
	desiredKeys := make(map[string]struct{}, len(desired))

	current := make(map[string]struct{})
	for _, label := range state.Items[itemID] {
		current[arr.NormalizeLabel(label)] = struct{}{}
	}

	var ops []TagOperation
	for _, label := range desired {
		key := arr.NormalizeLabel(label)
		if _, dup := desiredKeys[key]; dup {
			continue
		}
		desiredKeys[key] = struct{}{}
		if _, ok := state.Catalog.Lookup(label); !ok {
			ops = append(ops, TagOperation{Kind: OpCreateTag, Label: label, ItemID: itemID})
		}
		if _, ok := current[key]; !ok {
			ops = append(ops, TagOperation{Kind: OpAttachTag, Label: label, ItemID: itemID})
		}
	}

	detached := make(map[string]struct{})
	for _, label := range state.Items[itemID] {
		key := arr.NormalizeLabel(label)
		if _, keep := desiredKeys[key]; keep {
			continue
		}
		if _, done := detached[key]; done || !IsManaged(label, opts) {
			continue
		}
		detached[key] = struct{}{}
		ops = append(ops, TagOperation{Kind: OpDetachTag, Label: label, ItemID: itemID})
	}

	sortOps(ops)
	return ops
}

// ApplyToState returns the state that results from executing ops against
// state. Created tags receive ids above the current maximum.
func ApplyToState(state RemoteTagState, ops []TagOperation) RemoteTagState {
	out := state.Clone()
	for _, op := range ops {
		key := arr.NormalizeLabel(op.Label)
		labels := out.Items[op.ItemID]
		switch op.Kind {
		case OpCreateTag:
			if _, ok := out.Catalog.Lookup(op.Label); !ok {
				out.Catalog.Add(arr.Tag{ID: out.Catalog.maxID() + 1, Label: op.Label})
			}
		case OpAttachTag:
			if !slices.ContainsFunc(labels, func(l string) bool { return arr.NormalizeLabel(l) == key }) {
				out.Items[op.ItemID] = append(labels, op.Label)
			}
			if tag, ok := out.Catalog.Lookup(op.Label); ok {
				out.hold(op.ItemID, tag)
			}
		case OpDetachTag:
			out.Items[op.ItemID] = slices.DeleteFunc(labels, func(l string) bool { return arr.NormalizeLabel(l) == key })
			delete(out.Held[op.ItemID], key)
		}
	}
	return out
}
