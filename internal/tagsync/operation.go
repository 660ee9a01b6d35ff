package tagsync

import (
	"fmt"
	"slices"
	"strings"
)

// OpKind is the kind of a tag operation.
type OpKind string

const (
	OpCreateTag OpKind = "CreateTag"
	OpAttachTag OpKind = "AttachTag"
	OpDetachTag OpKind = "DetachTag"
)

// TagOperation is one remote mutation. ItemID names the item whose plan
// produced it; a CreateTag acts on the shared catalog rather than the item.
type TagOperation struct {
	Kind   OpKind `json:"kind"`
	Label  string `json:"label"`
	ItemID int    `json:"item_id"`
}

func (op TagOperation) String() string {
	if op.Kind == OpCreateTag {
		return fmt.Sprintf("%s(%q)", op.Kind, op.Label)
	}
	return fmt.Sprintf("%s(%d, %q)", op.Kind, op.ItemID, op.Label)
}

// ItemPlan is the ordered operation sequence for one item.
type ItemPlan struct {
	ItemID int            `json:"item_id"`
	Ops    []TagOperation `json:"operations"`
}

// Format renders ops one per line.
func Format(ops []TagOperation) string {
	lines := make([]string, len(ops))
	for i, op := range ops {
		lines[i] = op.String()
	}
	return strings.Join(lines, "\n")
}

func kindRank(k OpKind) int {
	switch k {
	case OpCreateTag:
		return 0
	case OpAttachTag:
		return 1
	default:
		return 2
	}
}

// sortOps orders creates, then attaches, then detaches, each by label.
func sortOps(ops []TagOperation) {
	slices.SortStableFunc(ops, func(a, b TagOperation) int {
		if d := kindRank(a.Kind) - kindRank(b.Kind); d != 0 {
			return d
		}
		return strings.Compare(a.Label, b.Label)
	})
}
