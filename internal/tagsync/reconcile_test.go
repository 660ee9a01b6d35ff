package tagsync

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"

	"micromanagerr/internal/arr"
	"micromanagerr/internal/classify"
	"micromanagerr/internal/evidence"
)

func stateWith(tags []arr.Tag, items map[int][]string) RemoteTagState {
	return RemoteTagState{Items: items, Catalog: NewCatalog(tags)}
}

func TestReconcileEmptyRemoteCreatesThenAttaches(t *testing.T) {
	c := classify.Classification{HDR: classify.HDR{Kind: classify.HDR10Plus}}
	got := Reconcile(c, stateWith(nil, nil), 42, DefaultOptions())
	want := []TagOperation{
		{Kind: OpCreateTag, Label: "hdr10plus", ItemID: 42},
		{Kind: OpAttachTag, Label: "hdr10plus", ItemID: 42},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ops mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcileDetachesOnlyManagedLabels(t *testing.T) {
	state := stateWith(
		[]arr.Tag{{ID: 1, Label: "mm:hdr10"}, {ID: 2, Label: "user-favorite"}},
		map[int][]string{7: {"mm:hdr10", "user-favorite"}},
	)
	got := Reconcile(classify.Classification{}, state, 7, DefaultOptions())
	want := []TagOperation{{Kind: OpDetachTag, Label: "mm:hdr10", ItemID: 7}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ops mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcileNoopWhenInSync(t *testing.T) {
	c := classify.Classification{
		HDR:         classify.HDR{Kind: classify.HybridHDR10PlusDV},
		DolbyVision: &classify.DolbyVision{Profile: 8, HasFallback: true},
	}
	state := stateWith(
		[]arr.Tag{{ID: 3, Label: "HDR10PLUS-DV"}, {ID: 4, Label: "dv-p8-fallback"}},
		map[int][]string{1: {"HDR10PLUS-DV", "dv-p8-fallback", "4k"}},
	)
	if got := Reconcile(c, state, 1, DefaultOptions()); len(got) != 0 {
		t.Fatalf("expected no ops, got %v", got)
	}
}

func TestReconcileReplacesStaleManagedLabel(t *testing.T) {
	c := classify.Classification{HDR: classify.HDR{Kind: classify.HDR10}}
	opts := Options{Prefix: "mm-", ManagedPrefixes: []string{"mm:"}, IMAXThreshold: 0.5, EditionThreshold: 0.5}
	state := stateWith(
		[]arr.Tag{{ID: 1, Label: "mm-hdr10"}, {ID: 2, Label: "mm-hlg"}, {ID: 3, Label: "hlg"}, {ID: 4, Label: "mm:old"}},
		map[int][]string{9: {"mm-hlg", "hlg", "mm:old", "anime"}},
	)
	got := Reconcile(c, state, 9, opts)
	want := []TagOperation{
		{Kind: OpAttachTag, Label: "mm-hdr10", ItemID: 9},
		{Kind: OpDetachTag, Label: "hlg", ItemID: 9},
		{Kind: OpDetachTag, Label: "mm-hlg", ItemID: 9},
		{Kind: OpDetachTag, Label: "mm:old", ItemID: 9},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ops mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcileMatchesCatalogCaseInsensitively(t *testing.T) {
	c := classify.Classification{IMAX: classify.IMAX{Enhanced: true, Confidence: 1}}
	state := stateWith([]arr.Tag{{ID: 5, Label: "IMAX-Enhanced"}}, map[int][]string{2: nil})
	got := Reconcile(c, state, 2, DefaultOptions())
	want := []TagOperation{{Kind: OpAttachTag, Label: "imax-enhanced", ItemID: 2}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ops mismatch (-want +got):\n%s", diff)
	}
}

func TestDesiredLabels(t *testing.T) {
	tests := []struct {
		name string
		c    classify.Classification
		opts Options
		want []string
	}{
		{
			name: "empty",
			opts: DefaultOptions(),
		},
		{
			name: "everything",
			c: classify.Classification{
				HDR:         classify.HDR{Kind: classify.HDR10},
				DolbyVision: &classify.DolbyVision{Profile: 7},
				IMAX:        classify.IMAX{Enhanced: true, Confidence: 0.5},
				Edition:     &classify.EditionGuess{Label: "Director's Cut", Confidence: 0.6},
			},
			opts: DefaultOptions(),
			want: []string{"dv-p7", "edition-directors-cut", "hdr10", "imax-enhanced"},
		},
		{
			name: "below thresholds",
			c: classify.Classification{
				HDR:     classify.HDR{Kind: classify.HLG},
				IMAX:    classify.IMAX{Enhanced: true, Confidence: 0.5},
				Edition: &classify.EditionGuess{Label: classify.LabelLikelyExtended, Confidence: 0.4},
			},
			opts: Options{IMAXThreshold: 0.9, EditionThreshold: 0.5},
			want: []string{"hlg"},
		},
		{
			name: "prefixed",
			c: classify.Classification{
				HDR:         classify.HDR{Kind: classify.HybridHDR10PlusDV},
				DolbyVision: &classify.DolbyVision{Profile: 8, HasFallback: true},
				Edition:     &classify.EditionGuess{Label: classify.LabelLikelyExtended, Confidence: 0.4},
			},
			opts: Options{Prefix: "mm-", EditionThreshold: 0.4},
			want: []string{"mm-dv-p8-fallback", "mm-edition-likely-extended", "mm-hdr10plus-dv"},
		},
		{
			name: "dv without profile",
			c:    classify.Classification{DolbyVision: &classify.DolbyVision{}},
			opts: DefaultOptions(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, DesiredLabels(tt.c, tt.opts)); diff != "" {
				t.Fatalf("labels mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIsManaged(t *testing.T) {
	opts := Options{Prefix: "mm-", ManagedPrefixes: []string{"mm:", "legacy/"}}
	managed := []string{"mm:anything", "MM:HDR10", "mm-custom", "legacy/x", "hdr10", "HLG", "dv-p5", "dv-p8-fallback", "edition-extended", "imax-enhanced"}
	foreign := []string{"user-favorite", "4k", "hdr", "dv-profile", "edition", "imax", "", "  "}
	for _, label := range managed {
		if !IsManaged(label, opts) {
			t.Errorf("expected %q managed", label)
		}
	}
	for _, label := range foreign {
		if IsManaged(label, opts) {
			t.Errorf("expected %q foreign", label)
		}
	}
}

func TestApplyToState(t *testing.T) {
	state := stateWith([]arr.Tag{{ID: 4, Label: "keep"}}, map[int][]string{1: {"keep", "mm:gone"}})
	ops := []TagOperation{
		{Kind: OpCreateTag, Label: "hdr10", ItemID: 1},
		{Kind: OpAttachTag, Label: "hdr10", ItemID: 1},
		{Kind: OpDetachTag, Label: "MM:GONE", ItemID: 1},
	}
	next := ApplyToState(state, ops)
	if diff := cmp.Diff([]string{"keep", "hdr10"}, next.Items[1]); diff != "" {
		t.Fatalf("items mismatch (-want +got):\n%s", diff)
	}
	if tag, ok := next.Catalog.Lookup("hdr10"); !ok || tag.ID != 5 {
		t.Fatalf("expected created tag id 5, got %+v %v", tag, ok)
	}
	if _, ok := state.Catalog.Lookup("hdr10"); ok {
		t.Fatal("ApplyToState mutated the input catalog")
	}
	if len(state.Items[1]) != 2 {
		t.Fatalf("ApplyToState mutated the input items: %v", state.Items[1])
	}
}

// randomClassification draws from the full output space of the classifier.
func randomClassification(r *rand.Rand) classify.Classification {
	kinds := []classify.HDRKind{classify.HDRNone, classify.HDR10, classify.HDR10Plus, classify.HLG, classify.HybridHDR10PlusDV}
	c := classify.Classification{HDR: classify.HDR{Kind: kinds[r.IntN(len(kinds))]}}
	if r.IntN(2) == 0 {
		c.DolbyVision = &classify.DolbyVision{Profile: []int{4, 5, 7, 8}[r.IntN(4)], HasFallback: r.IntN(2) == 0}
	}
	if r.IntN(2) == 0 {
		c.IMAX = classify.IMAX{Enhanced: true, Confidence: []float64{0.5, 1}[r.IntN(2)]}
	}
	if r.IntN(2) == 0 {
		labels := append(classify.Vocabulary(), classify.LabelLikelyExtended, classify.LabelLikelyAlternate)
		c.Edition = &classify.EditionGuess{
			Label:      labels[r.IntN(len(labels))],
			Confidence: []float64{0.4, 0.6, 1}[r.IntN(3)],
			Signals:    []string{classify.SignalFilenameKeyword},
			Sources:    []evidence.Source{evidence.SourceContainer},
		}
	}
	return c
}

var labelPool = []string{
	"hdr10", "HDR10Plus", "hlg", "hdr10plus-dv", "dv-p5", "dv-p8-fallback", "imax-enhanced",
	"edition-extended", "mm:hdr10", "mm:HDR10", "mm:hdr10 ", "mm:stale", "MM:Old", "mm-hlg",
	"user-favorite", "4k", "anime", "kids", "imax", "Edition",
}

func randomState(r *rand.Rand, itemID int) RemoteTagState {
	var tags []arr.Tag
	var itemLabels []string
	for i, label := range labelPool {
		if r.IntN(2) == 0 {
			continue
		}
		tags = append(tags, arr.Tag{ID: i + 1, Label: label})
		if r.IntN(2) == 0 {
			itemLabels = append(itemLabels, label)
		}
	}
	return stateWith(tags, map[int][]string{itemID: itemLabels, itemID + 1: {"mm:other-item"}})
}

func TestReconcileProperties(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	optionSets := []Options{
		DefaultOptions(),
		{Prefix: "mm-", ManagedPrefixes: []string{"mm:"}, IMAXThreshold: 0.5, EditionThreshold: 0.5},
		{IMAXThreshold: 1, EditionThreshold: 0},
	}
	const itemID = 11
	for i := range 500 {
		c := randomClassification(r)
		state := randomState(r, itemID)
		opts := optionSets[i%len(optionSets)]

		ops := Reconcile(c, state, itemID, opts)

		// Safety: foreign labels never detached.
		for _, op := range ops {
			if op.Kind == OpDetachTag && !IsManaged(op.Label, opts) {
				t.Fatalf("iteration %d: detached foreign label %q", i, op.Label)
			}
			if op.ItemID != itemID {
				t.Fatalf("iteration %d: op for wrong item %v", i, op)
			}
		}

		// Ordering: creates before attaches of the same label, detaches last.
		lastAttach, firstDetach := -1, len(ops)
		for j, op := range ops {
			switch op.Kind {
			case OpAttachTag:
				lastAttach = j
				created := slices.IndexFunc(ops, func(o TagOperation) bool { return o.Kind == OpCreateTag && o.Label == op.Label })
				if created > j {
					t.Fatalf("iteration %d: create after attach for %q", i, op.Label)
				}
			case OpDetachTag:
				firstDetach = min(firstDetach, j)
			}
		}
		if lastAttach > firstDetach {
			t.Fatalf("iteration %d: detach before attach in %v", i, ops)
		}

		// Idempotence.
		next := ApplyToState(state, ops)
		if again := Reconcile(c, next, itemID, opts); len(again) != 0 {
			t.Fatalf("iteration %d: not idempotent, second pass %v (first %v)", i, again, ops)
		}

		// Foreign labels survive.
		for _, label := range state.Items[itemID] {
			if !IsManaged(label, opts) && !slices.Contains(next.Items[itemID], label) {
				t.Fatalf("iteration %d: foreign label %q lost", i, label)
			}
		}
		if diff := cmp.Diff(state.Items[itemID+1], next.Items[itemID+1]); diff != "" {
			t.Fatalf("iteration %d: other item touched:\n%s", i, diff)
		}
	}
}

func TestFormat(t *testing.T) {
	ops := []TagOperation{
		{Kind: OpCreateTag, Label: "hdr10plus", ItemID: 3},
		{Kind: OpAttachTag, Label: "hdr10plus", ItemID: 3},
	}
	want := "CreateTag(\"hdr10plus\")\nAttachTag(3, \"hdr10plus\")"
	if got := Format(ops); got != want {
		t.Fatalf("Format = %q", got)
	}
}
