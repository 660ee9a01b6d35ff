package tagsync

import (
	"slices"

	"micromanagerr/internal/arr"
)

// Catalog is the remote tag catalog indexed by normalized label. When the
// remote holds duplicates differing only in case or spacing, the lowest id
// wins.
type Catalog struct {
	byKey map[string]arr.Tag
	byID  map[int]arr.Tag
}

// NewCatalog indexes tags.
func NewCatalog(tags []arr.Tag) *Catalog {
	c := &Catalog{
		byKey: make(map[string]arr.Tag, len(tags)),
		byID:  make(map[int]arr.Tag, len(tags)),
	}
	for _, t := range tags {
		c.Add(t)
	}
	return c
}

// Add records tag, keeping the lowest id per normalized label.
func (c *Catalog) Add(tag arr.Tag) {
	c.byID[tag.ID] = tag
	key := arr.NormalizeLabel(tag.Label)
	if existing, ok := c.byKey[key]; ok && existing.ID <= tag.ID {
		return
	}
	c.byKey[key] = tag
}

// Lookup finds a tag by label.
func (c *Catalog) Lookup(label string) (arr.Tag, bool) {
	if c == nil {
		return arr.Tag{}, false
	}
	t, ok := c.byKey[arr.NormalizeLabel(label)]
	return t, ok
}

// ByID returns the tag with id.
func (c *Catalog) ByID(id int) (arr.Tag, bool) {
	if c == nil {
		return arr.Tag{}, false
	}
	t, ok := c.byID[id]
	return t, ok
}

// Clone returns an independent copy.
func (c *Catalog) Clone() *Catalog {
	out := &Catalog{byKey: make(map[string]arr.Tag), byID: make(map[int]arr.Tag)}
	if c == nil {
		return out
	}
	for k, v := range c.byKey {
		out.byKey[k] = v
	}
	for k, v := range c.byID {
		out.byID[k] = v
	}
	return out
}

func (c *Catalog) maxID() int {
	highest := 0
	if c == nil {
		return highest
	}
	for id := range c.byID {
		highest = max(highest, id)
	}
	return highest
}

// RemoteTagState is a snapshot of the remote catalog and item tag labels.
//
// Held records the tag ids each item actually carries, grouped by normalized
// label. The catalog keeps one id per label, but an item may hold a duplicate
// that differs only in case or spacing; detaching must target the held ids.
type RemoteTagState struct {
	Items   map[int][]string
	Held    map[int]map[string][]int
	Catalog *Catalog
}

// HeldIDs returns the ids item carries under label's normalized key.
func (s RemoteTagState) HeldIDs(itemID int, label string) []int {
	return s.Held[itemID][arr.NormalizeLabel(label)]
}

func (s *RemoteTagState) hold(itemID int, tag arr.Tag) {
	if s.Held == nil {
		s.Held = make(map[int]map[string][]int)
	}
	byKey := s.Held[itemID]
	if byKey == nil {
		byKey = make(map[string][]int)
		s.Held[itemID] = byKey
	}
	key := arr.NormalizeLabel(tag.Label)
	if !slices.Contains(byKey[key], tag.ID) {
		byKey[key] = append(byKey[key], tag.ID)
	}
}

// Clone returns an independent copy.
func (s RemoteTagState) Clone() RemoteTagState {
	out := RemoteTagState{
		Items:   make(map[int][]string, len(s.Items)),
		Catalog: s.Catalog.Clone(),
	}
	for id, labels := range s.Items {
		out.Items[id] = slices.Clone(labels)
	}
	if s.Held != nil {
		out.Held = make(map[int]map[string][]int, len(s.Held))
		for id, byKey := range s.Held {
			held := make(map[string][]int, len(byKey))
			for key, ids := range byKey {
				held[key] = slices.Clone(ids)
			}
			out.Held[id] = held
		}
	}
	return out
}
