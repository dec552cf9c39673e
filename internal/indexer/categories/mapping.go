package categories

import (
	"strconv"
)

// Mapping associates one provider-native category ID with a standard
// category. NativeName is the provider's own label for the category.
type Mapping struct {
	NativeID   string   `json:"nativeId"`
	Category   Category `json:"category"`
	NativeName string   `json:"nativeName,omitempty"`
}

// Mappings is one indexer's ordered category mapping table. Insertion order
// is declaration order; re-registering a native ID overwrites its prior
// mapping in place.
//
// The table is written only while a provider's capabilities are being
// resolved and is read-only afterwards, so it carries no internal locking.
type Mappings struct {
	entries  []Mapping
	byNative map[string]int // native ID -> index into entries
}

// NewMappings creates an empty mapping table.
func NewMappings() *Mappings {
	return &Mappings{byNative: make(map[string]int)}
}

// AddCategoryMapping registers a native ID against a standard category.
// Unknown standard IDs are registered as-is with a synthesized name so a
// provider can carry site-specific categories without losing them.
func (m *Mappings) AddCategoryMapping(nativeID string, standardID int, nativeName string) {
	cat, ok := Lookup(standardID)
	if !ok {
		cat = Category{ID: standardID, Name: "Custom/" + strconv.Itoa(standardID)}
	}
	entry := Mapping{NativeID: nativeID, Category: cat, NativeName: nativeName}

	if idx, exists := m.byNative[nativeID]; exists {
		m.entries[idx] = entry
		return
	}
	m.byNative[nativeID] = len(m.entries)
	m.entries = append(m.entries, entry)
}

// MapNativeToStandard resolves native category IDs to their standard
// categories. Unmapped IDs are dropped; the result is deduplicated and
// preserves input order. An empty input yields an empty, non-nil slice.
func (m *Mappings) MapNativeToStandard(nativeIDs []string) []Category {
	out := make([]Category, 0, len(nativeIDs))
	seen := make(map[int]struct{}, len(nativeIDs))

	for _, id := range nativeIDs {
		idx, ok := m.byNative[id]
		if !ok {
			continue
		}
		cat := m.entries[idx].Category
		if _, dup := seen[cat.ID]; dup {
			continue
		}
		seen[cat.ID] = struct{}{}
		out = append(out, cat)
	}
	return out
}

// MapStandardToNative expands requested standard categories into every
// registered native ID whose mapped category equals a requested category or
// descends from it in the two-level tree. Synthetic grouping entries
// (numeric native ID >= SyntheticCutoff) are excluded. The result is
// deduplicated in registration order.
func (m *Mappings) MapStandardToNative(standardIDs []int) []string {
	if len(standardIDs) == 0 {
		return []string{}
	}

	requested := make(map[int]struct{}, len(standardIDs))
	for _, id := range standardIDs {
		requested[id] = struct{}{}
	}

	out := make([]string, 0, len(m.entries))
	seen := make(map[string]struct{}, len(m.entries))

	for _, entry := range m.entries {
		if isSynthetic(entry.NativeID) {
			continue
		}
		if !matchesRequested(entry.Category, requested) {
			continue
		}
		if _, dup := seen[entry.NativeID]; dup {
			continue
		}
		seen[entry.NativeID] = struct{}{}
		out = append(out, entry.NativeID)
	}
	return out
}

// StandardTree returns the distinct standard categories this table maps to,
// as a forest: parents first, then children in registration order. Parents
// are included even when only a child is mapped, so capability introspection
// always sees complete branches.
func (m *Mappings) StandardTree() []Category {
	present := make(map[int]struct{})
	var parents, children []Category

	add := func(cat Category) {
		if _, dup := present[cat.ID]; dup {
			return
		}
		present[cat.ID] = struct{}{}
		if cat.IsParent() {
			parents = append(parents, cat)
		} else {
			children = append(children, cat)
		}
	}

	for _, entry := range m.entries {
		cat := entry.Category
		if !cat.IsParent() {
			if parent, ok := Lookup(cat.ParentID); ok {
				add(parent)
			}
		}
		add(cat)
	}

	out := make([]Category, 0, len(parents)+len(children))
	out = append(out, parents...)
	out = append(out, children...)
	return out
}

// Entries returns the mapping table in registration order.
func (m *Mappings) Entries() []Mapping {
	out := make([]Mapping, len(m.entries))
	copy(out, m.entries)
	return out
}

// Len returns the number of registered mappings.
func (m *Mappings) Len() int {
	return len(m.entries)
}

func matchesRequested(cat Category, requested map[int]struct{}) bool {
	if _, ok := requested[cat.ID]; ok {
		return true
	}
	if cat.ParentID != 0 {
		if _, ok := requested[cat.ParentID]; ok {
			return true
		}
	}
	return false
}

func isSynthetic(nativeID string) bool {
	n, err := strconv.Atoi(nativeID)
	if err != nil {
		return false
	}
	return n >= SyntheticCutoff
}
