package categories

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddCategoryMapping_OverwritesOnReRegister(t *testing.T) {
	m := NewMappings()
	m.AddCategoryMapping("100", Movies, "Filme")
	m.AddCategoryMapping("100", MoviesHD, "Filme HD")

	got := m.MapNativeToStandard([]string{"100"})
	require.Len(t, got, 1)
	assert.Equal(t, MoviesHD, got[0].ID)
	assert.Equal(t, 1, m.Len())
}

func TestMapNativeToStandard(t *testing.T) {
	m := NewMappings()
	m.AddCategoryMapping("cat-movies", Movies, "Movies")
	m.AddCategoryMapping("cat-tv", TVHD, "TV HD")
	m.AddCategoryMapping("cat-tv2", TVHD, "TV HD x265")

	tests := []struct {
		name  string
		input []string
		want  []int
	}{
		{
			name:  "resolves in input order",
			input: []string{"cat-tv", "cat-movies"},
			want:  []int{TVHD, Movies},
		},
		{
			name:  "unmapped ids dropped silently",
			input: []string{"nope", "cat-movies"},
			want:  []int{Movies},
		},
		{
			name:  "many-to-one deduplicated",
			input: []string{"cat-tv", "cat-tv2"},
			want:  []int{TVHD},
		},
		{
			name:  "empty input yields empty non-nil slice",
			input: nil,
			want:  []int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.MapNativeToStandard(tt.input)
			require.NotNil(t, got)
			ids := make([]int, len(got))
			for i, c := range got {
				ids[i] = c.ID
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestMapStandardToNative_ParentExpandsToDescendants(t *testing.T) {
	m := NewMappings()
	m.AddCategoryMapping("1000", Movies, "Movies")
	m.AddCategoryMapping("1010", MoviesHD, "Movies HD")
	m.AddCategoryMapping("2000", TVHD, "TV HD")

	got := m.MapStandardToNative([]int{Movies})
	assert.Equal(t, []string{"1000", "1010"}, got)
}

func TestMapStandardToNative_ChildRequestStaysNarrow(t *testing.T) {
	m := NewMappings()
	m.AddCategoryMapping("1000", Movies, "Movies")
	m.AddCategoryMapping("1010", MoviesHD, "Movies HD")

	got := m.MapStandardToNative([]int{MoviesHD})
	assert.Equal(t, []string{"1010"}, got)
}

func TestMapStandardToNative_ExcludesSyntheticGroupers(t *testing.T) {
	m := NewMappings()
	m.AddCategoryMapping("1010", MoviesHD, "Movies HD")
	m.AddCategoryMapping("100020", Movies, "All Movies (group)")

	got := m.MapStandardToNative([]int{Movies})
	assert.Equal(t, []string{"1010"}, got)
}

func TestMapStandardToNative_Deduplicates(t *testing.T) {
	m := NewMappings()
	m.AddCategoryMapping("1010", MoviesHD, "Movies HD")

	// Parent and child both requested; the single native ID appears once.
	got := m.MapStandardToNative([]int{Movies, MoviesHD})
	assert.Equal(t, []string{"1010"}, got)
}

func TestMapStandardToNative_EmptyInput(t *testing.T) {
	m := NewMappings()
	m.AddCategoryMapping("1010", MoviesHD, "Movies HD")

	got := m.MapStandardToNative(nil)
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRoundTrip_NativeSurvivesInverse(t *testing.T) {
	m := NewMappings()
	m.AddCategoryMapping("10", MoviesHD, "HD Movies")
	m.AddCategoryMapping("11", MoviesHD, "HD Remux")
	m.AddCategoryMapping("20", TVSD, "TV SD")

	original := []string{"10", "11", "20"}
	cats := m.MapNativeToStandard(original)

	ids := make([]int, len(cats))
	for i, c := range cats {
		ids[i] = c.ID
	}
	back := m.MapStandardToNative(ids)

	// Many-to-one collapses, so the inverse is a superset of the originals.
	set := make(map[string]struct{}, len(back))
	for _, id := range back {
		set[id] = struct{}{}
	}
	for _, id := range original {
		_, ok := set[id]
		assert.True(t, ok, "native ID %s lost in round trip", id)
	}
}

func TestStandardTree(t *testing.T) {
	m := NewMappings()
	m.AddCategoryMapping("10", MoviesHD, "HD")
	m.AddCategoryMapping("20", TV, "TV")
	m.AddCategoryMapping("30", TVAnime, "Anime")

	tree := m.StandardTree()

	ids := make([]int, len(tree))
	for i, c := range tree {
		ids[i] = c.ID
	}
	// Parents come first; Movies is pulled in as MoviesHD's parent.
	assert.Equal(t, []int{Movies, TV, MoviesHD, TVAnime}, ids)
}

func TestLookupAndNames(t *testing.T) {
	c, ok := Lookup(TVHD)
	require.True(t, ok)
	assert.Equal(t, "TV/HD", c.Name)
	assert.Equal(t, TV, c.ParentID)

	_, ok = Lookup(424242)
	assert.False(t, ok)
	assert.Equal(t, "Unknown", NameOf(424242))
	assert.Equal(t, Other, Fallback().ID)
}
