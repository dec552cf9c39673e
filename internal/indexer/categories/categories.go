// Package categories implements the standardized category taxonomy and the
// per-indexer bidirectional mapping between native category IDs and the
// standard Newznab-style category tree.
package categories

// Standard Newznab categories.
// https://newznab.readthedocs.io/en/latest/misc/api/#predefined-categories
const (
	// Main categories
	Console = 1000
	Movies  = 2000
	Audio   = 3000
	PC      = 4000
	TV      = 5000
	XXX     = 6000
	Books   = 7000
	Other   = 8000

	// Movies subcategories
	MoviesForeign = 2010
	MoviesOther   = 2020
	MoviesSD      = 2030
	MoviesHD      = 2040
	MoviesUHD     = 2045
	MoviesBluRay  = 2050
	Movies3D      = 2060
	MoviesDVD     = 2070
	MoviesWebDL   = 2080

	// Audio subcategories
	AudioMP3       = 3010
	AudioVideo     = 3020
	AudioAudiobook = 3030
	AudioLossless  = 3040
	AudioOther     = 3050
	AudioForeign   = 3060

	// TV subcategories
	TVForeign = 5010
	TVOther   = 5020
	TVSD      = 5030
	TVHD      = 5040
	TVUHD     = 5045
	TVSport   = 5060
	TVAnime   = 5070
	TVDoc     = 5080
	TVWebDL   = 5090

	// Books subcategories
	BooksMags      = 7010
	BooksEBook     = 7020
	BooksComics    = 7030
	BooksTechnical = 7040
	BooksOther     = 7050
	BooksForeign   = 7060

	// Other subcategories
	OtherMisc   = 8010
	OtherHashed = 8020
)

// SyntheticCutoff is the first native ID value reserved for synthetic
// grouping entries used only for UI presentation. Mappings at or above this
// value are never emitted in outbound requests.
const SyntheticCutoff = 100000

// Category is one node of the standard two-level taxonomy. ParentID is zero
// for top-level categories.
type Category struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	ParentID int    `json:"parentId,omitempty"`
}

// IsParent reports whether the category is a top-level group.
func (c Category) IsParent() bool {
	return c.ParentID == 0
}

var standard = []Category{
	{ID: Console, Name: "Console"},
	{ID: Movies, Name: "Movies"},
	{ID: MoviesForeign, Name: "Movies/Foreign", ParentID: Movies},
	{ID: MoviesOther, Name: "Movies/Other", ParentID: Movies},
	{ID: MoviesSD, Name: "Movies/SD", ParentID: Movies},
	{ID: MoviesHD, Name: "Movies/HD", ParentID: Movies},
	{ID: MoviesUHD, Name: "Movies/UHD", ParentID: Movies},
	{ID: MoviesBluRay, Name: "Movies/BluRay", ParentID: Movies},
	{ID: Movies3D, Name: "Movies/3D", ParentID: Movies},
	{ID: MoviesDVD, Name: "Movies/DVD", ParentID: Movies},
	{ID: MoviesWebDL, Name: "Movies/WEB-DL", ParentID: Movies},
	{ID: Audio, Name: "Audio"},
	{ID: AudioMP3, Name: "Audio/MP3", ParentID: Audio},
	{ID: AudioVideo, Name: "Audio/Video", ParentID: Audio},
	{ID: AudioAudiobook, Name: "Audio/Audiobook", ParentID: Audio},
	{ID: AudioLossless, Name: "Audio/Lossless", ParentID: Audio},
	{ID: AudioOther, Name: "Audio/Other", ParentID: Audio},
	{ID: AudioForeign, Name: "Audio/Foreign", ParentID: Audio},
	{ID: PC, Name: "PC"},
	{ID: TV, Name: "TV"},
	{ID: TVForeign, Name: "TV/Foreign", ParentID: TV},
	{ID: TVOther, Name: "TV/Other", ParentID: TV},
	{ID: TVSD, Name: "TV/SD", ParentID: TV},
	{ID: TVHD, Name: "TV/HD", ParentID: TV},
	{ID: TVUHD, Name: "TV/UHD", ParentID: TV},
	{ID: TVSport, Name: "TV/Sport", ParentID: TV},
	{ID: TVAnime, Name: "TV/Anime", ParentID: TV},
	{ID: TVDoc, Name: "TV/Documentary", ParentID: TV},
	{ID: TVWebDL, Name: "TV/WEB-DL", ParentID: TV},
	{ID: XXX, Name: "XXX"},
	{ID: Books, Name: "Books"},
	{ID: BooksMags, Name: "Books/Mags", ParentID: Books},
	{ID: BooksEBook, Name: "Books/EBook", ParentID: Books},
	{ID: BooksComics, Name: "Books/Comics", ParentID: Books},
	{ID: BooksTechnical, Name: "Books/Technical", ParentID: Books},
	{ID: BooksOther, Name: "Books/Other", ParentID: Books},
	{ID: BooksForeign, Name: "Books/Foreign", ParentID: Books},
	{ID: Other, Name: "Other"},
	{ID: OtherMisc, Name: "Other/Misc", ParentID: Other},
	{ID: OtherHashed, Name: "Other/Hashed", ParentID: Other},
}

var standardByID = func() map[int]Category {
	m := make(map[int]Category, len(standard))
	for _, c := range standard {
		m[c.ID] = c
	}
	return m
}()

// All returns the full standard category table, top-level groups before
// their children.
func All() []Category {
	out := make([]Category, len(standard))
	copy(out, standard)
	return out
}

// Lookup resolves a standard category by ID.
func Lookup(id int) (Category, bool) {
	c, ok := standardByID[id]
	return c, ok
}

// NameOf returns a human-readable name for a standard category ID.
func NameOf(id int) string {
	if c, ok := standardByID[id]; ok {
		return c.Name
	}
	return "Unknown"
}

// Fallback returns the category applied to releases with no resolvable
// native category.
func Fallback() Category {
	return standardByID[Other]
}

// MovieCategories returns all movie-related standard categories.
func MovieCategories() []int {
	return childrenOf(Movies)
}

// TVCategories returns all TV-related standard categories.
func TVCategories() []int {
	return childrenOf(TV)
}

// AudioCategories returns all audio-related standard categories.
func AudioCategories() []int {
	return childrenOf(Audio)
}

// BookCategories returns all book-related standard categories.
func BookCategories() []int {
	return childrenOf(Books)
}

func childrenOf(parent int) []int {
	out := []int{parent}
	for _, c := range standard {
		if c.ParentID == parent {
			out = append(out, c.ID)
		}
	}
	return out
}
