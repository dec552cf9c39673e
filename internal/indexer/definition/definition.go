// Package definition loads provider definitions from YAML files and builds
// configured providers from them.
package definition

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/fetcharr/fetcharr/internal/indexer"
	"github.com/fetcharr/fetcharr/internal/indexer/categories"
	"github.com/fetcharr/fetcharr/internal/indexer/htmlscrape"
	"github.com/fetcharr/fetcharr/internal/indexer/newznab"
)

// Protocol implementation names accepted in definition files.
const (
	ImplNewznab    = "newznab"
	ImplTorznab    = "torznab"
	ImplHTMLScrape = "htmlscrape"
)

// File is one provider definition as written on disk.
type File struct {
	ID             string `yaml:"id"`
	Name           string `yaml:"name"`
	Implementation string `yaml:"implementation"`
	Privacy        string `yaml:"privacy"`
	BaseURL        string `yaml:"baseUrl"`
	Priority       int    `yaml:"priority"`
	Enabled        *bool  `yaml:"enabled"`

	PageSize           int  `yaml:"pageSize"`
	SupportsPagination bool `yaml:"supportsPagination"`
	MinQueryLength     int  `yaml:"minQueryLength"`

	Newznab    *newznab.Settings    `yaml:"newznab"`
	HTMLScrape *htmlscrape.Settings `yaml:"htmlscrape"`

	// CategoryMappings seeds the native-to-standard table for providers
	// whose categories are not discoverable.
	CategoryMappings []CategoryMapping `yaml:"categoryMappings"`
}

// CategoryMapping is one native-to-standard category table entry.
type CategoryMapping struct {
	NativeID   string `yaml:"id"`
	StandardID int    `yaml:"cat"`
	Name       string `yaml:"desc"`
}

// Loaded pairs a parsed definition file with its assigned numeric ID.
type Loaded struct {
	Definition indexer.Definition
	File       File
}

// Loader reads provider definition files from a directory.
type Loader struct {
	dir    string
	logger zerolog.Logger
}

// NewLoader creates a definition loader over one directory.
func NewLoader(dir string, logger zerolog.Logger) *Loader {
	return &Loader{
		dir:    dir,
		logger: logger.With().Str("component", "definitions").Logger(),
	}
}

// Load parses every .yml/.yaml file in the directory. Files that fail to
// parse or validate are logged and skipped so one bad definition cannot
// keep the rest from loading. Numeric IDs are assigned by sorted file
// order, stable across restarts as long as the file set is unchanged.
func (l *Loader) Load() ([]Loaded, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read definitions directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yml" && ext != ".yaml" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	loaded := make([]Loaded, 0, len(names))
	for i, name := range names {
		path := filepath.Join(l.dir, name)
		file, err := parseFile(path)
		if err != nil {
			l.logger.Warn().Err(err).Str("file", name).Msg("skipping bad definition")
			continue
		}
		def := toDefinition(int64(i+1), file)
		loaded = append(loaded, Loaded{Definition: def, File: *file})
		l.logger.Debug().
			Str("file", name).
			Str("indexer", def.Name).
			Str("implementation", file.Implementation).
			Msg("loaded definition")
	}

	l.logger.Info().Int("count", len(loaded)).Msg("definitions loaded")
	return loaded, nil
}

// Build constructs the provider for a loaded definition using its declared
// capabilities.
func Build(loaded Loaded) (*indexer.Provider, error) {
	return BuildWith(loaded, nil)
}

// BuildWith constructs the provider using a discovered capability set in
// place of the declared one. A nil caps keeps the declared capabilities.
// Scrape providers always use their static capabilities.
func BuildWith(loaded Loaded, caps *indexer.Capabilities) (*indexer.Provider, error) {
	switch strings.ToLower(loaded.File.Implementation) {
	case ImplNewznab, ImplTorznab:
		if loaded.File.Newznab == nil {
			return nil, fmt.Errorf("%s: missing newznab settings block", loaded.Definition.Name)
		}
		if caps == nil {
			caps = Declared(loaded.File)
		}
		return newznab.NewProvider(loaded.Definition, *loaded.File.Newznab, caps), nil
	case ImplHTMLScrape:
		if loaded.File.HTMLScrape == nil {
			return nil, fmt.Errorf("%s: missing htmlscrape settings block", loaded.Definition.Name)
		}
		if err := loaded.File.HTMLScrape.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", loaded.Definition.Name, err)
		}
		return htmlscrape.NewProvider(loaded.Definition, *loaded.File.HTMLScrape), nil
	default:
		return nil, fmt.Errorf("%s: unknown implementation %q", loaded.Definition.Name, loaded.File.Implementation)
	}
}

func parseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("invalid yaml: %w", err)
	}
	if file.Name == "" {
		return nil, fmt.Errorf("definition has no name")
	}
	if file.Implementation == "" {
		return nil, fmt.Errorf("definition has no implementation")
	}
	if file.BaseURL == "" {
		return nil, fmt.Errorf("definition has no baseUrl")
	}
	return &file, nil
}

func toDefinition(id int64, file *File) indexer.Definition {
	enabled := true
	if file.Enabled != nil {
		enabled = *file.Enabled
	}
	return indexer.Definition{
		ID:                 id,
		Name:               file.Name,
		Protocol:           protocolOf(file.Implementation),
		Privacy:            privacyOf(file.Privacy),
		BaseURL:            strings.TrimSuffix(file.BaseURL, "/"),
		Priority:           file.Priority,
		Enabled:            enabled,
		PageSize:           file.PageSize,
		SupportsPagination: file.SupportsPagination,
		MinQueryLength:     file.MinQueryLength,
	}
}

func protocolOf(implementation string) indexer.Protocol {
	switch strings.ToLower(implementation) {
	case ImplNewznab:
		return indexer.ProtocolUsenet
	default:
		return indexer.ProtocolTorrent
	}
}

func privacyOf(raw string) indexer.Privacy {
	switch strings.ToLower(raw) {
	case "private":
		return indexer.PrivacyPrivate
	case "semi-private":
		return indexer.PrivacySemiPrivate
	default:
		return indexer.PrivacyPublic
	}
}

// Declared builds the capability set seeded from the definition file. It
// stands in until live discovery replaces it.
func Declared(file File) *indexer.Capabilities {
	q := []string{indexer.ParamQ}
	caps := &indexer.Capabilities{
		SearchParams:      q,
		TVSearchParams:    append([]string{}, q...),
		MovieSearchParams: append([]string{}, q...),
		MusicSearchParams: append([]string{}, q...),
		BookSearchParams:  append([]string{}, q...),
		Categories:        categories.NewMappings(),
	}
	for _, m := range file.CategoryMappings {
		caps.Categories.AddCategoryMapping(m.NativeID, m.StandardID, m.Name)
	}
	return caps
}
