// Package browse computes the exercise lists screens render: the catalog
// filtered by category, search text and favorites, plus batch selection.
package browse

import (
	"strings"

	"github.com/2beens/gymtracker/internal/gymstats/catalog"
	"github.com/2beens/gymtracker/internal/telemetry/metrics"
)

// Query is the transient filter state of one screen.
type Query struct {
	Category    string
	LocalSearch string
	// ExternalSearch, when set, takes precedence over LocalSearch.
	ExternalSearch *string
}

// SearchText returns the effective search text, lower-cased and trimmed.
func (q Query) SearchText() string {
	search := q.LocalSearch
	if q.ExternalSearch != nil {
		search = *q.ExternalSearch
	}
	return strings.ToLower(strings.TrimSpace(search))
}

type favoritesView interface {
	IsFavorite(id string) bool
	Revision() uint64
}

// Filter applies q to exercises: category first, then search on the
// exercise name. Order is preserved. isFavorite is only consulted for
// the favorites category and may be nil otherwise.
func Filter(exercises []catalog.Exercise, q Query, isFavorite func(id string) bool) []catalog.Exercise {
	m := newMatcher(q, isFavorite)
	filtered := make([]catalog.Exercise, 0, len(exercises))
	for _, e := range exercises {
		if m.matches(e) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

type matcher struct {
	category   string
	targets    []string
	search     string
	isFavorite func(id string) bool
}

func newMatcher(q Query, isFavorite func(id string) bool) matcher {
	category := normalizeCategory(q.Category)
	m := matcher{
		category:   category,
		search:     q.SearchText(),
		isFavorite: isFavorite,
	}
	if category != CategoryAll && category != CategoryFavorites {
		m.targets = targetsFor(category)
	}
	return m
}

func (m matcher) matches(e catalog.Exercise) bool {
	switch m.category {
	case CategoryAll:
	case CategoryFavorites:
		if m.isFavorite == nil || !m.isFavorite(e.ID) {
			return false
		}
	default:
		if !matchesBodyParts(e.BodyParts, m.targets) {
			return false
		}
	}

	if m.search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(e.Name), m.search)
}

// Engine filters one catalog against the live favorites set and memoizes
// the results.
type Engine struct {
	catalog   *catalog.Catalog
	favorites favoritesView
	cache     *resultCache
}

type EngineParams struct {
	Catalog   *catalog.Catalog
	Favorites favoritesView
	// CacheSizeMB of 0 disables result memoization.
	CacheSizeMB int
	Metrics     *metrics.Manager
}

func NewEngine(params EngineParams) *Engine {
	e := &Engine{
		catalog:   params.Catalog,
		favorites: params.Favorites,
	}
	if params.CacheSizeMB > 0 {
		e.cache = newResultCache(params.CacheSizeMB, params.Metrics)
	}
	return e
}

func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Results returns the exercises matching q, in catalog order.
func (e *Engine) Results(q Query) []catalog.Exercise {
	positions := e.positions(q)
	results := make([]catalog.Exercise, 0, len(positions))
	for _, pos := range positions {
		results = append(results, e.catalog.At(pos))
	}
	return results
}

func (e *Engine) positions(q Query) []int {
	m := newMatcher(q, e.favorites.IsFavorite)

	var key []byte
	if e.cache != nil {
		var revision uint64
		if m.category == CategoryFavorites {
			// read before filtering: a result computed while the set changes
			// is stored under the older revision and never served again
			revision = e.favorites.Revision()
		}
		key = cacheKey(m.category, m.search, revision)
		if positions, ok := e.cache.get(key); ok {
			return positions
		}
	}

	positions := make([]int, 0)
	for i := 0; i < e.catalog.Len(); i++ {
		if m.matches(e.catalog.At(i)) {
			positions = append(positions, i)
		}
	}

	if e.cache != nil {
		e.cache.set(key, positions)
	}
	return positions
}
