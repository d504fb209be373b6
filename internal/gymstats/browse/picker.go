package browse

import (
	"github.com/2beens/gymtracker/internal/gymstats/catalog"
)

type State int

const (
	Idle State = iota
	Selecting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Selecting:
		return "selecting"
	default:
		return "unknown"
	}
}

// Picker is the transient browse state of one screen: the current query
// and a batch selection. Selected ids survive query changes; CommitBatch
// only resolves those visible under the current query.
// A Picker is not safe for concurrent use.
type Picker struct {
	engine   *Engine
	query    Query
	selected map[string]struct{}
	onSelect func([]catalog.Exercise)
}

// NewPicker creates an idle picker showing the whole catalog. onSelect
// receives every committed batch and may be nil.
func NewPicker(engine *Engine, onSelect func([]catalog.Exercise)) *Picker {
	return &Picker{
		engine:   engine,
		query:    Query{Category: CategoryAll},
		selected: make(map[string]struct{}),
		onSelect: onSelect,
	}
}

func (p *Picker) SetCategory(category string) {
	p.query.Category = category
}

func (p *Picker) SetSearch(search string) {
	p.query.LocalSearch = search
}

// SetExternalSearch sets a search text supplied by an embedding screen.
// It wins over the local search until cleared with nil.
func (p *Picker) SetExternalSearch(search *string) {
	if search == nil {
		p.query.ExternalSearch = nil
		return
	}
	s := *search
	p.query.ExternalSearch = &s
}

func (p *Picker) Query() Query {
	return p.query
}

func (p *Picker) Results() []catalog.Exercise {
	return p.engine.Results(p.query)
}

// ToggleSelection flips the selection of id and reports whether it is
// selected afterwards.
func (p *Picker) ToggleSelection(id string) bool {
	if _, ok := p.selected[id]; ok {
		delete(p.selected, id)
		return false
	}
	p.selected[id] = struct{}{}
	return true
}

func (p *Picker) IsSelected(id string) bool {
	_, ok := p.selected[id]
	return ok
}

func (p *Picker) SelectedCount() int {
	return len(p.selected)
}

func (p *Picker) ClearSelection() {
	clear(p.selected)
}

func (p *Picker) State() State {
	if len(p.selected) == 0 {
		return Idle
	}
	return Selecting
}

// CommitBatch resolves the selected exercises among the current results,
// in catalog order, hands them to onSelect and clears the selection.
// Committing an idle picker does nothing.
func (p *Picker) CommitBatch() []catalog.Exercise {
	if p.State() == Idle {
		return nil
	}

	var batch []catalog.Exercise
	for _, e := range p.Results() {
		if _, ok := p.selected[e.ID]; ok {
			batch = append(batch, e)
		}
	}
	p.ClearSelection()

	if p.onSelect != nil {
		p.onSelect(batch)
	}
	return batch
}
