// Package catalog holds the read-only exercise catalog the service browses
// and picks from. It is loaded once at start-up and never mutated.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	ErrEmptyID     = errors.New("exercise id empty")
	ErrDuplicateID = errors.New("duplicate exercise id")
)

type Exercise struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	BodyParts []string `json:"bodyParts"`
	ImageRef  string   `json:"imageRef,omitempty"`
}

// Catalog is an ordered, immutable collection of exercises.
// Exercises handed out share their BodyParts slices with the catalog
// and must be treated as read-only.
type Catalog struct {
	exercises []Exercise
	positions map[string]int
}

func New(exercises []Exercise) (*Catalog, error) {
	c := &Catalog{
		exercises: make([]Exercise, 0, len(exercises)),
		positions: make(map[string]int, len(exercises)),
	}
	for i, e := range exercises {
		if strings.TrimSpace(e.ID) == "" {
			return nil, fmt.Errorf("exercise at position %d [%s]: %w", i, e.Name, ErrEmptyID)
		}
		if _, ok := c.positions[e.ID]; ok {
			return nil, fmt.Errorf("exercise [%s]: %w", e.ID, ErrDuplicateID)
		}
		c.positions[e.ID] = len(c.exercises)
		c.exercises = append(c.exercises, e)
	}
	return c, nil
}

// LoadFile reads a JSON array of exercises from path.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	var exercises []Exercise
	if err := json.Unmarshal(data, &exercises); err != nil {
		return nil, fmt.Errorf("unmarshal catalog file [%s]: %w", path, err)
	}

	return New(exercises)
}

func (c *Catalog) Get(id string) (Exercise, bool) {
	pos, ok := c.positions[id]
	if !ok {
		return Exercise{}, false
	}
	return c.exercises[pos], true
}

func (c *Catalog) Contains(id string) bool {
	_, ok := c.positions[id]
	return ok
}

// At returns the exercise at catalog position i. Panics if i is out of range.
func (c *Catalog) At(i int) Exercise {
	return c.exercises[i]
}

// All returns the exercises in catalog order. The returned slice is a copy.
func (c *Catalog) All() []Exercise {
	all := make([]Exercise, len(c.exercises))
	copy(all, c.exercises)
	return all
}

func (c *Catalog) Len() int {
	return len(c.exercises)
}
