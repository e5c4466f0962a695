package core

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrRecipeNotFound is returned for unknown recipe IDs.
var ErrRecipeNotFound = errors.New("recipe not found")

// RecipeStep is one task application inside a recipe.
// Files is only set for multi-file steps.
type RecipeStep struct {
	Task   string         `json:"task" yaml:"task"`
	Files  []string       `json:"files,omitempty" yaml:"files,omitempty"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// Recipe is an ordered list of steps that can be replayed on other files.
type Recipe struct {
	ID          string       `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string       `json:"name" yaml:"name"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Headers     []string     `json:"headers,omitempty" yaml:"headers,omitempty"`
	Steps       []RecipeStep `json:"steps" yaml:"steps"`
	CreatedAt   time.Time    `json:"createdAt,omitempty" yaml:"created_at,omitempty"`
}

// Validate checks the recipe names known tasks.
func (r Recipe) Validate() error {
	if len(r.Steps) == 0 {
		return fmt.Errorf("invalid recipe: no steps")
	}
	for i, st := range r.Steps {
		if _, ok := Get(st.Task); !ok {
			return fmt.Errorf("invalid recipe: step %d: unknown task: %s", i+1, st.Task)
		}
	}
	return nil
}

// RecipeFromHistory builds a recipe that replays the applied tasks of a file.
func RecipeFromHistory(name string, headers []string, applied []AppliedTask) Recipe {
	steps := make([]RecipeStep, 0, len(applied))
	for _, a := range applied {
		steps = append(steps, RecipeStep{
			Task:   a.Task,
			Files:  slices.Clone(a.Files),
			Params: a.Params,
		})
	}
	return Recipe{
		Name:    name,
		Headers: slices.Clone(headers),
		Steps:   steps,
	}
}

// RecipeMatch is a stored recipe scored against a file's headers.
type RecipeMatch struct {
	Recipe Recipe  `json:"recipe"`
	Score  float64 `json:"score"`
}

// RecipeStore keeps saved recipes in memory.
type RecipeStore struct {
	mu      sync.RWMutex
	recipes map[string]Recipe
	now     func() time.Time
}

// NewRecipeStore creates an empty store.
func NewRecipeStore() *RecipeStore {
	return &RecipeStore{
		recipes: make(map[string]Recipe),
		now:     time.Now,
	}
}

// Save stores r under a new ID, or replaces the recipe with r.ID if set.
func (s *RecipeStore) Save(r Recipe) (Recipe, error) {
	if strings.TrimSpace(r.Name) == "" {
		return Recipe{}, fmt.Errorf("invalid recipe: name is required")
	}
	if err := r.Validate(); err != nil {
		return Recipe{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	s.recipes[r.ID] = r
	return r, nil
}

// Get returns a recipe by ID.
func (s *RecipeStore) Get(id string) (Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.recipes[id]
	if !ok {
		return Recipe{}, fmt.Errorf("%w: %s", ErrRecipeNotFound, id)
	}
	return r, nil
}

// List returns all recipes sorted by name.
func (s *RecipeStore) List() []Recipe {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Recipe, 0, len(s.recipes))
	for _, r := range s.recipes {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Delete removes a recipe.
func (s *RecipeStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.recipes[id]; !ok {
		return fmt.Errorf("%w: %s", ErrRecipeNotFound, id)
	}
	delete(s.recipes, id)
	return nil
}

// Match returns recipes whose recorded headers overlap headers by at least
// RecipeMatchThreshold, best first.
func (s *RecipeStore) Match(headers []string) []RecipeMatch {
	var matches []RecipeMatch
	for _, r := range s.List() {
		score := matchHeaders(headers, r.Headers)
		if score >= RecipeMatchThreshold {
			matches = append(matches, RecipeMatch{Recipe: r, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}
