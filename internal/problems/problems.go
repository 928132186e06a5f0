package problems

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrNoProblem is returned when the catalog cannot satisfy a request.
var ErrNoProblem = errors.New("no matching problem")

// Problem is the coordinator's view of a catalog entry. The statement, tests
// and grading live in the external problem service; rooms only need an id,
// a difficulty tag and per-language starter templates.
type Problem struct {
	ID         string            `yaml:"id"`
	Title      string            `yaml:"title"`
	Difficulty string            `yaml:"difficulty"`
	Templates  map[string]string `yaml:"templates"`
}

// Source hands problems to rooms and matchmaking.
type Source interface {
	Get(id string) (*Problem, error)
	// Random picks a random problem, optionally filtered by difficulty.
	// Empty difficulty means any.
	Random(difficulty string) (*Problem, error)
}

// defaultTemplates back language switches when the problem carries no starter
// for that language.
var defaultTemplates = map[string]string{
	"python":     "# Write your solution here\n",
	"javascript": "// Write your solution here\n",
	"go":         "package main\n\nfunc main() {\n}\n",
	"java":       "public class Solution {\n    public static void main(String[] args) {\n    }\n}\n",
	"cpp":        "#include <iostream>\n\nint main() {\n    return 0;\n}\n",
}

// TemplateFor returns the starter document for a language, preferring the
// problem's own template. p may be nil for plain pair rooms with no problem.
func TemplateFor(p *Problem, language string) string {
	if p != nil {
		if tpl, ok := p.Templates[language]; ok {
			return tpl
		}
	}
	return defaultTemplates[language]
}

// Catalog is a YAML-backed static Source standing in for the external problem
// service.
type Catalog struct {
	mu       sync.Mutex
	problems []*Problem
	byID     map[string]*Problem
	rng      *rand.Rand
}

type catalogFile struct {
	Problems []*Problem `yaml:"problems"`
}

// FromFile loads a catalog from a YAML file.
func FromFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read problems file: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse problems file: %w", err)
	}

	return FromSlice(file.Problems), nil
}

// Builtin returns a small embedded catalog so the server can run without a
// problems file.
func Builtin() *Catalog {
	return FromSlice([]*Problem{
		{
			ID:         "two-sum",
			Title:      "Two Sum",
			Difficulty: "easy",
			Templates: map[string]string{
				"python": "def two_sum(nums, target):\n    pass\n",
				"go":     "package main\n\nfunc twoSum(nums []int, target int) []int {\n\treturn nil\n}\n",
			},
		},
		{
			ID:         "lru-cache",
			Title:      "LRU Cache",
			Difficulty: "medium",
			Templates: map[string]string{
				"python": "class LRUCache:\n    def __init__(self, capacity):\n        pass\n",
			},
		},
		{
			ID:         "median-streams",
			Title:      "Median of Data Streams",
			Difficulty: "hard",
			Templates:  map[string]string{},
		},
	})
}

// FromSlice builds a catalog from in-memory problems. Used by tests and as a
// fallback when no catalog file is configured.
func FromSlice(list []*Problem) *Catalog {
	byID := make(map[string]*Problem, len(list))
	for _, p := range list {
		byID[p.ID] = p
	}
	return &Catalog{
		problems: list,
		byID:     byID,
		rng:      rand.New(rand.NewSource(rand.Int63())),
	}
}

// Len reports how many problems the catalog holds.
func (c *Catalog) Len() int {
	return len(c.problems)
}

// Get returns a problem by id.
func (c *Catalog) Get(id string) (*Problem, error) {
	if p, ok := c.byID[id]; ok {
		return p, nil
	}
	return nil, ErrNoProblem
}

// Random picks a random problem, optionally filtered by difficulty.
func (c *Catalog) Random(difficulty string) (*Problem, error) {
	var candidates []*Problem
	for _, p := range c.problems {
		if difficulty == "" || p.Difficulty == difficulty {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoProblem
	}

	c.mu.Lock()
	idx := c.rng.Intn(len(candidates))
	c.mu.Unlock()
	return candidates[idx], nil
}
