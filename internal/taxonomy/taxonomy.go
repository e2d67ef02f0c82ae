// Package taxonomy holds the fixed category/subcategory structure that
// classification output is validated against.
package taxonomy

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spendsight/spendsight/internal/model"
)

var (
	ErrUnknownCategory       = errors.New("unknown category")
	ErrUnknownSubcategory    = errors.New("unknown subcategory")
	ErrMissingSubcategory    = errors.New("subcategory required")
	ErrUnexpectedSubcategory = errors.New("category takes no subcategory")
)

// Category is one top-level spending category.
type Category struct {
	Name          string   `yaml:"name"`
	Subcategories []string `yaml:"subcategories,omitempty"`
	Examples      []string `yaml:"examples,omitempty"`
}

type file struct {
	Categories []Category `yaml:"categories"`
}

// Taxonomy provides lookup and validation over a category list.
type Taxonomy struct {
	categories []Category
	byKey      map[string]int
}

// New builds a Taxonomy. Uncategorized is appended when absent so failed or
// invalid classifications always have a valid home.
func New(categories []Category) (*Taxonomy, error) {
	t := &Taxonomy{byKey: make(map[string]int, len(categories)+1)}
	for _, c := range categories {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			return nil, errors.New("category with empty name")
		}
		k := key(c.Name)
		if _, dup := t.byKey[k]; dup {
			return nil, fmt.Errorf("duplicate category %q", c.Name)
		}
		seen := make(map[string]bool, len(c.Subcategories))
		for _, s := range c.Subcategories {
			if seen[key(s)] {
				return nil, fmt.Errorf("category %q: duplicate subcategory %q", c.Name, s)
			}
			seen[key(s)] = true
		}
		t.byKey[k] = len(t.categories)
		t.categories = append(t.categories, c)
	}
	if _, ok := t.byKey[key(model.Uncategorized)]; !ok {
		t.byKey[key(model.Uncategorized)] = len(t.categories)
		t.categories = append(t.categories, Category{Name: model.Uncategorized})
	}
	return t, nil
}

// Load reads a categories YAML file.
func Load(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading taxonomy: %w", err)
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing taxonomy: %w", err)
	}
	if len(f.Categories) == 0 {
		return nil, fmt.Errorf("taxonomy %s defines no categories", path)
	}
	t, err := New(f.Categories)
	if err != nil {
		return nil, fmt.Errorf("taxonomy %s: %w", path, err)
	}
	return t, nil
}

// Save writes the taxonomy as YAML.
func (t *Taxonomy) Save(path string) error {
	data, err := yaml.Marshal(file{Categories: t.categories})
	if err != nil {
		return fmt.Errorf("marshaling taxonomy: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing taxonomy: %w", err)
	}
	return nil
}

// Categories returns all categories in file order.
func (t *Taxonomy) Categories() []Category {
	return t.categories
}

// Names returns the category names in file order.
func (t *Taxonomy) Names() []string {
	names := make([]string, len(t.categories))
	for i, c := range t.categories {
		names[i] = c.Name
	}
	return names
}

// Lookup finds a category by name, ignoring case and extra whitespace.
func (t *Taxonomy) Lookup(name string) (Category, bool) {
	i, ok := t.byKey[key(name)]
	if !ok {
		return Category{}, false
	}
	return t.categories[i], true
}

// Validate checks a (category, subcategory) pair and returns the canonical
// spellings. A category with subcategories requires one of them; a category
// without requires an empty subcategory.
func (t *Taxonomy) Validate(category, subcategory string) (string, string, error) {
	c, ok := t.Lookup(category)
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}

	sub := strings.TrimSpace(subcategory)
	if len(c.Subcategories) == 0 {
		if sub != "" {
			return "", "", fmt.Errorf("%w: %q has no subcategories, got %q", ErrUnexpectedSubcategory, c.Name, sub)
		}
		return c.Name, "", nil
	}

	if sub == "" {
		return "", "", fmt.Errorf("%w: %q needs one of %s", ErrMissingSubcategory, c.Name, strings.Join(c.Subcategories, ", "))
	}
	for _, s := range c.Subcategories {
		if key(s) == key(sub) {
			return c.Name, s, nil
		}
	}
	return "", "", fmt.Errorf("%w: %q is not a subcategory of %q", ErrUnknownSubcategory, sub, c.Name)
}

// Prompt renders the taxonomy as a plain-text block for the model.
func (t *Taxonomy) Prompt() string {
	var b strings.Builder
	b.WriteString("Available categories:\n")
	for _, c := range t.categories {
		b.WriteString("- ")
		b.WriteString(c.Name)
		if len(c.Subcategories) > 0 {
			fmt.Fprintf(&b, " (subcategory required: %s)", strings.Join(c.Subcategories, ", "))
		} else {
			b.WriteString(" (no subcategory)")
		}
		if len(c.Examples) > 0 {
			fmt.Fprintf(&b, "; e.g. %s", strings.Join(c.Examples, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func key(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
