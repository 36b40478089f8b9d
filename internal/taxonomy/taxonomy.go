// Package taxonomy holds the fixed set of document categories together with
// the per-category keyword tiers, stop words and confidence thresholds that
// ship with it.
package taxonomy

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Unknown is the sentinel category returned when there is not enough text.
const Unknown = "unknown"

var ErrUnknownCategory = errors.New("unknown category")

//go:embed categories.json
var defaultDocument []byte

type KeywordTiers struct {
	Strong []string `json:"strong,omitempty"`
	Medium []string `json:"medium,omitempty"`
	Weak   []string `json:"weak,omitempty"`
}

type Category struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	NameEN      string       `json:"name_en"`
	FolderPath  string       `json:"folder_path"`
	Description string       `json:"description"`
	Keywords    KeywordTiers `json:"keywords,omitempty"`
}

type Thresholds struct {
	High   float64 `json:"high"`
	Medium float64 `json:"medium"`
	Low    float64 `json:"low"`
}

type document struct {
	Language        string     `json:"language"`
	DefaultCategory string     `json:"default_category"`
	Categories      []Category `json:"categories"`
	Thresholds      Thresholds `json:"confidence_thresholds"`
	Stopwords       []string   `json:"stopwords"`
}

// Taxonomy is read-only after construction and safe for concurrent use.
type Taxonomy struct {
	language   string
	categories []Category
	index      map[string]int
	defaultID  string
	thresholds Thresholds
	stopwords  map[string]struct{}
}

// Load reads a taxonomy document from path. An empty path yields the
// embedded default.
func Load(path string) (*Taxonomy, error) {
	if strings.TrimSpace(path) == "" {
		return Parse(defaultDocument)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy: %w", err)
	}
	return Parse(b)
}

// Default returns the embedded taxonomy.
func Default() *Taxonomy {
	t, err := Parse(defaultDocument)
	if err != nil {
		panic(fmt.Sprintf("embedded taxonomy: %v", err))
	}
	return t
}

func Parse(b []byte) (*Taxonomy, error) {
	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode taxonomy: %w", err)
	}
	if len(doc.Categories) == 0 {
		return nil, errors.New("taxonomy has no categories")
	}
	t := &Taxonomy{
		language:   doc.Language,
		categories: make([]Category, 0, len(doc.Categories)),
		index:      make(map[string]int, len(doc.Categories)),
		thresholds: doc.Thresholds,
		stopwords:  make(map[string]struct{}, len(doc.Stopwords)),
	}
	if t.language == "" {
		t.language = "es"
	}
	fold := folder(t.language)
	for _, c := range doc.Categories {
		c.ID = strings.TrimSpace(c.ID)
		if c.ID == "" {
			return nil, errors.New("taxonomy category with empty id")
		}
		if c.ID == Unknown {
			return nil, fmt.Errorf("category id %q is reserved", Unknown)
		}
		if _, dup := t.index[c.ID]; dup {
			return nil, fmt.Errorf("duplicate category id %q", c.ID)
		}
		c.Keywords = foldTiers(c.Keywords, fold)
		t.index[c.ID] = len(t.categories)
		t.categories = append(t.categories, c)
	}
	t.defaultID = doc.DefaultCategory
	if t.defaultID == "" {
		t.defaultID = t.categories[len(t.categories)-1].ID
	}
	if _, ok := t.index[t.defaultID]; !ok {
		return nil, fmt.Errorf("default category %q not in taxonomy", t.defaultID)
	}
	if t.thresholds == (Thresholds{}) {
		t.thresholds = Thresholds{High: 0.80, Medium: 0.50, Low: 0.30}
	}
	if t.thresholds.Medium > t.thresholds.High {
		return nil, fmt.Errorf("confidence thresholds out of order: medium %.2f > high %.2f", t.thresholds.Medium, t.thresholds.High)
	}
	for _, w := range doc.Stopwords {
		if w = fold(w); w != "" {
			t.stopwords[w] = struct{}{}
		}
	}
	return t, nil
}

// folder returns the case folding the normalizer applies to document text,
// so keywords and stop words compare equal to the tokens they should match.
func folder(lang string) func(string) string {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.Spanish
	}
	lower := cases.Lower(tag)
	return func(s string) string {
		s = strings.TrimSpace(norm.NFC.String(s))
		if s == "" {
			return ""
		}
		return norm.NFC.String(lower.String(s))
	}
}

func foldTiers(k KeywordTiers, fold func(string) string) KeywordTiers {
	apply := func(in []string) []string {
		out := make([]string, 0, len(in))
		for _, s := range in {
			if s = fold(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return KeywordTiers{Strong: apply(k.Strong), Medium: apply(k.Medium), Weak: apply(k.Weak)}
}

func (t *Taxonomy) Language() string { return t.language }

// Categories returns the categories in declaration order.
func (t *Taxonomy) Categories() []Category {
	out := make([]Category, len(t.categories))
	copy(out, t.categories)
	return out
}

func (t *Taxonomy) IDs() []string {
	out := make([]string, len(t.categories))
	for i, c := range t.categories {
		out[i] = c.ID
	}
	return out
}

func (t *Taxonomy) Get(id string) (Category, bool) {
	i, ok := t.index[id]
	if !ok {
		return Category{}, false
	}
	return t.categories[i], true
}

func (t *Taxonomy) Has(id string) bool {
	_, ok := t.index[id]
	return ok
}

// Order is the declaration position of id, used to break ties. Unknown ids
// sort last.
func (t *Taxonomy) Order(id string) int {
	if i, ok := t.index[id]; ok {
		return i
	}
	return len(t.categories)
}

func (t *Taxonomy) DefaultCategory() Category {
	return t.categories[t.index[t.defaultID]]
}

func (t *Taxonomy) Thresholds() Thresholds { return t.thresholds }

func (t *Taxonomy) IsStopword(w string) bool {
	_, ok := t.stopwords[w]
	return ok
}

// Validate reports whether id is a taxonomy category or the unknown sentinel.
func (t *Taxonomy) Validate(id string) error {
	if id == Unknown || t.Has(id) {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownCategory, id)
}

// FolderFor returns the storage folder for id, prefixed with /{username}
// when a username is given. Unknown ids map to the default category folder.
func (t *Taxonomy) FolderFor(id, username string) string {
	c, ok := t.Get(id)
	if !ok {
		c = t.DefaultCategory()
	}
	username = strings.Trim(strings.TrimSpace(username), "/")
	if username == "" {
		return c.FolderPath
	}
	return "/" + username + c.FolderPath
}
