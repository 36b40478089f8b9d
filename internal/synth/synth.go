// Package synth generates labeled synthetic administrative documents and
// augments text with scan noise, for bootstrapping the classifier before
// real feedback exists.
package synth

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"doctag/internal/corpus"
	"doctag/internal/taxonomy"
)

type template func(*faker) string

var templates = map[string]template{
	"factura":      invoice,
	"nomina":       payslip,
	"contrato":     contract,
	"presupuesto":  quote,
	"recibo":       receipt,
	"certificado":  certificate,
	"fiscal":       taxFiling,
	"notificacion": notice,
}

// Categories lists the category ids with a generator, in taxonomy order.
func Categories() []string {
	return []string{"factura", "contrato", "nomina", "presupuesto", "recibo", "certificado", "fiscal", "notificacion"}
}

// Generator produces documents and variants from one seeded source, so a
// given seed always yields the same sequence.
type Generator struct {
	r       *rand.Rand
	faker   *faker
	augment *Augmenter
}

// NewGenerator seeds a generator. Dates are relative to now.
func NewGenerator(seed uint64, now time.Time) *Generator {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return &Generator{r: r, faker: newFaker(r, now), augment: NewAugmenter(r)}
}

// Generate returns one document for category.
func (g *Generator) Generate(category string) (string, error) {
	t, ok := templates[category]
	if !ok {
		return "", fmt.Errorf("%w: no generator for %q", taxonomy.ErrUnknownCategory, category)
	}
	return t(g.faker), nil
}

func (g *Generator) Augment(text string, intensity Intensity) (string, error) {
	return g.augment.Augment(text, intensity)
}

func (g *Generator) Variants(text string, n int) []string {
	return g.augment.Variants(text, n)
}

type DatasetOptions struct {
	DocsPerCategory int
	VariantsPerDoc  int
	Seed            uint64
	// Categories restricts generation; empty means all.
	Categories []string
	Now        time.Time
}

func DefaultDatasetOptions() DatasetOptions {
	return DatasetOptions{DocsPerCategory: 200, VariantsPerDoc: 2, Seed: 42}
}

// BuildDataset generates DocsPerCategory documents per category, each
// followed by VariantsPerDoc augmented copies, and shuffles the result.
func BuildDataset(ctx context.Context, opts DatasetOptions) ([]corpus.Example, error) {
	if opts.DocsPerCategory <= 0 {
		return nil, fmt.Errorf("docs per category must be positive, got %d", opts.DocsPerCategory)
	}
	if opts.VariantsPerDoc < 0 {
		return nil, fmt.Errorf("variants per doc must not be negative, got %d", opts.VariantsPerDoc)
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	cats := opts.Categories
	if len(cats) == 0 {
		cats = Categories()
	}
	g := NewGenerator(opts.Seed, opts.Now)
	out := make([]corpus.Example, 0, len(cats)*opts.DocsPerCategory*(opts.VariantsPerDoc+1))
	for _, cat := range cats {
		for i := 0; i < opts.DocsPerCategory; i++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			doc, err := g.Generate(cat)
			if err != nil {
				return nil, err
			}
			for _, v := range g.Variants(doc, opts.VariantsPerDoc) {
				out = append(out, corpus.Example{Text: v, Label: cat, Source: corpus.SourceSynthetic})
			}
		}
	}
	g.r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out, nil
}
