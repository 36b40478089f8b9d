package synth

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"unicode"
)

type Intensity string

const (
	Low    Intensity = "low"
	Medium Intensity = "medium"
	High   Intensity = "high"
)

var ErrInvalidIntensity = errors.New("invalid augmentation intensity")

// Levels is the order generate-variants cycles through.
var Levels = []Intensity{Low, Medium, High}

func ParseIntensity(s string) (Intensity, error) {
	switch Intensity(strings.ToLower(strings.TrimSpace(s))) {
	case Low:
		return Low, nil
	case Medium, "":
		return Medium, nil
	case High:
		return High, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidIntensity, s)
}

// Probabilities are the per-character or per-word chances of each
// transform firing.
type Probabilities struct {
	Typo  float64
	Space float64
	Case  float64
	OCR   float64
}

var intensityTable = map[Intensity]Probabilities{
	Low:    {Typo: 0.01, Space: 0.02, Case: 0.01, OCR: 0.01},
	Medium: {Typo: 0.03, Space: 0.05, Case: 0.03, OCR: 0.03},
	High:   {Typo: 0.07, Space: 0.10, Case: 0.07, OCR: 0.07},
}

func (i Intensity) Probabilities() (Probabilities, error) {
	p, ok := intensityTable[i]
	if !ok {
		return Probabilities{}, fmt.Errorf("%w: %q", ErrInvalidIntensity, string(i))
	}
	return p, nil
}

// Characters an OCR engine commonly confuses. Pairs are tried before
// single characters.
var (
	ocrPairs = map[string][]string{
		"rn": {"m"},
		"vv": {"w"},
		"cl": {"d"},
	}
	ocrSingles = map[rune][]string{
		'o': {"0", "O"},
		'0': {"o", "O"},
		'l': {"1", "I", "|"},
		'1': {"l", "I", "|"},
		'I': {"1", "l", "|"},
		'S': {"5", "$"},
		'5': {"S"},
		'B': {"8"},
		'8': {"B"},
		'G': {"6"},
		'Z': {"2"},
		'A': {"4"},
	}
)

// Augmenter applies scan-noise transforms driven by its random source.
// It is not safe for concurrent use.
type Augmenter struct {
	r *rand.Rand
}

func NewAugmenter(r *rand.Rand) *Augmenter { return &Augmenter{r: r} }

// Augment applies OCR substitutions, typos, spacing jitter and case
// inversion in that order. Line breaks survive the word-level transforms.
// Non-empty input never yields an empty result.
func (a *Augmenter) Augment(text string, intensity Intensity) (string, error) {
	p, err := intensity.Probabilities()
	if err != nil {
		return "", err
	}
	out := a.ocrErrors(text, p.OCR)
	out = a.typos(out, p.Typo)
	out = a.spacing(out, p.Space)
	out = a.caseFlips(out, p.Case)
	if strings.TrimSpace(out) == "" {
		return text, nil
	}
	return out, nil
}

// Variants returns text followed by n augmented copies, cycling through
// low, medium and high intensity. A negative n counts as zero.
func (a *Augmenter) Variants(text string, n int) []string {
	n = max(n, 0)
	out := make([]string, 0, n+1)
	out = append(out, text)
	for i := 0; i < n; i++ {
		v, _ := a.Augment(text, Levels[i%len(Levels)])
		out = append(out, v)
	}
	return out
}

func (a *Augmenter) hit(p float64) bool { return p > 0 && a.r.Float64() < p }

func (a *Augmenter) ocrErrors(text string, p float64) string {
	runes := []rune(text)
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(runes); i++ {
		if i+1 < len(runes) {
			if subs, ok := ocrPairs[string(runes[i:i+2])]; ok && a.hit(p) {
				b.WriteString(subs[a.r.IntN(len(subs))])
				i++
				continue
			}
		}
		if subs, ok := ocrSingles[runes[i]]; ok && a.hit(p) {
			b.WriteString(subs[a.r.IntN(len(subs))])
			continue
		}
		b.WriteRune(runes[i])
	}
	return b.String()
}

// eachLine applies fn to the whitespace-separated words of every line.
func eachLine(text string, fn func(words []string) []string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		words := strings.Fields(line)
		if len(words) == 0 {
			lines[i] = ""
			continue
		}
		lines[i] = strings.Join(fn(words), " ")
	}
	return strings.Join(lines, "\n")
}

func (a *Augmenter) typos(text string, p float64) string {
	return eachLine(text, func(words []string) []string {
		for i, w := range words {
			r := []rune(w)
			if len(r) <= 3 || !a.hit(p) {
				continue
			}
			switch a.r.IntN(3) {
			case 0:
				pos := a.r.IntN(len(r) - 1)
				r[pos], r[pos+1] = r[pos+1], r[pos]
			case 1:
				pos := a.r.IntN(len(r))
				r = append(r[:pos+1], r[pos:]...)
			case 2:
				if len(r) > 4 {
					pos := 1 + a.r.IntN(len(r)-2)
					r = append(r[:pos], r[pos+1:]...)
				}
			}
			words[i] = string(r)
		}
		return words
	})
}

func (a *Augmenter) spacing(text string, p float64) string {
	text = eachLine(text, func(words []string) []string {
		out := words[:0:0]
		for i := 0; i < len(words); i++ {
			if i+1 < len(words) && a.hit(p*0.3) {
				out = append(out, words[i]+words[i+1])
				i++
				continue
			}
			out = append(out, words[i])
		}
		return out
	})
	if a.hit(p) {
		text = strings.Replace(text, " ", "  ", 3+a.r.IntN(8))
	}
	if a.hit(p * 0.5) {
		text = strings.Replace(text, ". ", ".\n", 1+a.r.IntN(3))
	}
	return text
}

func (a *Augmenter) caseFlips(text string, p float64) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, c := range text {
		if unicode.IsLetter(c) && a.hit(p) {
			if unicode.IsUpper(c) {
				c = unicode.ToLower(c)
			} else {
				c = unicode.ToUpper(c)
			}
		}
		b.WriteRune(c)
	}
	return b.String()
}
