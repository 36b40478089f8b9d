// Package textnorm turns raw extracted text into the token stream the
// classifiers consume.
package textnorm

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var (
	reHorizontalSpace = regexp.MustCompile(`[ \t\f\v\x{00A0}]+`)
	reBlankLines      = regexp.MustCompile(`\n\s*\n+`)
	reURL             = regexp.MustCompile(`(?i)(?:https?://|www\.)\S+`)
	reEmail           = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	reToken           = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]+`)
)

// Stopwords reports whether a lowercase token should be dropped.
type Stopwords interface {
	IsStopword(token string) bool
}

type noStopwords struct{}

func (noStopwords) IsStopword(string) bool { return false }

// Normalizer is stateless apart from its stop word set and safe for
// concurrent use.
type Normalizer struct {
	stop Stopwords
	lang language.Tag
}

func New(stop Stopwords, lang string) *Normalizer {
	if stop == nil {
		stop = noStopwords{}
	}
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.Spanish
	}
	return &Normalizer{stop: stop, lang: tag}
}

// Normalize canonicalizes, strips URLs and emails, lowercases, tokenizes and
// drops stop words. The result is a space-joined token stream and
// Normalize(Normalize(x)) == Normalize(x).
func (n *Normalizer) Normalize(raw string) string {
	tokens := n.Tokens(raw)
	return strings.Join(tokens, " ")
}

// Tokens is Normalize without the final join.
func (n *Normalizer) Tokens(raw string) []string {
	lowered := n.Lower(raw)
	if lowered == "" {
		return nil
	}
	found := reToken.FindAllString(lowered, -1)
	out := found[:0]
	for _, tok := range found {
		if n.stop.IsStopword(tok) {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// Lower applies the cleaning steps up to case folding but keeps punctuation
// and multi-word phrases intact, which is what keyword matching needs.
func (n *Normalizer) Lower(raw string) string {
	s := Clean(raw)
	if s == "" {
		return ""
	}
	// Caser values carry state and must not be shared between goroutines.
	s = cases.Lower(n.lang).String(s)
	return norm.NFC.String(s)
}

// Clean canonicalizes to NFC, collapses whitespace and then removes URLs
// and email addresses. Case is preserved.
func Clean(raw string) string {
	if raw == "" {
		return ""
	}
	s := norm.NFC.String(raw)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = collapseSpace(s)
	s = reURL.ReplaceAllString(s, "")
	s = reEmail.ReplaceAllString(s, "")
	// Removal can leave doubled spaces or an emptied line behind.
	return collapseSpace(s)
}

func collapseSpace(s string) string {
	s = reHorizontalSpace.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	s = strings.Join(lines, "\n")
	s = reBlankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
