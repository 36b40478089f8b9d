package util

// Preview returns at most maxRunes runes of s after stripping control
// characters. It does not append an ellipsis so previews stay usable as
// training text.
func Preview(s string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = 200
	}
	s = SanitizeText(s)
	runes := []rune(s)
	if len(runes) > maxRunes {
		return string(runes[:maxRunes])
	}
	return s
}
