package bilibili

import (
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// Similarity computes Jaccard similarity over token sets. Latin-script and
// numeric runs are case-folded word tokens; CJK characters count as
// individual tokens. Fullwidth forms are folded to their halfwidth
// equivalents first so stylized Bilibili titles compare cleanly.
func Similarity(a, b string) float64 {
	setA := tokenize(a)
	setB := tokenize(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for token := range setA {
		if _, ok := setB[token]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func tokenize(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	var word strings.Builder
	flush := func() {
		if word.Len() > 0 {
			tokens[strings.ToLower(word.String())] = struct{}{}
			word.Reset()
		}
	}
	for _, r := range width.Fold.String(text) {
		switch {
		case r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
			word.WriteRune(r)
		case unicode.Is(unicode.Han, r):
			flush()
			tokens[string(r)] = struct{}{}
		default:
			flush()
		}
	}
	flush()
	return tokens
}
