package downloads

import (
	"strings"
	"unicode"

	"github.com/hbollon/go-edlib"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// titleMatchThreshold is the minimum Jaro-Winkler similarity for the
// name-based fallback match. Hash matching is exact and always preferred;
// title matching only kicks in for torrents added before the hash was known.
const titleMatchThreshold = 0.95

var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeTitle folds a release or media title down to lowercase ASCII-ish
// words: accents stripped, separators and punctuation collapsed to single
// spaces.
func normalizeTitle(title string) string {
	clean, _, err := transform.String(deaccent, title)
	if err != nil {
		clean = title
	}

	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(clean) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// titlesMatch reports whether two titles are close enough to be the same
// release after normalization.
func titlesMatch(a, b string) bool {
	na, nb := normalizeTitle(a), normalizeTitle(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	return edlib.JaroWinklerSimilarity(na, nb) >= titleMatchThreshold
}
