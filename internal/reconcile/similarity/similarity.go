// Package similarity scores how alike two short strings are, such as supplier
// names and line item descriptions.
package similarity

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Similarity returns a case-insensitive score in [0,1]: the maximum of the
// plain edit-distance ratio, the best substring-window ratio and the
// token-sorted ratio. Either side empty scores 0.
func Similarity(a, b string) float64 {
	a, b = normalize(a), normalize(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	best := ratio(a, b)
	if s := partialRatio(a, b); s > best {
		best = s
	}
	if s := tokenSortRatio(a, b); s > best {
		best = s
	}
	return best
}

// BestMatch returns the index and score of the highest scoring candidate at or
// above threshold. The first candidate wins ties. ok is false when nothing
// reaches the threshold.
func BestMatch(query string, candidates []string, threshold float64) (idx int, score float64, ok bool) {
	idx = -1
	for i, c := range candidates {
		s := Similarity(query, c)
		if s >= threshold && s > score {
			idx, score = i, s
		}
	}
	// a zero threshold still needs a positive score to pick a candidate
	return idx, score, idx >= 0
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func ratio(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// partialRatio slides the shorter string across the longer one
func partialRatio(a, b string) float64 {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == len(long) {
		return ratio(a, b)
	}

	s := string(short)
	best := 0.0
	for i := 0; i+len(short) <= len(long); i++ {
		r := ratio(s, string(long[i:i+len(short)]))
		if r > best {
			best = r
			if best == 1 {
				break
			}
		}
	}
	return best
}

func tokenSortRatio(a, b string) float64 {
	return ratio(sortTokens(a), sortTokens(b))
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
