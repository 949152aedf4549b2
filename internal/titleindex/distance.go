package titleindex

import (
	"strings"

	"github.com/hyperjump/ruiji/pkg/utils"
)

// levenshtein returns the number of single-rune insertions, deletions or
// substitutions needed to turn a into b.
func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	// Two rows of the edit matrix are enough.
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// closestDistance is the smallest edit distance between query (already
// normalized) and any of titles after normalization.
func closestDistance(query string, titles []string) int {
	best := -1
	for _, t := range titles {
		d := levenshtein(query, utils.NormalizeTitle(t))
		if best < 0 || d < best {
			best = d
		}
	}
	if best < 0 {
		return len([]rune(query))
	}
	return best
}

func tokenize(normalized string) []string {
	return strings.Fields(normalized)
}
