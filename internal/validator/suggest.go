package validator

import (
	"fmt"
	"slices"
	"strings"
)

// suggest returns a "did you mean" hint naming the closest candidate, or an
// empty string when nothing is reasonably close
func suggest(target string, candidates []string) string {
	var best string
	bestDist := -1
	for _, c := range sortedCopy(candidates) {
		d := levenshtein(target, c)
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	if bestDist < 0 || bestDist > max(2, len(target)/2) {
		return ""
	}
	return fmt.Sprintf("did you mean %q?", best)
}

// suggestField adds the list of available fields to a suggestion
func suggestField(target string, candidates []string) string {
	hint := suggest(target, candidates)
	avail := "available: " + strings.Join(sortedCopy(candidates), ", ")
	if hint == "" {
		return avail
	}
	return hint + " " + avail
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
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

func sortedCopy(in []string) []string {
	res := slices.Clone(in)
	slices.Sort(res)
	return res
}
