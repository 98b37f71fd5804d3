package translate

import "sort"

// editDistance is the Levenshtein distance between a and b, computed over
// bytes with two rolling rows.
func editDistance(a, b string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			sub := prev[j-1]
			if a[i-1] != b[j-1] {
				sub++
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, sub)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// Suggest returns up to maxSuggestions candidates within a small edit
// distance of name, closest first.
func Suggest(name string, candidates []string, maxSuggestions int) []string {
	const maxDistance = 3

	type match struct {
		name     string
		distance int
	}
	var matches []match
	for _, c := range candidates {
		if d := editDistance(name, c); d > 0 && d <= maxDistance {
			matches = append(matches, match{c, d})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].distance != matches[j].distance {
			return matches[i].distance < matches[j].distance
		}
		return matches[i].name < matches[j].name
	})

	out := make([]string, 0, min(len(matches), maxSuggestions))
	for _, m := range matches[:min(len(matches), maxSuggestions)] {
		out = append(out, m.name)
	}
	return out
}
