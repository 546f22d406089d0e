package diffengine

import "strings"

// Stats holds line-level change counts between two texts.
// Modified is always zero; a changed line counts as one deletion plus one insertion.
type Stats struct {
	Insertions int `json:"insertions"`
	Deletions  int `json:"deletions"`
	Modified   int `json:"modified"`
}

// IsZero reports whether no line changed.
func (s Stats) IsZero() bool {
	return s.Insertions == 0 && s.Deletions == 0 && s.Modified == 0
}

// LineDiffStats counts inserted and deleted lines between before and after.
func LineDiffStats(before, after string) Stats {
	if before == after {
		return Stats{}
	}

	a := strings.Split(before, "\n")
	b := strings.Split(after, "\n")
	lcs := lcsLength(a, b)

	return Stats{
		Insertions: max(0, len(b)-lcs),
		Deletions:  max(0, len(a)-lcs),
	}
}

// lcsLength returns the length of the longest common subsequence of a and b.
// Only two rows of the DP table are kept, sized by the shorter input.
func lcsLength(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	outer, inner := a, b
	if len(inner) > len(outer) {
		outer, inner = inner, outer
	}

	prev := make([]int, len(inner)+1)
	curr := make([]int, len(inner)+1)

	for i := 1; i <= len(outer); i++ {
		line := outer[i-1]
		for j := 1; j <= len(inner); j++ {
			if line == inner[j-1] {
				curr[j] = prev[j-1] + 1
			} else {
				curr[j] = max(prev[j], curr[j-1])
			}
		}
		prev, curr = curr, prev
	}

	return prev[len(inner)]
}

// ApplyReplacement replaces search with replace in original. Only the first
// occurrence is replaced unless replaceAll is set. An empty search leaves the
// text unchanged.
func ApplyReplacement(original, search, replace string, replaceAll bool) string {
	if search == "" {
		return original
	}
	if replaceAll {
		return strings.ReplaceAll(original, search, replace)
	}
	return strings.Replace(original, search, replace, 1)
}
