package dedup

import "math"

// Ratio returns the similarity of a and b as an integer in 0..100.
//
// It is derived from the edit distance where insertions and deletions cost 1
// and substitutions cost 2, normalized by the combined length:
// round(100 * (len(a)+len(b)-dist) / (len(a)+len(b))). An empty operand scores 0.
func Ratio(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	total := len(ra) + len(rb)
	dist := indelDistance(ra, rb)

	return int(math.Round(100 * float64(total-dist) / float64(total)))
}

func indelDistance(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i

		for j := 1; j <= len(b); j++ {
			cost := 2
			if a[i-1] == b[j-1] {
				cost = 0
			}

			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}
