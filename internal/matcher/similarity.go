package matcher

import (
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Similarity scores two signatures in [0, 1] as twice the number of runes in
// their common subsequence over their combined length. Identical strings
// score 1, strings with nothing in common score 0.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 1
	}

	dmp := diffmatchpatch.New()
	// No deadline: a timed-out diff would make scores depend on machine load.
	dmp.DiffTimeout = 0

	equal := 0
	for _, d := range dmp.DiffMain(a, b, false) {
		if d.Type == diffmatchpatch.DiffEqual {
			equal += utf8.RuneCountInString(d.Text)
		}
	}
	return 2 * float64(equal) / float64(total)
}
