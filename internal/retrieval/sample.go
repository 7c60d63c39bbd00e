package retrieval

// MaxSample is the most chunks Sample returns for one document.
const MaxSample = 7

// Sample picks a beginning/middle/end subset of an ordered document. Up to smallCutoff items
// are returned whole; up to mediumCutoff the first two, middle two and last two are kept;
// larger documents keep the first three, the middle one and the last three. The result is in
// document order and never repeats an item.
func Sample[T any](items []T, smallCutoff, mediumCutoff int) []T {
	n := len(items)
	if n <= smallCutoff {
		return append([]T(nil), items...)
	}
	head, mid, tail := 3, 1, 3
	if n <= mediumCutoff {
		head, mid, tail = 2, 2, 2
	}

	picked := make([]bool, n)
	for i := 0; i < head && i < n; i++ {
		picked[i] = true
	}
	start := (n - mid) / 2
	for i := start; i < start+mid && i < n; i++ {
		picked[i] = true
	}
	for i := n - tail; i < n; i++ {
		if i >= 0 {
			picked[i] = true
		}
	}

	out := make([]T, 0, head+mid+tail)
	for i, ok := range picked {
		if ok {
			out = append(out, items[i])
		}
	}
	return out
}
