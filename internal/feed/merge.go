package feed

import (
	"slices"
)

// compareRecords orders by date descending, then created_at descending. Equal records
// compare as 0 so that callers keep dispatch order.
func compareRecords(a, b ActivityRecord) int {
	if c := b.Date.Compare(a.Date); c != 0 {
		return c
	}
	return b.CreatedAt.Compare(a.CreatedAt)
}

// Merge combines the successful results into one sequence in feed order. Failed results
// are skipped. When every source is already ordered a k-way merge is used; otherwise the
// concatenation is stable-sorted. Both paths produce the same sequence.
func Merge(results []SourceResult) []ActivityRecord {
	lists := make([][]ActivityRecord, 0, len(results))
	total := 0
	presorted := true
	for _, res := range results {
		if res.Err != nil || len(res.Records) == 0 {
			continue
		}
		lists = append(lists, res.Records)
		total += len(res.Records)
		if presorted && !slices.IsSortedFunc(res.Records, compareRecords) {
			presorted = false
		}
	}

	if !presorted {
		out := make([]ActivityRecord, 0, total)
		for _, list := range lists {
			out = append(out, list...)
		}
		slices.SortStableFunc(out, compareRecords)
		return out
	}
	return mergeSorted(lists, total)
}

// mergeSorted picks the head that sorts first, preferring the earliest list on ties.
func mergeSorted(lists [][]ActivityRecord, total int) []ActivityRecord {
	out := make([]ActivityRecord, 0, total)
	heads := make([]int, len(lists))
	for len(out) < total {
		best := -1
		for i, list := range lists {
			if heads[i] >= len(list) {
				continue
			}
			if best < 0 || compareRecords(list[heads[i]], lists[best][heads[best]]) < 0 {
				best = i
			}
		}
		out = append(out, lists[best][heads[best]])
		heads[best]++
	}
	return out
}
