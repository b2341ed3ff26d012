package feed

// Aggregate counts records per base type; every schedule sub-type lands in TypeSchedule.
func Aggregate(records []ActivityRecord) map[string]int {
	counts := make(map[string]int)
	for _, rec := range records {
		counts[BaseType(rec.Type)]++
	}
	return counts
}
