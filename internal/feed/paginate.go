package feed

// Paginate returns the 1-indexed page window over records. A page past the end yields an
// empty, non-nil slice with the metadata intact.
func Paginate(records []ActivityRecord, page, limit int) ([]ActivityRecord, PageMeta) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 1
	}
	total := len(records)
	meta := PageMeta{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: (total + limit - 1) / limit,
	}

	if page > meta.TotalPages {
		return []ActivityRecord{}, meta
	}
	start := (page - 1) * limit
	end := min(start+limit, total)
	out := make([]ActivityRecord, end-start)
	copy(out, records[start:end])
	return out, meta
}
