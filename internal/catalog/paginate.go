package catalog

// PageInfo describes one page of a result set, mirroring the wire contract.
type PageInfo struct {
	TotalPages      int  `json:"totalPages"`
	TotalItems      int  `json:"totalItems"`
	Page            int  `json:"page"`
	PerPage         int  `json:"perPage"`
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
}

// paginate slices one page out of the full, already-sorted result set.
// Pages beyond the last yield an empty slice with accurate PageInfo rather
// than an error.  page and perPage are clamped to 1 at minimum.
func paginate[T any](items []T, page, perPage int) ([]T, PageInfo) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 1
	}
	total := len(items)
	totalPages := (total + perPage - 1) / perPage

	info := PageInfo{
		TotalPages:      totalPages,
		TotalItems:      total,
		Page:            page,
		PerPage:         perPage,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
	}

	start := (page - 1) * perPage
	if start >= total {
		return []T{}, info
	}
	end := start + perPage
	if end > total {
		end = total
	}
	out := make([]T, end-start)
	copy(out, items[start:end])
	return out, info
}
