package domain

// Page is the immutable result of one query execution.
type Page struct {
	Items []Tender

	// NextCursor continues pagination; empty means no more data. It is
	// present exactly when the source returned a full page, which is a
	// count-based heuristic: when the true remaining count is an exact
	// multiple of the page size the next fetch comes back empty.
	NextCursor string

	// Total is the exact number of matching rows from the cursor position
	// onward. Only meaningful when TotalKnown is set; call sites that skip
	// counting must treat the total as unknown, never as zero.
	Total      int
	TotalKnown bool
}

// HasMore reports the count-based continuation heuristic.
func (p Page) HasMore() bool { return p.NextCursor != "" }
