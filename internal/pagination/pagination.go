// Package pagination splits ordered sequences into fixed-size pages selected
// by a 1-based page number. Out-of-range page numbers clamp to the last
// available page; a non-numeric page parameter selects the first page.
package pagination

import "strconv"

// PostsPerPage is the fixed page size used by every feed.
const PostsPerPage = 10

// Page is a bounded slice of a larger ordered sequence.
type Page[T any] struct {
	Items      []T
	Number     int
	PerPage    int
	TotalItems int64
	TotalPages int
}

// HasNext reports whether a page after this one exists.
func (p Page[T]) HasNext() bool { return p.Number < p.TotalPages }

// HasPrev reports whether a page before this one exists.
func (p Page[T]) HasPrev() bool { return p.Number > 1 }

// ParsePage parses a page query parameter. Non-numeric or empty values
// select page 1; range clamping happens later, once the total is known.
func ParsePage(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 1
	}
	return n
}

// TotalPages returns the number of pages needed for totalItems. An empty
// sequence still has one (empty) page.
func TotalPages(totalItems int64, perPage int) int {
	if totalItems <= 0 {
		return 1
	}
	pages := int((totalItems + int64(perPage) - 1) / int64(perPage))
	return pages
}

// Clamp resolves a requested page number against the total, returning the
// effective page number and the query offset. Numbers past the end, zero,
// and negatives all land on the last page.
func Clamp(requested int, totalItems int64, perPage int) (number, offset int) {
	total := TotalPages(totalItems, perPage)
	number = requested
	if number < 1 || number > total {
		number = total
	}
	return number, (number - 1) * perPage
}

// New assembles a Page from a fetched slice and its pagination facts.
func New[T any](items []T, number, perPage int, totalItems int64) Page[T] {
	return Page[T]{
		Items:      items,
		Number:     number,
		PerPage:    perPage,
		TotalItems: totalItems,
		TotalPages: TotalPages(totalItems, perPage),
	}
}
