package repository

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type Page struct {
	Number int
	Size   int
}

func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

func (p Page) offset() int {
	return (p.Number - 1) * p.Size
}

// orderClause maps a client sort key onto a whitelisted column. A leading
// "-" sorts descending.
func orderClause(sortBy string, allowed map[string]string, fallback string) string {
	desc := false
	if len(sortBy) > 0 && sortBy[0] == '-' {
		desc = true
		sortBy = sortBy[1:]
	}
	col, ok := allowed[sortBy]
	if !ok {
		return fallback
	}
	if desc {
		return col + " DESC"
	}
	return col + " ASC"
}
