package dashboard

import (
	"errors"
	"strconv"
	"strings"
)

// Pager describes the position inside a paged table. Limit 0 means the
// whole result fits on one page.
type Pager struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

func (p Pager) TotalPages() int {
	if p.Limit <= 0 || p.Total <= 0 {
		return 1
	}
	return (p.Total + p.Limit - 1) / p.Limit
}

// Visible reports whether page controls are needed at all.
func (p Pager) Visible() bool {
	return p.Limit > 0 && p.Total > p.Limit
}

func (p Pager) HasPrev() bool {
	return p.Page > 1
}

func (p Pager) HasNext() bool {
	return p.Page < p.TotalPages()
}

func (p Pager) Prev() int {
	if p.HasPrev() {
		return p.Page - 1
	}
	return 1
}

func (p Pager) Next() int {
	if p.HasNext() {
		return p.Page + 1
	}
	return p.TotalPages()
}

// Clamp keeps page inside [1, TotalPages].
func (p Pager) Clamp(page int) int {
	if page < 1 {
		return 1
	}
	if last := p.TotalPages(); page > last {
		return last
	}
	return page
}

// ParseLimit reads a page size as typed by a user. Empty means DefaultLimit
// and "all" means 0, no paging.
func ParseLimit(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DefaultLimit, nil
	case "all":
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 || n > 1000 {
		return 0, errors.New("limit must be a number between 1 and 1000 or all")
	}
	return n, nil
}
