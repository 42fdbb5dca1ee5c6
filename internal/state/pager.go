package state

import "fmt"

// DefaultPageSize is the admin messages page size.
const DefaultPageSize = 50

// Pager tracks an offset-based page over a result set of Total items.
type Pager struct {
	Offset int
	Size   int
	Total  int
}

// NewPager returns a pager at offset 0. A non-positive size falls back to
// DefaultPageSize.
func NewPager(size int) Pager {
	if size <= 0 {
		size = DefaultPageSize
	}
	return Pager{Size: size}
}

// HasNext is false once offset+size reaches the total.
func (p Pager) HasNext() bool {
	return p.Offset+p.Size < p.Total
}

// HasPrev is false on the first page.
func (p Pager) HasPrev() bool {
	return p.Offset > 0
}

// Next advances one page when there is one.
func (p *Pager) Next() bool {
	if !p.HasNext() {
		return false
	}
	p.Offset += p.Size
	return true
}

// Prev moves back one page, clamping at 0.
func (p *Pager) Prev() bool {
	if !p.HasPrev() {
		return false
	}
	p.Offset -= p.Size
	if p.Offset < 0 {
		p.Offset = 0
	}
	return true
}

// Reset returns to the first page. Called whenever a filter changes.
func (p *Pager) Reset() {
	p.Offset = 0
}

// Visible reports whether the result set spans more than one page.
func (p Pager) Visible() bool {
	return p.Total > p.Size
}

// Range renders the shown slice, e.g. "51–100 of 230".
func (p Pager) Range() string {
	end := p.Offset + p.Size
	if end > p.Total {
		end = p.Total
	}
	return fmt.Sprintf("%d–%d of %d", p.Offset+1, end, p.Total)
}
