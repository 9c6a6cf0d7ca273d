package journal

import "fmt"

// Pager walks history one entry at a time. Moving past either end is a no-op.
type Pager struct {
	entries []DatedEntry
	index   int
}

func (p *Pager) Len() int { return len(p.entries) }

func (p *Pager) Index() int { return p.index }

// Current is false only for an empty history.
func (p *Pager) Current() (DatedEntry, bool) {
	if len(p.entries) == 0 {
		return DatedEntry{}, false
	}
	return p.entries[p.index], true
}

func (p *Pager) HasPrev() bool { return p.index > 0 }

func (p *Pager) HasNext() bool { return p.index < len(p.entries)-1 }

// Next advances one entry and reports whether it moved.
func (p *Pager) Next() bool {
	if !p.HasNext() {
		return false
	}
	p.index++
	return true
}

func (p *Pager) Prev() bool {
	if !p.HasPrev() {
		return false
	}
	p.index--
	return true
}

// Seek jumps to page i, clamped to the available range.
func (p *Pager) Seek(i int) {
	switch {
	case len(p.entries) == 0 || i < 0:
		p.index = 0
	case i >= len(p.entries):
		p.index = len(p.entries) - 1
	default:
		p.index = i
	}
}

// Label reads "Page N of M".
func (p *Pager) Label() string {
	if len(p.entries) == 0 {
		return "Page 0 of 0"
	}
	return fmt.Sprintf("Page %d of %d", p.index+1, len(p.entries))
}
