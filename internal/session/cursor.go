package session

// Cursor is the bounded current-question index. It never wraps around and never
// leaves [0, total-1].
type Cursor struct {
	index int
	total int
}

func NewCursor(total, start int) *Cursor {
	if total < 0 {
		total = 0
	}
	c := &Cursor{total: total}
	c.JumpTo(start)
	return c
}

func (c *Cursor) Index() int {
	return c.index
}

func (c *Cursor) Total() int {
	return c.total
}

func (c *Cursor) Next() int {
	if c.index < c.total-1 {
		c.index++
	}
	return c.index
}

func (c *Cursor) Prev() int {
	if c.index > 0 {
		c.index--
	}
	return c.index
}

// JumpTo moves to i when it is in range; otherwise the index is left unchanged.
func (c *Cursor) JumpTo(i int) int {
	if i >= 0 && i < c.total {
		c.index = i
	}
	return c.index
}

func (c *Cursor) Clone() *Cursor {
	clone := *c
	return &clone
}
