package review

// Cursor is the review position within the current batch.
// When Active is false Offset carries no meaning. When Active is true Offset is a valid
// batch index, or equals the batch length once the batch is exhausted.
type Cursor struct {
	Offset int
	Active bool
}

// Start positions a cursor at the head of a batch of n transactions.
// An empty batch leaves the cursor inactive.
func Start(n int) Cursor {
	return Cursor{Offset: 0, Active: n > 0}
}

// Advance moves forward one step.
func (c Cursor) Advance() Cursor {
	c.Offset++
	return c
}

// Retreat moves back one step, never below zero.
func (c Cursor) Retreat() Cursor {
	if c.Offset > 0 {
		c.Offset--
	}
	return c
}

// HasNext reports whether another transaction follows the current one in a batch of n.
func (c Cursor) HasNext(n int) bool {
	return c.Active && c.Offset+1 < n
}
