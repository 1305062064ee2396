package users

// collection is the ordered record sequence plus its RowIndex. Order is
// insertion order, except the placeholder which is always last. Not
// goroutine safe; the Model serializes access.
type collection struct {
	recs  []Record
	index *RowIndex
}

func newCollection() *collection {
	return &collection{index: NewRowIndex()}
}

func (c *collection) count() int {
	return len(c.recs)
}

func (c *collection) at(row int) *Record {
	if row < 0 || row >= len(c.recs) {
		return nil
	}
	return &c.recs[row]
}

func (c *collection) rowOf(uid uint32) (int, bool) {
	return c.index.Row(uid)
}

// placeholder reports whether the uncommitted tail record is present.
func (c *collection) placeholder() bool {
	// The placeholder is always last and the only record that can be invalid.
	if len(c.recs) == 0 {
		return false
	}
	return !c.recs[len(c.recs)-1].valid
}

// insertAt places r at row, shifting the index entries at or after row in
// the same step. Valid records are registered in the index; the placeholder
// is not.
func (c *collection) insertAt(row int, r Record) {
	c.recs = append(c.recs, Record{})
	copy(c.recs[row+1:], c.recs[row:])
	c.recs[row] = r
	if r.valid {
		c.index.Insert(r.uid, row)
	}
}

// removeAt drops the record at row, shifting the index entries after row in
// the same step.
func (c *collection) removeAt(row int) {
	r := c.recs[row]
	c.recs = append(c.recs[:row], c.recs[row+1:]...)
	if r.valid {
		c.index.Remove(r.uid)
	}
}

// commitAt turns the record at row into r in place, registering it in the
// index. Used when the placeholder becomes the newly created account.
func (c *collection) commitAt(row int, r Record) {
	c.recs[row] = r
	c.index.Insert(r.uid, row)
}
