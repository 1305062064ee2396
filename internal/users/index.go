package users

// RowIndex is the bidirectional-enough mapping from account uid to current
// row position. Entries exist only for committed records; the placeholder is
// never indexed.
//
// The index shifting on structural changes is the most error-prone piece of
// the whole component, so it lives here as an explicit operation instead of
// inlined arithmetic at the call sites.
type RowIndex struct {
	rows map[uint32]int
}

func NewRowIndex() *RowIndex {
	return &RowIndex{rows: make(map[uint32]int)}
}

func (x *RowIndex) Len() int {
	return len(x.rows)
}

// Row returns the current position of uid.
func (x *RowIndex) Row(uid uint32) (int, bool) {
	row, ok := x.rows[uid]
	return row, ok
}

func (x *RowIndex) Contains(uid uint32) bool {
	_, ok := x.rows[uid]
	return ok
}

// Insert registers uid at row, shifting every entry at or after row up by
// one first.
func (x *RowIndex) Insert(uid uint32, row int) {
	for id, r := range x.rows {
		if r >= row {
			x.rows[id] = r + 1
		}
	}
	x.rows[uid] = row
}

// Remove drops uid and shifts every entry after its row down by one.
// Reports the row the entry occupied.
func (x *RowIndex) Remove(uid uint32) (int, bool) {
	row, ok := x.rows[uid]
	if !ok {
		return 0, false
	}
	delete(x.rows, uid)
	for id, r := range x.rows {
		if r > row {
			x.rows[id] = r - 1
		}
	}
	return row, true
}
