package queue

// ReorderIndex returns where the entry at current ends up after the entry at
// from is moved to to. It gives the same answer whether the move is done as a
// remove followed by an insert or as a rotation of the slice between the two
// positions.
func ReorderIndex(from, to, current int) int {
	switch {
	case current < 0:
		return current
	case from == current:
		return to
	case from < current && to >= current:
		return current - 1
	case from > current && to <= current:
		return current + 1
	}
	return current
}
