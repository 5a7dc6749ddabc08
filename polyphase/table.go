package polyphase

// Table is the query-time k-mer index: for each key, a contiguous run
// of global positions.
//
// For every key k with counts[k] > 0, positions[offsets[k]:offsets[k]+counts[k]]
// holds the positions recorded for k. Tables are never modified after
// they are built or loaded, so any number of goroutines may read one
// concurrently.
type Table struct {
	offsets   Array
	counts    Array
	positions Array
}

// Contains reports whether any position was recorded for key.
func (t *Table) Contains(key Key) bool {
	return key < Key(t.counts.Len()) && t.counts.At(int(key)) != 0
}

// Get returns the positions recorded for key, or nil.
func (t *Table) Get(key Key) []uint64 {
	return t.AppendPositions(nil, key)
}

// AppendPositions appends the positions recorded for key to dst.
func (t *Table) AppendPositions(dst []uint64, key Key) []uint64 {
	if !t.Contains(key) {
		return dst
	}
	offset := int(t.offsets.At(int(key)))
	count := int(t.counts.At(int(key)))
	return t.positions.appendRange(dst, offset, offset+count)
}

// Len returns the total number of positions in the table.
func (t *Table) Len() int {
	return t.positions.Len()
}

// KeySpace returns one more than the largest key in the table.
func (t *Table) KeySpace() int {
	return t.counts.Len()
}

// Widths returns the element widths of the offsets, counts and
// positions arrays.
func (t *Table) Widths() (offsets, counts, positions Width) {
	return t.offsets.Width(), t.counts.Width(), t.positions.Width()
}

// SizeBytes is the memory used by the table's arrays.
func (t *Table) SizeBytes() uint64 {
	var n uint64
	for _, a := range []*Array{&t.offsets, &t.counts, &t.positions} {
		n += uint64(a.Len()) * uint64(a.Width()/8)
	}
	return n
}
