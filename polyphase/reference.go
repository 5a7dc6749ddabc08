package polyphase

// Reference is a named set of nucleotide sequences supporting random
// access reads.
type Reference interface {
	// SequenceNames returns the sequence names in storage order.
	SequenceNames() []string
	// SequenceLen returns the native length of the named sequence.
	SequenceLen(name string) (int, error)
	// Read returns bases [start, end) of the named sequence, case
	// preserved.
	Read(name string, start, end int) ([]byte, error)
}

// SequenceSizes returns the name and length of every sequence in ref,
// in storage order.
func SequenceSizes(ref Reference) ([]SequenceSize, error) {
	names := ref.SequenceNames()
	sizes := make([]SequenceSize, 0, len(names))
	for _, name := range names {
		n, err := ref.SequenceLen(name)
		if err != nil {
			return nil, err
		}
		sizes = append(sizes, SequenceSize{Name: name, Length: n})
	}
	return sizes, nil
}
