package polyphase

import (
	"sort"

	"github.com/pkg/errors"
)

var (
	// ErrIndexCorrupt means a position stored in the index does not
	// belong to any sequence of the reference it is used with.
	ErrIndexCorrupt = errors.New("index position out of range")

	// ErrUnknownSequence means a sequence name is not part of the
	// coordinate map.
	ErrUnknownSequence = errors.New("unknown sequence")
)

// SequenceSize is the name and native length of one reference
// sequence.
type SequenceSize struct {
	Name   string
	Length int
}

// CoordinateMap translates between global positions (offsets into the
// concatenation of every sequence's down-sampled window space) and
// (sequence, local down-sampled offset) pairs.
type CoordinateMap struct {
	params Params
	seqs   []SequenceSize
	extent []uint64
	start  []uint64 // start[i] = sum(extent[:i]); len(start) == len(seqs)+1
	byName map[string]int
}

// NewCoordinateMap orders sizes by descending length (ties keep their
// input order) and computes each sequence's offset in the global
// position space.
func NewCoordinateMap(sizes []SequenceSize, p Params) (*CoordinateMap, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	seqs := append([]SequenceSize(nil), sizes...)
	sort.SliceStable(seqs, func(i, j int) bool {
		return seqs[i].Length > seqs[j].Length
	})
	cm := &CoordinateMap{
		params: p,
		seqs:   seqs,
		extent: make([]uint64, len(seqs)),
		start:  make([]uint64, len(seqs)+1),
		byName: make(map[string]int, len(seqs)),
	}
	for i, s := range seqs {
		if _, dup := cm.byName[s.Name]; dup {
			return nil, errors.Errorf("duplicate sequence name %q", s.Name)
		}
		cm.byName[s.Name] = i
		cm.extent[i] = extentOf(s.Length, p)
		cm.start[i+1] = cm.start[i] + cm.extent[i]
	}
	return cm, nil
}

// extentOf returns the number of Q-base windows in a sequence of
// length n after down-sampling by M.
func extentOf(n int, p Params) uint64 {
	sampled := (n + p.M - 1) / p.M
	if w := sampled - p.Q + 1; w > 0 {
		return uint64(w)
	}
	return 0
}

// Sequences returns the sequences in global order.
func (cm *CoordinateMap) Sequences() []SequenceSize {
	return append([]SequenceSize(nil), cm.seqs...)
}

// Params returns the parameters cm was built with.
func (cm *CoordinateMap) Params() Params {
	return cm.params
}

// Total is the size of the global position space.
func (cm *CoordinateMap) Total() uint64 {
	return cm.start[len(cm.seqs)]
}

// Extent returns the number of indexable windows in the named
// sequence.
func (cm *CoordinateMap) Extent(name string) (uint64, error) {
	i, ok := cm.byName[name]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownSequence, "%q", name)
	}
	return cm.extent[i], nil
}

// Offset returns the global position of local offset 0 in the named
// sequence.
func (cm *CoordinateMap) Offset(name string) (uint64, error) {
	i, ok := cm.byName[name]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownSequence, "%q", name)
	}
	return cm.start[i], nil
}

// Length returns the native length of the named sequence.
func (cm *CoordinateMap) Length(name string) (int, error) {
	i, ok := cm.byName[name]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownSequence, "%q", name)
	}
	return cm.seqs[i].Length, nil
}

// ToGlobal converts a local down-sampled offset to a global position.
func (cm *CoordinateMap) ToGlobal(name string, local uint64) (uint64, error) {
	i, ok := cm.byName[name]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownSequence, "%q", name)
	}
	if local >= cm.extent[i] {
		return 0, errors.Errorf("%s: local offset %d beyond extent %d", name, local, cm.extent[i])
	}
	return cm.start[i] + local, nil
}

// FromGlobal converts a global position back to a sequence name and
// local down-sampled offset.
func (cm *CoordinateMap) FromGlobal(global uint64) (string, uint64, error) {
	if global >= cm.Total() {
		return "", 0, errors.Wrapf(ErrIndexCorrupt, "position %d, total %d", global, cm.Total())
	}
	// First sequence whose range ends after global. Empty sequences
	// have start[i+1] == start[i] and are never selected.
	i := sort.Search(len(cm.seqs), func(i int) bool {
		return cm.start[i+1] > global
	})
	return cm.seqs[i].Name, global - cm.start[i], nil
}

// order returns the index of the named sequence in global order, or
// -1.
func (cm *CoordinateMap) order(name string) int {
	if i, ok := cm.byName[name]; ok {
		return i
	}
	return -1
}
