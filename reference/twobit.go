package reference

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"
)

// twoBitSignature is the first word of a UCSC .2bit file, in the byte
// order the rest of the file uses.
const twoBitSignature = 0x1A412743

// Packed bases, most significant bits first.
var twoBitBases = [4]byte{'T', 'C', 'A', 'G'}

// ErrNotTwoBit means a file does not start with the 2bit signature.
var ErrNotTwoBit = errors.New("not a 2bit file")

type block struct {
	start, size int
}

type twoBitRecord struct {
	size      int
	nBlocks   []block
	maskBlock []block
	dnaOffset int64
}

// TwoBit reads sequences from a UCSC .2bit file without loading them
// into memory. It is safe for concurrent use.
type TwoBit struct {
	r       io.ReaderAt
	closer  io.Closer
	order   binary.ByteOrder
	names   []string
	records map[string]*twoBitRecord
}

// OpenTwoBit opens a .2bit file.
func OpenTwoBit(filename string) (*TwoBit, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	tb, err := NewTwoBit(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "%s", filename)
	}
	tb.closer = f
	return tb, nil
}

// NewTwoBit reads the header and sequence index of a 2bit file from r.
func NewTwoBit(r io.ReaderAt) (*TwoBit, error) {
	tb := &TwoBit{r: r, records: map[string]*twoBitRecord{}}
	var hdr [16]byte
	if _, err := r.ReadAt(hdr[:], 0); err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	switch {
	case binary.LittleEndian.Uint32(hdr[0:]) == twoBitSignature:
		tb.order = binary.LittleEndian
	case binary.BigEndian.Uint32(hdr[0:]) == twoBitSignature:
		tb.order = binary.BigEndian
	default:
		return nil, ErrNotTwoBit
	}
	version := tb.order.Uint32(hdr[4:])
	if version > 1 {
		return nil, errors.Errorf("unsupported 2bit version %d", version)
	}
	count := int(tb.order.Uint32(hdr[8:]))

	pos := int64(len(hdr))
	offsets := make([]int64, 0, count)
	for i := 0; i < count; i++ {
		var namelen [1]byte
		if _, err := r.ReadAt(namelen[:], pos); err != nil {
			return nil, errors.Wrap(err, "read index")
		}
		pos++
		entry := make([]byte, int(namelen[0])+8)
		if version == 0 {
			entry = entry[:len(entry)-4]
		}
		if _, err := r.ReadAt(entry, pos); err != nil {
			return nil, errors.Wrap(err, "read index")
		}
		pos += int64(len(entry))
		name := string(entry[:namelen[0]])
		if version == 0 {
			offsets = append(offsets, int64(tb.order.Uint32(entry[namelen[0]:])))
		} else {
			offsets = append(offsets, int64(tb.order.Uint64(entry[namelen[0]:])))
		}
		if _, dup := tb.records[name]; dup {
			return nil, errors.Errorf("duplicate sequence name %q", name)
		}
		tb.names = append(tb.names, name)
		tb.records[name] = nil
	}
	for i, name := range tb.names {
		rec, err := tb.readRecord(offsets[i])
		if err != nil {
			return nil, errors.Wrapf(err, "%s", name)
		}
		tb.records[name] = rec
	}
	return tb, nil
}

func (tb *TwoBit) readRecord(offset int64) (*twoBitRecord, error) {
	rec := &twoBitRecord{}
	readUint32 := func() (int, error) {
		var buf [4]byte
		_, err := tb.r.ReadAt(buf[:], offset)
		offset += 4
		return int(tb.order.Uint32(buf[:])), err
	}
	readBlocks := func() ([]block, error) {
		n, err := readUint32()
		if err != nil {
			return nil, err
		}
		buf := make([]byte, n*8)
		if _, err = tb.r.ReadAt(buf, offset); err != nil {
			return nil, err
		}
		offset += int64(len(buf))
		blocks := make([]block, n)
		for i := range blocks {
			blocks[i].start = int(tb.order.Uint32(buf[i*4:]))
			blocks[i].size = int(tb.order.Uint32(buf[(n+i)*4:]))
		}
		return blocks, nil
	}
	var err error
	if rec.size, err = readUint32(); err != nil {
		return nil, err
	}
	if rec.nBlocks, err = readBlocks(); err != nil {
		return nil, err
	}
	if rec.maskBlock, err = readBlocks(); err != nil {
		return nil, err
	}
	offset += 4 // reserved
	rec.dnaOffset = offset
	return rec, nil
}

func (tb *TwoBit) SequenceNames() []string {
	return append([]string(nil), tb.names...)
}

func (tb *TwoBit) SequenceLen(name string) (int, error) {
	rec, ok := tb.records[name]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownSequence, "%q", name)
	}
	return rec.size, nil
}

func (tb *TwoBit) Read(name string, start, end int) ([]byte, error) {
	rec, ok := tb.records[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownSequence, "%q", name)
	}
	if err := checkRange(name, start, end, rec.size); err != nil {
		return nil, err
	}
	if start == end {
		return []byte{}, nil
	}
	packed := make([]byte, (end+3)/4-start/4)
	if _, err := tb.r.ReadAt(packed, rec.dnaOffset+int64(start/4)); err != nil {
		return nil, errors.Wrapf(err, "%s: read bases", name)
	}
	seq := make([]byte, end-start)
	for i := range seq {
		p := start + i
		b := packed[p/4-start/4]
		seq[i] = twoBitBases[(b>>(6-2*uint(p%4)))&3]
	}
	forEachOverlap(rec.nBlocks, start, end, func(from, to int) {
		for i := from; i < to; i++ {
			seq[i-start] = 'N'
		}
	})
	forEachOverlap(rec.maskBlock, start, end, func(from, to int) {
		copy(seq[from-start:to-start], bytes.ToLower(seq[from-start:to-start]))
	})
	return seq, nil
}

// forEachOverlap calls fn with the intersection of [start, end) and
// each overlapping block. blocks must be sorted and disjoint.
func forEachOverlap(blocks []block, start, end int, fn func(from, to int)) {
	i := sort.Search(len(blocks), func(i int) bool {
		return blocks[i].start+blocks[i].size > start
	})
	for ; i < len(blocks) && blocks[i].start < end; i++ {
		from, to := blocks[i].start, blocks[i].start+blocks[i].size
		if from < start {
			from = start
		}
		if to > end {
			to = end
		}
		fn(from, to)
	}
}

// Close closes the underlying file, if TwoBit opened it.
func (tb *TwoBit) Close() error {
	if tb.closer == nil {
		return nil
	}
	return tb.closer.Close()
}
