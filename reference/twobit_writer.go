package reference

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
)

// Sequence is a named sequence to be written to a 2bit file.
type Sequence struct {
	Name string
	Seq  []byte
}

// WriteTwoBit writes seqs to w in (version 0, little endian) 2bit
// format. Runs of N become N blocks and runs of lowercase bases become
// mask blocks; any other non-ACGT byte is stored as N.
func WriteTwoBit(w io.Writer, seqs []Sequence) error {
	bufw := bufio.NewWriter(w)
	le := binary.LittleEndian
	put := func(vs ...uint32) error {
		var buf [4]byte
		for _, v := range vs {
			le.PutUint32(buf[:], v)
			if _, err := bufw.Write(buf[:]); err != nil {
				return err
			}
		}
		return nil
	}

	offset := 16
	for _, s := range seqs {
		if len(s.Name) > math.MaxUint8 {
			return errors.Errorf("sequence name too long: %q", s.Name)
		}
		offset += 1 + len(s.Name) + 4
	}
	type record struct {
		nBlocks, maskBlocks []block
	}
	records := make([]record, len(seqs))
	for i, s := range seqs {
		records[i].nBlocks = findBlocks(s.Seq, func(b byte) bool { return !isPackable(b) })
		records[i].maskBlocks = findBlocks(s.Seq, func(b byte) bool { return b >= 'a' && b <= 'z' })
	}

	if err := put(twoBitSignature, 0, uint32(len(seqs)), 0); err != nil {
		return err
	}
	for i, s := range seqs {
		if int64(offset) > math.MaxUint32 {
			return errors.New("2bit file too large for version 0 format")
		}
		if err := bufw.WriteByte(byte(len(s.Name))); err != nil {
			return err
		}
		if _, err := bufw.WriteString(s.Name); err != nil {
			return err
		}
		if err := put(uint32(offset)); err != nil {
			return err
		}
		offset += 4*4 + 8*len(records[i].nBlocks) + 8*len(records[i].maskBlocks) + (len(s.Seq)+3)/4
	}

	for i, s := range seqs {
		if err := put(uint32(len(s.Seq))); err != nil {
			return err
		}
		for _, blocks := range [][]block{records[i].nBlocks, records[i].maskBlocks} {
			fields := make([]uint32, 0, 1+2*len(blocks))
			fields = append(fields, uint32(len(blocks)))
			for _, b := range blocks {
				fields = append(fields, uint32(b.start))
			}
			for _, b := range blocks {
				fields = append(fields, uint32(b.size))
			}
			if err := put(fields...); err != nil {
				return err
			}
		}
		if err := put(0); err != nil {
			return err
		}
		packed := make([]byte, (len(s.Seq)+3)/4)
		for p, b := range s.Seq {
			packed[p/4] |= packBase(b) << (6 - 2*uint(p%4))
		}
		if _, err := bufw.Write(packed); err != nil {
			return err
		}
	}
	return bufw.Flush()
}

func isPackable(b byte) bool {
	switch b {
	case 'A', 'C', 'G', 'T', 'a', 'c', 'g', 't':
		return true
	}
	return false
}

// packBase returns the 2bit code of b. Unpackable bases are stored as
// T (code 0) and covered by an N block.
func packBase(b byte) byte {
	switch b {
	case 'C', 'c':
		return 1
	case 'A', 'a':
		return 2
	case 'G', 'g':
		return 3
	}
	return 0
}

// findBlocks returns the maximal runs of bytes in seq satisfying in.
func findBlocks(seq []byte, in func(byte) bool) []block {
	var blocks []block
	start := -1
	for i, b := range seq {
		if in(b) {
			if start < 0 {
				start = i
			}
		} else if start >= 0 {
			blocks = append(blocks, block{start: start, size: i - start})
			start = -1
		}
	}
	if start >= 0 {
		blocks = append(blocks, block{start: start, size: len(seq) - start})
	}
	return blocks
}
