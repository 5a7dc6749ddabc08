// Package reference provides random access to named nucleotide
// sequences stored in 2bit or FASTA files.
package reference

import (
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrOutOfRange means a read extends outside a sequence.
	ErrOutOfRange = errors.New("read out of range")

	// ErrUnknownSequence means a sequence name is not present.
	ErrUnknownSequence = errors.New("unknown sequence")
)

// Source is a set of named sequences supporting random access reads.
type Source interface {
	// SequenceNames returns the sequence names in file order.
	SequenceNames() []string
	// SequenceLen returns the length of the named sequence.
	SequenceLen(name string) (int, error)
	// Read returns bases [start, end) of the named sequence, case
	// preserved.
	Read(name string, start, end int) ([]byte, error)
	Close() error
}

// Open opens a 2bit file (by ".2bit" suffix) for random access, or
// reads a (possibly gzipped) FASTA file into memory.
func Open(filename string) (Source, error) {
	if strings.HasSuffix(filename, ".2bit") {
		return OpenTwoBit(filename)
	}
	return ReadFasta(filename)
}

func checkRange(name string, start, end, size int) error {
	if start < 0 || end < start || end > size {
		return errors.Wrapf(ErrOutOfRange, "%s:[%d,%d) of %d", name, start, end, size)
	}
	return nil
}
