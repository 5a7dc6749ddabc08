package polyphase

import (
	"encoding/hex"
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

// FormatVersion is the version of the persisted index layout written
// by this package.
const FormatVersion = 1

// ErrParamMismatch means an index is used with parameters or a
// reference other than the ones it was built from.
var ErrParamMismatch = errors.New("index parameters do not match")

// Info describes how an index was built. It is stored alongside the
// arrays so a loaded index can be checked against the reference and
// parameters it is used with.
type Info struct {
	Version         int    `toml:"version"`
	M               int    `toml:"M"`
	Q               int    `toml:"Q"`
	Reference       string `toml:"reference" comment:"reference file the index was built from"`
	ReferenceDigest string `toml:"reference-digest" comment:"blake2b-256 of sequence names and lengths"`
	Entries         int    `toml:"entries"`
	KeySpace        int    `toml:"key-space"`
	OffsetsWidth    int    `toml:"offsets-width"`
	CountsWidth     int    `toml:"counts-width"`
	PositionsWidth  int    `toml:"positions-width"`
}

// Index is a Table together with the Info needed to use it.
type Index struct {
	Info  Info
	Table *Table
}

// NewIndex wraps a table built from a reference with the given
// sequence sizes (in storage order) and params.
func NewIndex(table *Table, sizes []SequenceSize, p Params) *Index {
	ow, cw, pw := table.Widths()
	return &Index{
		Info: Info{
			Version:         FormatVersion,
			M:               p.M,
			Q:               p.Q,
			ReferenceDigest: ReferenceDigest(sizes),
			Entries:         table.Len(),
			KeySpace:        table.KeySpace(),
			OffsetsWidth:    int(ow),
			CountsWidth:     int(cw),
			PositionsWidth:  int(pw),
		},
		Table: table,
	}
}

// Params returns the parameters the index was built with.
func (ix *Index) Params() Params {
	return Params{M: ix.Info.M, Q: ix.Info.Q}
}

// CheckParams returns ErrParamMismatch if p differs from the
// parameters the index was built with.
func (ix *Index) CheckParams(p Params) error {
	if p != ix.Params() {
		return errors.Wrapf(ErrParamMismatch, "index built with %s, requested %s", ix.Params(), p)
	}
	return nil
}

// ReferenceDigest identifies a reference by its sequence names and
// lengths, in storage order.
func ReferenceDigest(sizes []SequenceSize) string {
	h, _ := blake2b.New256(nil)
	for _, s := range sizes {
		fmt.Fprintf(h, "%s\t%d\n", s.Name, s.Length)
	}
	return hex.EncodeToString(h.Sum(nil))
}
