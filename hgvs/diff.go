// Package hgvs describes the differences between two sequences as
// HGVS-style variants, e.g. "12A>C" or "7_8del".
package hgvs

import (
	"fmt"
	"strconv"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Variant is a change from a reference sequence. Position is 1-based
// in the reference.
type Variant struct {
	Position int
	Ref      string
	New      string
}

// span is the reference position or range affected by v. An
// insertion is placed between the two bases around it.
func (v *Variant) span() string {
	switch len(v.Ref) {
	case 0:
		return fmt.Sprintf("%d_%d", v.Position-1, v.Position)
	case 1:
		return strconv.Itoa(v.Position)
	default:
		return fmt.Sprintf("%d_%d", v.Position, v.Position+len(v.Ref)-1)
	}
}

func (v *Variant) String() string {
	switch {
	case len(v.Ref) == 0:
		return v.span() + "ins" + v.New
	case len(v.New) == 0:
		return v.span() + "del"
	case len(v.Ref) == 1 && len(v.New) == 1:
		return v.span() + v.Ref + ">" + v.New
	default:
		return v.span() + "delins" + v.New
	}
}

// Diff returns the variants that turn ref into seq. If timeout is
// non-zero and the diff takes longer, the result is a coarser (but
// still correct) description and timedOut is true.
func Diff(ref, seq string, timeout time.Duration) (variants []Variant, timedOut bool) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	dmp := diffmatchpatch.New()
	diffs := cleanup(dmp.DiffCleanupEfficiency(dmp.DiffBisect(ref, seq, deadline)))
	if timeout > 0 && time.Now().After(deadline) {
		timedOut = true
	}
	pos := 1
	for i := 0; i < len(diffs); i++ {
		switch diffs[i].Type {
		case diffmatchpatch.DiffEqual:
			pos += len(diffs[i].Text)
		case diffmatchpatch.DiffDelete:
			v := Variant{Position: pos, Ref: diffs[i].Text}
			if i+1 < len(diffs) && diffs[i+1].Type == diffmatchpatch.DiffInsert {
				// deletion followed by insertion
				v.New = diffs[i+1].Text
				i++
			}
			variants = append(variants, v)
			pos += len(v.Ref)
		case diffmatchpatch.DiffInsert:
			v := Variant{Position: pos, New: diffs[i].Text}
			if i+1 < len(diffs) && diffs[i+1].Type == diffmatchpatch.DiffDelete {
				// insertion followed by deletion
				v.Ref = diffs[i+1].Text
				i++
			}
			variants = append(variants, v)
			pos += len(v.Ref)
		}
	}
	return
}

// cleanup merges adjacent diffs of the same type.
func cleanup(in []diffmatchpatch.Diff) (out []diffmatchpatch.Diff) {
	for i := 0; i < len(in); i++ {
		d := in[i]
		for i < len(in)-1 && in[i].Type == in[i+1].Type {
			d.Text += in[i+1].Text
			i++
		}
		out = append(out, d)
	}
	return
}
