package polyphase

import (
	"bytes"
	"math/rand"
	"strings"

	"git.arvados.org/genomelocator.git/reference"
	"github.com/pkg/errors"
	"gopkg.in/check.v1"
)

type searchSuite struct{}

var _ = check.Suite(&searchSuite{})

func newTestSearcher(c *check.C, ref *reference.Memory, p Params) *Searcher {
	ix, err := Build(ref, p, BuildOptions{Workers: 2})
	c.Assert(err, check.IsNil)
	searcher, err := NewSearcher(ix, ref)
	c.Assert(err, check.IsNil)
	return searcher
}

// addNs overwrites a few random runs of seq with N.
func addNs(rnd *rand.Rand, seq []byte, runs int) {
	for i := 0; i < runs; i++ {
		start := rnd.Intn(len(seq) - 20)
		for j := start; j < start+1+rnd.Intn(20); j++ {
			seq[j] = 'N'
		}
	}
}

func (s *searchSuite) TestConcreteScenario(c *check.C) {
	rnd := rand.New(rand.NewSource(5))
	ref := reference.NewMemory()
	chr1 := randomSeq(rnd, 130)
	c.Assert(ref.Add("chr1", chr1), check.IsNil)
	searcher := newTestSearcher(c, ref, Params{M: 2, Q: 5})

	query := append([]byte(nil), chr1[50:70]...)
	matches, err := searcher.Match(query)
	c.Assert(err, check.IsNil)
	c.Check(matches, check.DeepEquals, []Match{{Chrom: "chr1", Start: 51, End: 70}})

	query[7] = "CATG"[strings.IndexByte("ACGT", query[7])]
	matches, err = searcher.Match(query)
	c.Assert(err, check.IsNil)
	for _, m := range matches {
		c.Check(m.Start, check.Not(check.Equals), 51)
	}
}

func (s *searchSuite) TestRoundTrip(c *check.C) {
	for _, p := range []Params{{1, 5}, {2, 5}, {3, 4}, {7, 3}, {10, 10}, {3, 12}} {
		rnd := rand.New(rand.NewSource(int64(p.M*100 + p.Q)))
		ref := reference.NewMemory()
		for _, chrom := range []struct {
			name string
			size int
		}{{"chr2", 1500}, {"chr1", 2000}, {"chrM", 300}} {
			seq := randomSeq(rnd, chrom.size)
			addNs(rnd, seq, 3)
			c.Assert(ref.Add(chrom.name, seq), check.IsNil)
		}
		searcher := newTestSearcher(c, ref, p)
		names := ref.SequenceNames()
		found := 0
		for found < 100 {
			chrom := names[rnd.Intn(len(names))]
			size, _ := ref.SequenceLen(chrom)
			length := p.MinQueryLen() + rnd.Intn(40)
			if length > size {
				continue
			}
			pos := rnd.Intn(size - length + 1)
			query, err := ref.Read(chrom, pos, pos+length)
			c.Assert(err, check.IsNil)
			if bytes.IndexByte(query, 'N') >= 0 {
				continue
			}
			found++
			matches, err := searcher.Match(query)
			c.Assert(err, check.IsNil)
			c.Check(matches, hasMatch, Match{Chrom: chrom, Start: pos + 1, End: pos + length},
				check.Commentf("params %s", p))
			for _, m := range matches {
				seq, err := ref.Read(m.Chrom, m.Start-1, m.End)
				c.Assert(err, check.IsNil)
				c.Check(string(seq), check.Equals, string(query), check.Commentf("false positive %v", m))
			}
		}
	}
}

func (s *searchSuite) TestPhaseCompleteness(c *check.C) {
	rnd := rand.New(rand.NewSource(6))
	ref := reference.NewMemory()
	seq := randomSeq(rnd, 1000)
	c.Assert(ref.Add("chr1", seq), check.IsNil)
	p := Params{M: 5, Q: 6}
	searcher := newTestSearcher(c, ref, p)

	pos, length := 333, 60
	query := seq[pos : pos+length]
	for i := 0; i <= length-p.MinQueryLen(); i++ {
		matches, err := searcher.Match(query[i:])
		c.Assert(err, check.IsNil)
		c.Check(matches, hasMatch, Match{Chrom: "chr1", Start: pos + i + 1, End: pos + length}, check.Commentf("shift %d", i))
	}
}

func (s *searchSuite) TestMinimumLength(c *check.C) {
	rnd := rand.New(rand.NewSource(7))
	ref := reference.NewMemory()
	seq := randomSeq(rnd, 500)
	c.Assert(ref.Add("chr1", seq), check.IsNil)
	p := Params{M: 3, Q: 5}
	searcher := newTestSearcher(c, ref, p)

	_, err := searcher.Match(seq[100 : 100+p.MinQueryLen()-1])
	c.Check(errors.Is(err, ErrInvalidQuery), check.Equals, true)
	_, err = searcher.Match(nil)
	c.Check(errors.Is(err, ErrInvalidQuery), check.Equals, true)

	matches, err := searcher.Match(seq[100 : 100+p.MinQueryLen()])
	c.Check(err, check.IsNil)
	c.Check(matches, hasMatch, Match{Chrom: "chr1", Start: 101, End: 115})

	matches, err = searcher.MatchString(strings.Repeat("A", p.MinQueryLen()))
	c.Check(err, check.IsNil)
	for _, m := range matches {
		c.Check(string(seq[m.Start-1:m.End]), check.Equals, strings.Repeat("A", p.MinQueryLen()))
	}
}

func (s *searchSuite) TestAmbiguityFlanks(c *check.C) {
	rnd := rand.New(rand.NewSource(8))
	seq := randomSeq(rnd, 400)
	for i := 90; i < 100; i++ {
		seq[i] = 'N'
	}
	for i := 160; i < 175; i++ {
		seq[i] = 'N'
	}
	ref := reference.NewMemory()
	c.Assert(ref.Add("chr1", seq), check.IsNil)
	p := Params{M: 4, Q: 5}
	searcher := newTestSearcher(c, ref, p)

	for pos := 100; pos+p.MinQueryLen() <= 160; pos++ {
		query := seq[pos : pos+p.MinQueryLen()]
		matches, err := searcher.Match(query)
		c.Assert(err, check.IsNil)
		c.Check(matches, hasMatch, Match{Chrom: "chr1", Start: pos + 1, End: pos + p.MinQueryLen()})
	}
}

// A query containing N is found through a phase whose sampled bases
// avoid it.
func (s *searchSuite) TestQueryWithAmbiguousBase(c *check.C) {
	rnd := rand.New(rand.NewSource(9))
	seq := randomSeq(rnd, 300)
	seq[51] = 'N'
	ref := reference.NewMemory()
	c.Assert(ref.Add("chr1", seq), check.IsNil)
	searcher := newTestSearcher(c, ref, Params{M: 2, Q: 5})

	matches, err := searcher.Match(seq[51:81])
	c.Assert(err, check.IsNil)
	c.Check(matches, check.DeepEquals, []Match{{Chrom: "chr1", Start: 52, End: 81}})
}

func (s *searchSuite) TestSoftMaskedReference(c *check.C) {
	rnd := rand.New(rand.NewSource(10))
	seq := randomSeq(rnd, 300)
	copy(seq[100:200], bytes.ToLower(seq[100:200]))
	ref := reference.NewMemory()
	c.Assert(ref.Add("chr1", seq), check.IsNil)
	searcher := newTestSearcher(c, ref, Params{M: 3, Q: 5})

	query := bytes.ToUpper(seq[90:130])
	matches, err := searcher.Match(query)
	c.Assert(err, check.IsNil)
	c.Check(matches, check.DeepEquals, []Match{{Chrom: "chr1", Start: 91, End: 130}})
}

func (s *searchSuite) TestRepeatsAcrossChromosomes(c *check.C) {
	rnd := rand.New(rand.NewSource(11))
	motif := randomSeq(rnd, 40)
	chrA := randomSeq(rnd, 500)
	chrB := randomSeq(rnd, 800)
	copy(chrA[0:], motif)
	copy(chrA[460:], motif)
	copy(chrB[123:], motif)
	copy(chrB[760:], motif)
	ref := reference.NewMemory()
	c.Assert(ref.Add("chrA", chrA), check.IsNil)
	c.Assert(ref.Add("chrB", chrB), check.IsNil)
	searcher := newTestSearcher(c, ref, Params{M: 3, Q: 6})

	matches, err := searcher.Match(motif)
	c.Assert(err, check.IsNil)
	// chrB is longer, so it comes first
	c.Check(matches, check.DeepEquals, []Match{
		{Chrom: "chrB", Start: 124, End: 163},
		{Chrom: "chrB", Start: 761, End: 800},
		{Chrom: "chrA", Start: 1, End: 40},
		{Chrom: "chrA", Start: 461, End: 500},
	})
}

func (s *searchSuite) TestReferenceMismatch(c *check.C) {
	rnd := rand.New(rand.NewSource(12))
	ref := reference.NewMemory()
	c.Assert(ref.Add("chr1", randomSeq(rnd, 200)), check.IsNil)
	ix, err := Build(ref, Params{M: 2, Q: 4}, BuildOptions{})
	c.Assert(err, check.IsNil)

	other := reference.NewMemory()
	c.Assert(other.Add("chr1", randomSeq(rnd, 201)), check.IsNil)
	_, err = NewSearcher(ix, other)
	c.Check(errors.Is(err, ErrParamMismatch), check.Equals, true)

	c.Check(ix.CheckParams(Params{M: 2, Q: 4}), check.IsNil)
	c.Check(errors.Is(ix.CheckParams(Params{M: 3, Q: 4}), ErrParamMismatch), check.Equals, true)
}

func (s *searchSuite) TestPositionBeyondCoordinates(c *check.C) {
	ref := reference.NewMemory()
	c.Assert(ref.Add("chr1", []byte("ACGTACGT")), check.IsNil)
	sizes, err := SequenceSizes(ref)
	c.Assert(err, check.IsNil)
	p := Params{M: 1, Q: 2}
	key, err := Encode([]byte("AC"))
	c.Assert(err, check.IsNil)

	// one position for key AC, beyond the 7 windows of chr1
	t := &Table{
		offsets:   NewArray(int(key)+1, 1),
		counts:    NewArray(int(key)+1, 1),
		positions: NewArray(1, 100),
	}
	t.counts.set(int(key), 1)
	t.positions.set(0, 100)
	searcher, err := NewSearcher(NewIndex(t, sizes, p), ref)
	c.Assert(err, check.IsNil)
	c.Check(searcher.Coordinates().Total(), check.Equals, uint64(7))
	matches, err := searcher.MatchString("AC")
	c.Check(matches, check.IsNil)
	c.Check(errors.Is(err, ErrIndexCorrupt), check.Equals, true)

	// in range but pointing at the wrong bases: no match, no error
	t.positions.set(0, 2)
	matches, err = searcher.MatchString("AC")
	c.Check(err, check.IsNil)
	c.Check(matches, check.HasLen, 0)
	matches, err = searcher.MatchString("GT")
	c.Check(err, check.IsNil)
	c.Check(matches, check.HasLen, 0)
}

// hasMatch checks that a []Match contains a given Match.
var hasMatch check.Checker = &hasMatchChecker{
	&check.CheckerInfo{Name: "hasMatch", Params: []string{"obtained", "match"}},
}

type hasMatchChecker struct {
	*check.CheckerInfo
}

func (checker *hasMatchChecker) Check(params []interface{}, names []string) (bool, string) {
	matches, ok := params[0].([]Match)
	if !ok && params[0] != nil {
		return false, "obtained value must be []Match"
	}
	for _, m := range matches {
		if m == params[1] {
			return true, ""
		}
	}
	return false, ""
}
