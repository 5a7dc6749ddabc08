package polyphase

import (
	"github.com/pkg/errors"
	"gopkg.in/check.v1"
)

type coordsSuite struct{}

var _ = check.Suite(&coordsSuite{})

func (s *coordsSuite) TestOrder(c *check.C) {
	cm, err := NewCoordinateMap([]SequenceSize{
		{"b", 50}, {"a", 100}, {"c", 50}, {"d", 100}, {"e", 75},
	}, Params{M: 1, Q: 1})
	c.Assert(err, check.IsNil)
	var names []string
	for _, seq := range cm.Sequences() {
		names = append(names, seq.Name)
	}
	c.Check(names, check.DeepEquals, []string{"a", "d", "e", "b", "c"})
}

func (s *coordsSuite) TestExtent(c *check.C) {
	cm, err := NewCoordinateMap([]SequenceSize{
		{"long", 100}, {"exact", 12}, {"short", 11}, {"tiny", 2}, {"empty", 0},
	}, Params{M: 3, Q: 4})
	c.Assert(err, check.IsNil)
	for name, expect := range map[string]uint64{
		"long":  31, // ceil(100/3)=34 sampled bases
		"exact": 1,  // 4 sampled bases
		"short": 1,  // ceil(11/3)=4
		"tiny":  0,
		"empty": 0,
	} {
		extent, err := cm.Extent(name)
		c.Check(err, check.IsNil)
		c.Check(extent, check.Equals, expect, check.Commentf("%s", name))
	}
	c.Check(cm.Total(), check.Equals, uint64(33))
}

func (s *coordsSuite) TestBoundaries(c *check.C) {
	cm, err := NewCoordinateMap([]SequenceSize{
		{"chrB", 57}, {"chrA", 100},
	}, Params{M: 3, Q: 4})
	c.Assert(err, check.IsNil)
	// chrA: ceil(100/3)-3 = 31 windows at [0,31)
	// chrB: ceil(57/3)-3 = 16 windows at [31,47)
	c.Check(cm.Total(), check.Equals, uint64(47))

	for _, trial := range []struct {
		global uint64
		chrom  string
		local  uint64
	}{
		{0, "chrA", 0},
		{30, "chrA", 30},
		{31, "chrB", 0},
		{46, "chrB", 15},
	} {
		chrom, local, err := cm.FromGlobal(trial.global)
		c.Check(err, check.IsNil)
		c.Check(chrom, check.Equals, trial.chrom)
		c.Check(local, check.Equals, trial.local)
		global, err := cm.ToGlobal(trial.chrom, trial.local)
		c.Check(err, check.IsNil)
		c.Check(global, check.Equals, trial.global)
	}

	_, _, err = cm.FromGlobal(47)
	c.Check(errors.Is(err, ErrIndexCorrupt), check.Equals, true)
	_, err = cm.ToGlobal("chrB", 16)
	c.Check(err, check.NotNil)
	_, err = cm.ToGlobal("chrC", 0)
	c.Check(errors.Is(err, ErrUnknownSequence), check.Equals, true)
}

// FromGlobal must agree with a linear scan, including around
// sequences too short to hold a window.
func (s *coordsSuite) TestFromGlobalMatchesLinearScan(c *check.C) {
	sizes := []SequenceSize{
		{"s1", 1000}, {"s2", 5}, {"s3", 640}, {"s4", 0}, {"s5", 333}, {"s6", 41}, {"s7", 41},
	}
	p := Params{M: 4, Q: 10}
	cm, err := NewCoordinateMap(sizes, p)
	c.Assert(err, check.IsNil)
	for global := uint64(0); global < cm.Total(); global++ {
		remain := global
		var expectChrom string
		for _, seq := range cm.Sequences() {
			extent := extentOf(seq.Length, p)
			if remain < extent {
				expectChrom = seq.Name
				break
			}
			remain -= extent
		}
		chrom, local, err := cm.FromGlobal(global)
		c.Assert(err, check.IsNil)
		c.Assert(chrom, check.Equals, expectChrom, check.Commentf("global %d", global))
		c.Assert(local, check.Equals, remain, check.Commentf("global %d", global))
	}
}

func (s *coordsSuite) TestDuplicateName(c *check.C) {
	_, err := NewCoordinateMap([]SequenceSize{{"a", 10}, {"a", 20}}, Params{M: 1, Q: 1})
	c.Check(err, check.NotNil)
}
