package main

import (
	"bytes"
	"io/ioutil"
	"os"
	"strings"

	"gopkg.in/check.v1"
)

type explainSuite struct{}

var _ = check.Suite(&explainSuite{})

func (s *explainSuite) TestExplain(c *check.C) {
	tempdir := c.MkDir()
	chr2 := strings.Repeat("g", 1000) + "actgactCacgtacgt" + "actgactgacgAAcgt" + "ttt"
	err := ioutil.WriteFile(tempdir+"/ref.fa", []byte(">chr1\nacgt\n>chr2\n"+chr2+"\n"), 0700)
	c.Assert(err, check.IsNil)

	var output bytes.Buffer
	exited := (&explainer{}).RunCommand("explain", []string{"-ref", tempdir + "/ref.fa", "-chrom", "chr2", "-start", "1001", "actgactGacgtacgtactgactgacgTTcgt"}, nil, &output, os.Stderr)
	c.Check(exited, check.Equals, 0)
	c.Check("\n"+output.String(), check.Equals, `
chr2:g.1008C>G	chr2	1008	C	G
chr2:g.1028_1029delinsTT	chr2	1028	AA	TT
`)

	output.Reset()
	exited = (&explainer{}).RunCommand("explain", []string{"-ref", tempdir + "/ref.fa", "-chrom", "chr2", "-start", "1001", "ACTGACTCACGTACGT"}, nil, &output, os.Stderr)
	c.Check(exited, check.Equals, 0)
	c.Check(output.String(), check.Equals, "chr2:g.=\n")

	// query runs past the end of the sequence
	output.Reset()
	exited = (&explainer{}).RunCommand("explain", []string{"-ref", tempdir + "/ref.fa", "-chrom", "chr2", "-start", "1031", "GTTTTA"}, nil, &output, os.Stderr)
	c.Check(exited, check.Equals, 0)
	c.Check(output.String(), check.Equals, "chr2:g.1035_1036insA\tchr2\t1036\t\tA\n")

	exited = (&explainer{}).RunCommand("explain", []string{"-ref", tempdir + "/ref.fa", "-chrom", "chr3", "ACGT"}, nil, &output, &bytes.Buffer{})
	c.Check(exited, check.Equals, 1)
	exited = (&explainer{}).RunCommand("explain", []string{"-ref", tempdir + "/ref.fa", "-chrom", "chr1"}, nil, &output, &bytes.Buffer{})
	c.Check(exited, check.Equals, 2)
}
