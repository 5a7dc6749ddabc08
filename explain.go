package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"time"

	"git.arvados.org/genomelocator.git/hgvs"
	"git.arvados.org/genomelocator.git/reference"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// explainer implements the explain subcommand, which describes how a
// query differs from the reference at a given location, e.g. to see
// why search did not report it there.
type explainer struct {
	refFile string
	chrom   string
	start   int
}

func (cmd *explainer) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&cmd.refFile, "ref", "", "reference `file` (.2bit, or fasta, possibly gzipped)")
	flags.StringVar(&cmd.chrom, "chrom", "", "reference sequence `name`")
	flags.IntVar(&cmd.start, "start", 1, "1-based reference `position` of the first query base")
	timeout := flags.Duration("timeout", time.Second, "diff timeout (examples: \"1s\", \"1ms\")")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if cmd.refFile == "" || cmd.chrom == "" {
		err = errors.New("reference data (-ref) and sequence name (-chrom) must be specified")
		return 2
	} else if flags.NArg() != 1 {
		err = errors.Errorf("usage: %s [options] query", prog)
		return 2
	} else if cmd.start < 1 {
		err = errors.Errorf("invalid start position %d", cmd.start)
		return 2
	}
	query := bytes.ToUpper([]byte(flags.Arg(0)))

	ref, err := reference.Open(cmd.refFile)
	if err != nil {
		return 1
	}
	defer ref.Close()
	size, err := ref.SequenceLen(cmd.chrom)
	if err != nil {
		return 1
	}
	end := cmd.start - 1 + len(query)
	if end > size {
		end = size
	}
	if cmd.start-1 > end {
		err = errors.Errorf("start position %d is past the end of %s (%d)", cmd.start, cmd.chrom, size)
		return 1
	}
	window, err := ref.Read(cmd.chrom, cmd.start-1, end)
	if err != nil {
		return 1
	}

	variants, timedOut := hgvs.Diff(string(bytes.ToUpper(window)), string(query), *timeout)
	if timedOut {
		log.Warnf("diff timed out after %v, variants may be coarse", *timeout)
	}
	if len(variants) == 0 {
		fmt.Fprintf(stdout, "%s:g.=\n", cmd.chrom)
		return 0
	}
	for _, v := range variants {
		v.Position += cmd.start - 1
		fmt.Fprintf(stdout, "%s:g.%s\t%s\t%d\t%s\t%s\n", cmd.chrom, v.String(), cmd.chrom, v.Position, v.Ref, v.New)
	}
	return 0
}
