package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"

	"git.arvados.org/genomelocator.git/polyphase"
	"git.arvados.org/genomelocator.git/reference"
	"github.com/pkg/errors"
)

// coords prints the coordinate map an index built from a reference
// would use: one line per sequence with its name, native length,
// number of sampled windows, and first global position.
type coords struct {
	refFile        string
	outputFilename string
	params         polyphase.Params
}

func (cmd *coords) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&cmd.refFile, "ref", "", "reference `file` (.2bit, or fasta, possibly gzipped)")
	flags.IntVar(&cmd.params.M, "m", polyphase.DefaultParams.M, "down-sampling `stride`")
	flags.IntVar(&cmd.params.Q, "q", polyphase.DefaultParams.Q, "down-sampled k-mer `length`")
	flags.StringVar(&cmd.outputFilename, "o", "", "output filename (default: stdout)")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if cmd.refFile == "" {
		err = errors.New("reference data (-ref) not specified")
		return 2
	}
	if err = cmd.params.Validate(); err != nil {
		return 2
	}

	ref, err := reference.Open(cmd.refFile)
	if err != nil {
		return 1
	}
	defer ref.Close()
	sizes, err := polyphase.SequenceSizes(ref)
	if err != nil {
		return 1
	}
	cm, err := polyphase.NewCoordinateMap(sizes, cmd.params)
	if err != nil {
		return 1
	}

	var out io.WriteCloser
	if cmd.outputFilename == "" {
		out = nopCloser{stdout}
	} else {
		out, err = os.OpenFile(cmd.outputFilename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
		if err != nil {
			return 1
		}
		defer out.Close()
	}
	bufw := bufio.NewWriter(out)
	for _, seq := range cm.Sequences() {
		extent, _ := cm.Extent(seq.Name)
		offset, _ := cm.Offset(seq.Name)
		fmt.Fprintf(bufw, "%s\t%d\t%d\t%d\n", seq.Name, seq.Length, extent, offset)
	}
	fmt.Fprintf(bufw, "#total\t\t%d\t\n", cm.Total())
	if err = bufw.Flush(); err != nil {
		return 1
	}
	if err = out.Close(); err != nil {
		return 1
	}
	return 0
}
