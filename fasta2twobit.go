package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"git.arvados.org/genomelocator.git/reference"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type fasta2twobit struct {
	inputFile  string
	outputFile string
}

func (cmd *fasta2twobit) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&cmd.inputFile, "i", "", "input fasta `file`, possibly gzipped")
	flags.StringVar(&cmd.outputFile, "o", "", "output 2bit `file` (default: input with .2bit extension)")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if cmd.inputFile == "" {
		err = errors.New("input file (-i) not specified")
		return 2
	}
	if cmd.outputFile == "" {
		name := strings.TrimSuffix(cmd.inputFile, ".gz")
		for _, ext := range []string{".fasta", ".fa", ".fna"} {
			name = strings.TrimSuffix(name, ext)
		}
		cmd.outputFile = name + ".2bit"
	}

	ref, err := reference.ReadFasta(cmd.inputFile)
	if err != nil {
		return 1
	}
	var seqs []reference.Sequence
	var total int64
	for _, name := range ref.SequenceNames() {
		n, _ := ref.SequenceLen(name)
		var seq []byte
		seq, err = ref.Read(name, 0, n)
		if err != nil {
			return 1
		}
		seqs = append(seqs, reference.Sequence{Name: name, Seq: seq})
		total += int64(n)
	}

	f, err := os.OpenFile(cmd.outputFile, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
	if err != nil {
		return 1
	}
	err = reference.WriteTwoBit(f, seqs)
	if err != nil {
		f.Close()
		return 1
	}
	err = f.Close()
	if err != nil {
		return 1
	}
	log.Printf("wrote %s: %d sequences, %s bases", cmd.outputFile, len(seqs), humanize.Comma(total))
	return 0
}
