package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"strings"

	"git.arvados.org/genomelocator.git/polyphase"
	"git.arvados.org/genomelocator.git/reference"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// locator implements the search subcommand.
type locator struct {
	indexFile string
	refFile   string
	params    polyphase.Params
}

func (cmd *locator) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&cmd.indexFile, "index", "", "index `file` written by build-index")
	flags.StringVar(&cmd.refFile, "ref", "", "reference `file` the index was built from")
	flags.IntVar(&cmd.params.M, "m", 0, "expected down-sampling `stride` (default: as built)")
	flags.IntVar(&cmd.params.Q, "q", 0, "expected k-mer `length` (default: as built)")
	pprof := flags.String("pprof", "", "serve Go profile data at http://`[addr]:port`")
	loglevel := flags.String("loglevel", "info", "logging `level` (debug, info, warn, error)")
	flags.Usage = func() {
		fmt.Fprintf(stderr, "usage: %s -index file -ref file [query ...]\n\nWith no query arguments, queries are read from stdin, one per line.\n\n", prog)
		flags.PrintDefaults()
	}
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if cmd.indexFile == "" {
		err = errors.New("index (-index) not specified")
		return 2
	} else if cmd.refFile == "" {
		err = errors.New("reference data (-ref) not specified")
		return 2
	}
	if err = setLogLevel(*loglevel); err != nil {
		return 2
	}
	servePprof(*pprof)

	searcher, ref, err := cmd.open()
	if err != nil {
		return 1
	}
	defer ref.Close()

	bufw := bufio.NewWriter(stdout)
	invalid := 0
	search := func(query string) error {
		matches, err := searcher.MatchString(query)
		if errors.Is(err, polyphase.ErrInvalidQuery) {
			fmt.Fprintf(stderr, "%s\n", err)
			invalid++
			return nil
		} else if err != nil {
			return err
		}
		for _, m := range matches {
			fmt.Fprintf(bufw, "%s\t%d\t%d\n", m.Chrom, m.Start, m.End)
		}
		return nil
	}
	if flags.NArg() > 0 {
		for _, query := range flags.Args() {
			if err = search(query); err != nil {
				return 1
			}
		}
	} else {
		scanner := bufio.NewScanner(stdin)
		scanner.Buffer(make([]byte, 1<<16), 1<<28)
		for scanner.Scan() {
			query := strings.TrimSpace(scanner.Text())
			if query == "" {
				continue
			}
			if err = search(query); err != nil {
				return 1
			}
		}
		if err = scanner.Err(); err != nil {
			return 1
		}
	}
	if err = bufw.Flush(); err != nil {
		return 1
	}
	if invalid > 0 {
		err = errors.Errorf("%d invalid queries", invalid)
		return 1
	}
	return 0
}

// open loads the index and reference and checks that they belong
// together.
func (cmd *locator) open() (*polyphase.Searcher, reference.Source, error) {
	ix, err := polyphase.Load(cmd.indexFile)
	if err != nil {
		return nil, nil, err
	}
	p := ix.Params()
	if cmd.params.M != 0 {
		p.M = cmd.params.M
	}
	if cmd.params.Q != 0 {
		p.Q = cmd.params.Q
	}
	if err = ix.CheckParams(p); err != nil {
		return nil, nil, err
	}
	ref, err := reference.Open(cmd.refFile)
	if err != nil {
		return nil, nil, err
	}
	searcher, err := polyphase.NewSearcher(ix, ref)
	if err != nil {
		ref.Close()
		return nil, nil, err
	}
	log.Debugf("loaded %s (%s), minimum query length %d", cmd.indexFile, p, p.MinQueryLen())
	return searcher, ref, nil
}
