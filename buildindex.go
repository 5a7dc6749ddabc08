package main

import (
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strconv"

	"git.arvados.org/arvados.git/sdk/go/arvados"
	"git.arvados.org/genomelocator.git/polyphase"
	"git.arvados.org/genomelocator.git/reference"
	"github.com/cheggaaa/pb/v3"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type buildIndex struct {
	refFile     string
	outputFile  string
	projectUUID string
	runLocal    bool
	params      polyphase.Params
	workers     int
	progress    bool
	compress    bool
}

func (cmd *buildIndex) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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
	flags.StringVar(&cmd.outputFile, "o", "", "output `file` (default: <ref>.M<m>.Q<q>.index)")
	flags.IntVar(&cmd.workers, "workers", runtime.NumCPU(), "number of sequences to scan concurrently")
	flags.BoolVar(&cmd.progress, "progress", false, "show a progress bar on stderr")
	flags.BoolVar(&cmd.compress, "compress", true, "compress index arrays")
	flags.StringVar(&cmd.projectUUID, "project", "", "project `UUID` for containers and output data")
	flags.BoolVar(&cmd.runLocal, "local", false, "run on local host (default: run in an arvados container)")
	priority := flags.Int("priority", 500, "container request priority")
	pprof := flags.String("pprof", "", "serve Go profile data at http://`[addr]:port`")
	loglevel := flags.String("loglevel", "info", "logging `level` (debug, info, warn, error)")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if cmd.refFile == "" {
		err = errors.New("reference data (-ref) not specified")
		return 2
	} else if flags.NArg() > 0 {
		err = errors.Errorf("unexpected arguments: %q", flags.Args())
		return 2
	}
	if err = cmd.params.Validate(); err != nil {
		return 2
	}
	if err = setLogLevel(*loglevel); err != nil {
		return 2
	}
	servePprof(*pprof)

	if !cmd.runLocal {
		if cmd.outputFile != "" {
			err = errors.New("cannot specify output file in container mode: not implemented")
			return 1
		}
		runner := arvadosContainerRunner{
			Name:        "genomelocator build-index",
			Client:      arvados.NewClientFromEnv(),
			ProjectUUID: cmd.projectUUID,
			RAM:         64 << 30,
			VCPUs:       16,
			Priority:    *priority,
		}
		err = runner.TranslatePaths(&cmd.refFile)
		if err != nil {
			return 1
		}
		outname := polyphase.IndexFilename(filepath.Base(cmd.refFile), cmd.params)
		runner.Args = []string{"build-index", "-local=true",
			"-ref", cmd.refFile,
			"-m", strconv.Itoa(cmd.params.M),
			"-q", strconv.Itoa(cmd.params.Q),
			"-workers", strconv.Itoa(runner.VCPUs),
			fmt.Sprintf("-compress=%v", cmd.compress),
			"-loglevel", *loglevel,
			"-o", "/mnt/output/" + outname,
		}
		var output string
		output, err = runner.Run()
		if err != nil {
			return 1
		}
		fmt.Fprintln(stdout, output+"/"+outname)
		return 0
	}

	if cmd.outputFile == "" {
		cmd.outputFile = polyphase.IndexFilename(cmd.refFile, cmd.params)
	}
	err = cmd.build(stderr)
	if err != nil {
		return 1
	}
	return 0
}

func (cmd *buildIndex) build(stderr io.Writer) error {
	log.Printf("reference %s load starting", cmd.refFile)
	ref, err := reference.Open(cmd.refFile)
	if err != nil {
		return err
	}
	defer ref.Close()
	sizes, err := polyphase.SequenceSizes(ref)
	if err != nil {
		return err
	}
	var total int64
	for _, s := range sizes {
		total += int64(s.Length)
	}
	log.Printf("reference %s load done: %d sequences, %s bases", cmd.refFile, len(sizes), humanize.Comma(total))

	opts := polyphase.BuildOptions{Workers: cmd.workers}
	var bar *pb.ProgressBar
	if cmd.progress {
		bar = pb.New64(total).SetTemplate(pb.Full).SetWriter(stderr).Start()
		opts.Progress = func(bases int64) { bar.Add64(bases) }
	}
	ix, err := polyphase.Build(ref, cmd.params, opts)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return err
	}
	ix.Info.Reference = filepath.Base(cmd.refFile)

	log.Printf("writing %s", cmd.outputFile)
	err = ix.Save(cmd.outputFile, cmd.compress)
	if err != nil {
		return err
	}
	log.Printf("wrote %s: %s positions, %s keys", cmd.outputFile, humanize.Comma(int64(ix.Info.Entries)), humanize.Comma(int64(ix.Info.KeySpace)))
	return nil
}
