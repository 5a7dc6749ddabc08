package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"git.arvados.org/genomelocator.git/polyphase"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/netutil"
)

type server struct {
	config serverConfig
}

func (srv *server) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	srv.config = defaultServerConfig
	var flagcfg serverConfig
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	configFile := flags.String("config", "", "TOML configuration `file`")
	flags.StringVar(&flagcfg.Listen, "listen", defaultServerConfig.Listen, "listen `address`")
	flags.StringVar(&flagcfg.Index, "index", "", "index `file` written by build-index")
	flags.StringVar(&flagcfg.Reference, "ref", "", "reference `file` the index was built from")
	flags.IntVar(&flagcfg.MaxConnections, "max-connections", defaultServerConfig.MaxConnections, "maximum concurrent connections")
	flags.IntVar(&flagcfg.MaxQueryLength, "max-query-length", defaultServerConfig.MaxQueryLength, "longest query accepted, in bases")
	flags.StringVar(&flagcfg.LogLevel, "loglevel", defaultServerConfig.LogLevel, "logging `level` (debug, info, warn, error)")
	pprof := flags.String("pprof", "", "serve Go profile data at http://`[addr]:port`")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}
	if *configFile != "" {
		err = loadServerConfig(*configFile, &srv.config)
		if err != nil {
			return 2
		}
	}
	// flags given on the command line override the config file
	flags.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen":
			srv.config.Listen = flagcfg.Listen
		case "index":
			srv.config.Index = flagcfg.Index
		case "ref":
			srv.config.Reference = flagcfg.Reference
		case "max-connections":
			srv.config.MaxConnections = flagcfg.MaxConnections
		case "max-query-length":
			srv.config.MaxQueryLength = flagcfg.MaxQueryLength
		case "loglevel":
			srv.config.LogLevel = flagcfg.LogLevel
		}
	})
	if err = srv.config.check(); err != nil {
		return 2
	}
	if err = setLogLevel(srv.config.LogLevel); err != nil {
		return 2
	}
	servePprof(*pprof)

	loader := &locator{indexFile: srv.config.Index, refFile: srv.config.Reference}
	searcher, ref, err := loader.open()
	if err != nil {
		return 1
	}
	defer ref.Close()

	ln, err := net.Listen("tcp", srv.config.Listen)
	if err != nil {
		return 1
	}
	ln = netutil.LimitListener(ln, srv.config.MaxConnections)
	httpserver := &http.Server{
		Handler:           newSearchHandler(searcher, srv.config.MaxQueryLength),
		ReadHeaderTimeout: time.Minute,
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	go func() {
		<-ctx.Done()
		log.Print("shutting down")
		httpserver.Shutdown(context.Background())
	}()
	log.Printf("listening at %s", ln.Addr())
	err = httpserver.Serve(ln)
	if err == http.ErrServerClosed {
		err = nil
	} else if err != nil {
		return 1
	}
	return 0
}

type searchHandler struct {
	searcher       *polyphase.Searcher
	maxQueryLength int
}

func newSearchHandler(searcher *polyphase.Searcher, maxQueryLength int) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/search", &searchHandler{searcher: searcher, maxQueryLength: maxQueryLength})
	mux.HandleFunc("/params", func(w http.ResponseWriter, r *http.Request) {
		p := searcher.Params()
		writeJSON(w, map[string]int{"M": p.M, "Q": p.Q, "min-query-length": p.MinQueryLen()})
	})
	return mux
}

func (h *searchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	query := r.FormValue("query")
	if len(query) > h.maxQueryLength {
		http.Error(w, fmt.Sprintf("query too long: %d > %d", len(query), h.maxQueryLength), http.StatusBadRequest)
		return
	}
	t0 := time.Now()
	matches, err := h.searcher.MatchString(query)
	if errors.Is(err, polyphase.ErrInvalidQuery) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	} else if err != nil {
		log.WithError(err).Error("search failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	log.WithFields(log.Fields{
		"length":  len(query),
		"matches": len(matches),
		"elapsed": time.Since(t0),
	}).Debug("search")
	if matches == nil {
		matches = []polyphase.Match{}
	}
	writeJSON(w, matches)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		log.WithError(err).Warn("error writing response")
	}
}
