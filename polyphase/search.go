package polyphase

import (
	"bytes"
	"sort"
	"strings"
	"time"

	"git.arvados.org/genomelocator.git/hgvs"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ErrInvalidQuery means a query is too short to be searched.
var ErrInvalidQuery = errors.New("invalid query")

// explainTimeout bounds the time spent describing a rejected
// candidate in debug logs.
const explainTimeout = 10 * time.Millisecond

// Match is an exact occurrence of a query in the reference.
type Match struct {
	Chrom string `json:"chrom"`
	Start int    `json:"start"` // 1-based, first base
	End   int    `json:"end"`   // 1-based, last base
}

// Searcher finds exact occurrences of query sequences using an index
// and the reference it was built from. A Searcher is immutable and
// safe for concurrent use.
type Searcher struct {
	params Params
	table  *Table
	coords *CoordinateMap
	ref    Reference
}

// NewSearcher returns a searcher for ix. It fails with
// ErrParamMismatch if ix was built from a different reference.
func NewSearcher(ix *Index, ref Reference) (*Searcher, error) {
	p := ix.Params()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	sizes, err := SequenceSizes(ref)
	if err != nil {
		return nil, err
	}
	if ix.Info.ReferenceDigest != "" && ix.Info.ReferenceDigest != ReferenceDigest(sizes) {
		return nil, errors.Wrapf(ErrParamMismatch, "index was built from a different reference (%s)", ix.Info.Reference)
	}
	cm, err := NewCoordinateMap(sizes, p)
	if err != nil {
		return nil, err
	}
	return &Searcher{params: p, table: ix.Table, coords: cm, ref: ref}, nil
}

// Params returns the parameters of the searcher's index.
func (s *Searcher) Params() Params {
	return s.params
}

// Coordinates returns the searcher's coordinate map.
func (s *Searcher) Coordinates() *CoordinateMap {
	return s.coords
}

// Match returns every position where query occurs in the reference,
// ordered by sequence (in coordinate map order) and start position.
//
// Each of the M phases of the query is probed: the phase i key is made
// of bases i, i+M, ..., i+(Q-1)M, and lines up with the sampling grid
// for exactly those occurrences whose start is congruent to -i mod M.
// A phase whose sampled bases are not all A/C/G/T is skipped.
func (s *Searcher) Match(query []byte) ([]Match, error) {
	p := s.params
	if len(query) < p.MinQueryLen() {
		return nil, errors.Wrapf(ErrInvalidQuery, "query length %d is shorter than minimum %d", len(query), p.MinQueryLen())
	}
	var matches []Match
	seen := map[Match]bool{}
	var positions []uint64
	for phase := 0; phase < p.M; phase++ {
		key, err := Encode(DownSample(query[phase:], p.M)[:p.Q])
		if err != nil {
			log.Debugf("phase %d skipped: %s", phase, err)
			continue
		}
		positions = s.table.AppendPositions(positions[:0], key)
		for _, global := range positions {
			chrom, local, err := s.coords.FromGlobal(global)
			if err != nil {
				return nil, err
			}
			start := int64(local)*int64(p.M) - int64(phase)
			if start < 0 {
				continue
			}
			ok, err := s.verify(chrom, int(start), query)
			if err != nil {
				return nil, err
			} else if !ok {
				continue
			}
			m := Match{Chrom: chrom, Start: int(start) + 1, End: int(start) + len(query)}
			if !seen[m] {
				seen[m] = true
				matches = append(matches, m)
			}
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		oi, oj := s.coords.order(matches[i].Chrom), s.coords.order(matches[j].Chrom)
		if oi != oj {
			return oi < oj
		}
		return matches[i].Start < matches[j].Start
	})
	return matches, nil
}

// MatchString is Match for a string query.
func (s *Searcher) MatchString(query string) ([]Match, error) {
	return s.Match([]byte(query))
}

// verify reports whether query occurs at 0-based start in chrom.
// Candidates running past the end of the sequence are rejected.
// Bases are compared case-insensitively so soft-masked regions match.
func (s *Searcher) verify(chrom string, start int, query []byte) (bool, error) {
	n, err := s.coords.Length(chrom)
	if err != nil {
		return false, err
	}
	end := start + len(query)
	if end > n {
		log.Debugf("%s:%d rejected: candidate ends at %d, beyond sequence length %d", chrom, start+1, end, n)
		return false, nil
	}
	refseq, err := s.ref.Read(chrom, start, end)
	if err != nil {
		return false, errors.Wrapf(err, "verify %s:%d-%d", chrom, start+1, end)
	}
	if bytes.EqualFold(refseq, query) {
		return true, nil
	}
	if log.IsLevelEnabled(log.DebugLevel) {
		variants, _ := hgvs.Diff(strings.ToUpper(string(refseq)), strings.ToUpper(string(query)), explainTimeout)
		var desc []string
		for _, v := range variants {
			desc = append(desc, v.String())
		}
		log.Debugf("%s:%d rejected: %s", chrom, start+1, strings.Join(desc, ";"))
	}
	return false, nil
}
