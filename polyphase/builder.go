package polyphase

import (
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// progressChunk is how many down-sampled bases are scanned between
// progress reports.
const progressChunk = 1 << 20

// Builder accumulates k-mer positions for a reference and packs them
// into a Table. A Builder is spent once Finalize has been called.
type Builder struct {
	coords  *CoordinateMap
	buckets map[Key][]uint64
	entries int
}

// NewBuilder returns an empty builder for the sequences in coords.
func NewBuilder(coords *CoordinateMap) *Builder {
	return &Builder{
		coords:  coords,
		buckets: map[Key][]uint64{},
	}
}

// AddSequence indexes every clean window of the named sequence.
func (b *Builder) AddSequence(name string, seq []byte) error {
	buckets, err := scanSequence(b.coords, name, seq, nil)
	if err != nil {
		return err
	}
	b.merge(buckets)
	return nil
}

func (b *Builder) merge(buckets map[Key][]uint64) {
	for key, positions := range buckets {
		b.buckets[key] = append(b.buckets[key], positions...)
		b.entries += len(positions)
	}
}

// scanSequence returns the global positions of every clean Q-window of
// the down-sampled sequence, grouped by key.
func scanSequence(cm *CoordinateMap, name string, seq []byte, progress func(int64)) (map[Key][]uint64, error) {
	n, err := cm.Length(name)
	if err != nil {
		return nil, err
	}
	if n != len(seq) {
		return nil, errors.Errorf("%s: sequence length %d does not match reference size %d", name, len(seq), n)
	}
	p := cm.Params()
	sampled := DownSample(seq, p.M)
	buckets := map[Key][]uint64{}
	r := roller{q: p.Q}
	reported := 0
	for j, base := range sampled {
		if progress != nil && j > 0 && j%progressChunk == 0 {
			progress(int64(progressChunk * p.M))
			reported += progressChunk * p.M
		}
		key, ok := r.next(base)
		if !ok {
			continue
		}
		pos, err := cm.ToGlobal(name, uint64(j-p.Q+1))
		if err != nil {
			return nil, err
		}
		buckets[key] = append(buckets[key], pos)
	}
	if progress != nil {
		progress(int64(len(seq) - reported))
	}
	return buckets, nil
}

// Finalize packs the accumulated buckets, in ascending key order, into
// a Table.
func (b *Builder) Finalize() (*Table, error) {
	keys := make([]Key, 0, len(b.buckets))
	for key := range b.buckets {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	keySpace := 0
	if len(keys) > 0 {
		if top := keys[len(keys)-1]; top >= 1<<(2*MaxTableQ) {
			return nil, errors.Errorf("key %d exceeds table key space (Q<=%d)", top, MaxTableQ)
		}
		keySpace = int(keys[len(keys)-1]) + 1
	}
	var maxCount, maxPos uint64
	for _, positions := range b.buckets {
		if n := uint64(len(positions)); n > maxCount {
			maxCount = n
		}
		for _, pos := range positions {
			if pos > maxPos {
				maxPos = pos
			}
		}
	}

	t := &Table{
		offsets:   NewArray(keySpace, uint64(b.entries)),
		counts:    NewArray(keySpace, maxCount),
		positions: NewArray(b.entries, maxPos),
	}
	offset := 0
	for _, key := range keys {
		positions := b.buckets[key]
		t.offsets.set(int(key), uint64(offset))
		t.counts.set(int(key), uint64(len(positions)))
		for i, pos := range positions {
			t.positions.set(offset+i, pos)
		}
		offset += len(positions)
	}
	b.buckets = nil
	return t, nil
}

// BuildOptions control Build.
type BuildOptions struct {
	// Workers is the number of sequences scanned concurrently
	// (default: number of CPUs).
	Workers int
	// Progress, if not nil, is called with the number of native
	// bases scanned since the last call. It may be called from
	// several goroutines at once.
	Progress func(bases int64)
}

type scanResult struct {
	buckets map[Key][]uint64
	err     error
}

// Build indexes every sequence of ref. Sequences are read and scanned
// concurrently; their buckets are merged one at a time in coordinate
// map order, so each bucket lists its positions in ascending order.
func Build(ref Reference, p Params, opts BuildOptions) (*Index, error) {
	sizes, err := SequenceSizes(ref)
	if err != nil {
		return nil, err
	}
	cm, err := NewCoordinateMap(sizes, p)
	if err != nil {
		return nil, err
	}
	seqs := cm.Sequences()
	workers := opts.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	starttime := time.Now()
	errs := make(chan error, 1)
	results := make([]chan scanResult, len(seqs))
	todo := make(chan int, len(seqs))
	for i := range seqs {
		results[i] = make(chan scanResult, 1)
		todo <- i
	}
	close(todo)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range todo {
				if len(errs) > 0 {
					results[i] <- scanResult{}
					continue
				}
				name := seqs[i].Name
				seq, err := ref.Read(name, 0, seqs[i].Length)
				if err != nil {
					err = errors.Wrapf(err, "%s: read", name)
					select {
					case errs <- err:
					default:
					}
					results[i] <- scanResult{err: err}
					continue
				}
				log.Debugf("%s: scanning %s bases", name, humanize.Comma(int64(len(seq))))
				buckets, err := scanSequence(cm, name, seq, opts.Progress)
				if err != nil {
					select {
					case errs <- err:
					default:
					}
				}
				results[i] <- scanResult{buckets: buckets, err: err}
			}
		}()
	}

	builder := NewBuilder(cm)
	for i := range seqs {
		res := <-results[i]
		if res.err != nil || len(errs) > 0 {
			continue
		}
		before := builder.entries
		builder.merge(res.buckets)
		log.Infof("%s: %s windows indexed", seqs[i].Name, humanize.Comma(int64(builder.entries-before)))
	}
	wg.Wait()
	if len(errs) > 0 {
		return nil, <-errs
	}

	table, err := builder.Finalize()
	if err != nil {
		return nil, err
	}
	log.Infof("indexed %s positions, %s keys, %s in %v",
		humanize.Comma(int64(table.Len())),
		humanize.Comma(int64(table.KeySpace())),
		humanize.Bytes(table.SizeBytes()),
		time.Since(starttime))
	return NewIndex(table, sizes, p), nil
}
