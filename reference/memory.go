package reference

import (
	"io"

	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seqio/fastx"
	log "github.com/sirupsen/logrus"
)

// Memory is a Source held entirely in memory.
type Memory struct {
	names []string
	seqs  map[string][]byte
}

// NewMemory returns an empty in-memory reference.
func NewMemory() *Memory {
	return &Memory{seqs: map[string][]byte{}}
}

// Add appends a sequence. Names must be unique.
func (m *Memory) Add(name string, seq []byte) error {
	if _, dup := m.seqs[name]; dup {
		return errors.Errorf("duplicate sequence name %q", name)
	}
	m.names = append(m.names, name)
	m.seqs[name] = seq
	return nil
}

// ReadFasta loads every record of a FASTA file. Records are named by
// the first word of their header line.
func ReadFasta(filename string) (*Memory, error) {
	rdr, err := fastx.NewReader(nil, filename, "")
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", filename)
	}
	defer rdr.Close()
	m := NewMemory()
	for {
		record, err := rdr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Wrapf(err, "read %s", filename)
		}
		// The reader reuses its buffers between records.
		err = m.Add(string(record.ID), append([]byte(nil), record.Seq.Seq...))
		if err != nil {
			return nil, errors.Wrapf(err, "%s", filename)
		}
	}
	log.Debugf("%s: loaded %d sequences", filename, len(m.names))
	return m, nil
}

func (m *Memory) SequenceNames() []string {
	return append([]string(nil), m.names...)
}

func (m *Memory) SequenceLen(name string) (int, error) {
	seq, ok := m.seqs[name]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownSequence, "%q", name)
	}
	return len(seq), nil
}

func (m *Memory) Read(name string, start, end int) ([]byte, error) {
	seq, ok := m.seqs[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownSequence, "%q", name)
	}
	if err := checkRange(name, start, end, len(seq)); err != nil {
		return nil, err
	}
	return seq[start:end:end], nil
}

func (m *Memory) Close() error { return nil }
