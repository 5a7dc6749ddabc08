package polyphase

import (
	"archive/zip"
	"bufio"
	"io"
	"io/ioutil"
	"os"
	"path"

	"github.com/kshedden/gonpy"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// The persisted index is a zip archive laid out like a numpy .npz
// file: each array is a .npy member under the "index" group, next to
// an info.toml member describing how it was built.
const (
	indexGroup    = "index"
	infoMember    = "info.toml"
	offsetsArray  = "offsets"
	countsArray   = "counts"
	positionsArr  = "positions"
	npyMemberExt  = ".npy"
	tmpFileSuffix = ".tmp"
)

// Save writes ix to a new file at filename. The file is written under
// a temporary name and renamed into place when complete.
func (ix *Index) Save(filename string, compress bool) error {
	tmp := filename + tmpFileSuffix
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)
	bufw := bufio.NewWriterSize(f, 1<<20)
	err = ix.Write(bufw, compress)
	if err != nil {
		f.Close()
		return err
	}
	err = bufw.Flush()
	if err != nil {
		f.Close()
		return err
	}
	err = f.Close()
	if err != nil {
		return err
	}
	return os.Rename(tmp, filename)
}

// Write writes ix to w. If compress is true, members are deflated.
func (ix *Index) Write(w io.Writer, compress bool) error {
	method := zip.Store
	if compress {
		method = zip.Deflate
	}
	zw := zip.NewWriter(w)
	create := func(name string) (io.Writer, error) {
		return zw.CreateHeader(&zip.FileHeader{
			Name:   path.Join(indexGroup, name),
			Method: method,
		})
	}

	info, err := toml.Marshal(ix.Info)
	if err != nil {
		return err
	}
	mw, err := create(infoMember)
	if err != nil {
		return err
	}
	if _, err = mw.Write(info); err != nil {
		return err
	}

	for _, member := range []struct {
		name string
		data *Array
	}{
		{offsetsArray, &ix.Table.offsets},
		{countsArray, &ix.Table.counts},
		{positionsArr, &ix.Table.positions},
	} {
		mw, err := create(member.name + npyMemberExt)
		if err != nil {
			return err
		}
		err = writeNpy(mw, member.data)
		if err != nil {
			return errors.Wrapf(err, "write %s", member.name)
		}
	}
	return zw.Close()
}

func writeNpy(w io.Writer, a *Array) error {
	npw, err := gonpy.NewWriter(nopCloser{w})
	if err != nil {
		return err
	}
	npw.Shape = []int{a.Len()}
	switch a.width {
	case Width8:
		return npw.WriteUint8(a.u8)
	case Width16:
		return npw.WriteUint16(a.u16)
	case Width32:
		return npw.WriteUint32(a.u32)
	default:
		return npw.WriteUint64(a.u64)
	}
}

// Load reads an index written by Save.
func Load(filename string) (*Index, error) {
	zr, err := zip.OpenReader(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "open index %s", filename)
	}
	defer zr.Close()
	ix, err := readIndex(&zr.Reader)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", filename)
	}
	return ix, nil
}

// ReadFrom reads an index written by Write from r, which holds size
// bytes.
func ReadFrom(r io.ReaderAt, size int64) (*Index, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, err
	}
	return readIndex(zr)
}

func readIndex(zr *zip.Reader) (*Index, error) {
	members := map[string]*zip.File{}
	for _, f := range zr.File {
		members[f.Name] = f
	}
	open := func(name string) (io.ReadCloser, error) {
		f, ok := members[path.Join(indexGroup, name)]
		if !ok {
			return nil, errors.Errorf("missing %s/%s", indexGroup, name)
		}
		return f.Open()
	}

	ix := &Index{}
	rc, err := open(infoMember)
	if err != nil {
		return nil, err
	}
	buf, err := ioutil.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, err
	}
	if err = toml.Unmarshal(buf, &ix.Info); err != nil {
		return nil, errors.Wrapf(err, "parse %s", infoMember)
	}
	if ix.Info.Version != FormatVersion {
		return nil, errors.Errorf("unsupported index format version %d", ix.Info.Version)
	}
	if err = ix.Params().Validate(); err != nil {
		return nil, err
	}

	t := &Table{}
	for _, member := range []struct {
		name  string
		width int
		len   int
		data  *Array
	}{
		{offsetsArray, ix.Info.OffsetsWidth, ix.Info.KeySpace, &t.offsets},
		{countsArray, ix.Info.CountsWidth, ix.Info.KeySpace, &t.counts},
		{positionsArr, ix.Info.PositionsWidth, ix.Info.Entries, &t.positions},
	} {
		rc, err := open(member.name + npyMemberExt)
		if err != nil {
			return nil, err
		}
		*member.data, err = readNpy(rc, Width(member.width))
		rc.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", member.name)
		}
		if n := member.data.Len(); n != member.len {
			return nil, errors.Wrapf(ErrIndexCorrupt, "%s has %d elements, expected %d", member.name, n, member.len)
		}
	}
	for key, n := 0, t.counts.Len(); key < n; key++ {
		if count := t.counts.At(key); count > 0 && t.offsets.At(key)+count > uint64(t.positions.Len()) {
			return nil, errors.Wrapf(ErrIndexCorrupt, "bucket %d extends past end of positions", key)
		}
	}
	ix.Table = t
	return ix, nil
}

func readNpy(r io.Reader, width Width) (Array, error) {
	npr, err := gonpy.NewReader(r)
	if err != nil {
		return Array{}, err
	}
	var data interface{}
	switch width {
	case Width8:
		data, err = npr.GetUint8()
	case Width16:
		data, err = npr.GetUint16()
	case Width32:
		data, err = npr.GetUint32()
	case Width64:
		data, err = npr.GetUint64()
	default:
		return Array{}, errors.Errorf("unsupported array width %d", width)
	}
	if err != nil {
		return Array{}, err
	}
	return arrayOf(data)
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
