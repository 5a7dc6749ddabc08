package polyphase

import (
	"github.com/pkg/errors"
)

// Key is a packed window of down-sampled bases, 2 bits per base. Base
// i of the window occupies bits [2i, 2i+2).
type Key uint64

// MaxQ is the longest window whose rotated key still fits in a Key
// (rotation briefly uses bits [2Q, 2Q+2)).
const MaxQ = 31

var (
	// ErrInvalidBase means a window contains a byte outside
	// {A,G,T,C} (either case).
	ErrInvalidBase = errors.New("invalid base")

	basecode = func() []Key {
		r := make([]Key, 256)
		r[int('a')] = 0
		r[int('A')] = 0
		r[int('g')] = 1
		r[int('G')] = 1
		r[int('t')] = 2
		r[int('T')] = 2
		r[int('c')] = 3
		r[int('C')] = 3
		return r
	}()
	isbase = func() []bool {
		r := make([]bool, 256)
		for _, b := range []byte("acgtACGT") {
			r[int(b)] = true
		}
		return r
	}()
)

// Encode packs window into a Key.
func Encode(window []byte) (Key, error) {
	var key Key
	for i, b := range window {
		if !isbase[int(b)] {
			return 0, errors.Wrapf(ErrInvalidBase, "%q at window offset %d", b, i)
		}
		key |= basecode[int(b)] << (2 * uint(i))
	}
	return key, nil
}

// Rotate returns the key of the window that follows the q-base window
// encoded in key, after appending next. The caller must ensure next
// is a valid base.
func Rotate(key Key, next byte, q int) Key {
	key += basecode[int(next)] << (2 * uint(q))
	return key >> 2
}

// DownSample returns every mth byte of seq, starting with seq[0].
func DownSample(seq []byte, m int) []byte {
	if m <= 1 {
		return seq
	}
	out := make([]byte, 0, (len(seq)+m-1)/m)
	for i := 0; i < len(seq); i += m {
		out = append(out, seq[i])
	}
	return out
}

// roller tracks the key of a sliding q-base window over a stream of
// bases. It is either in the "no valid window" state (fewer than q
// clean bases since the last ambiguous one) or holds the key of the
// window ending at the most recent base.
type roller struct {
	q     int
	key   Key
	clean int // consecutive valid bases seen, saturating at q
}

// next feeds one base. It returns the key of the q-base window ending
// at b, and false if that window contains an ambiguous base.
func (r *roller) next(b byte) (Key, bool) {
	if !isbase[int(b)] {
		r.reset()
		return 0, false
	}
	// Rotating from a zeroed key fills the window exactly like Encode
	// would once q bases have been shifted in.
	r.key = Rotate(r.key, b, r.q)
	if r.clean < r.q {
		r.clean++
	}
	return r.key, r.clean == r.q
}

func (r *roller) reset() {
	r.key = 0
	r.clean = 0
}
