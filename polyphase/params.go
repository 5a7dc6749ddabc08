package polyphase

import (
	"fmt"

	"github.com/pkg/errors"
)

// Params are the down-sampling stride (M) and the down-sampled window
// length (Q) of an index. An index built with one Params value can
// only be queried with the same value.
type Params struct {
	M int
	Q int
}

// DefaultParams match the parameters the human reference index is
// usually built with.
var DefaultParams = Params{M: 10, Q: 10}

// MaxTableQ is the longest window an index can be built with. The
// offsets and counts arrays have one element per possible key, 4^Q in
// the worst case.
const MaxTableQ = 16

// Validate returns an error if p cannot be used to build or query an
// index.
func (p Params) Validate() error {
	if p.M < 1 {
		return errors.Errorf("invalid M=%d: must be at least 1", p.M)
	}
	if p.Q < 1 || p.Q > MaxTableQ {
		return errors.Errorf("invalid Q=%d: must be in [1,%d]", p.Q, MaxTableQ)
	}
	return nil
}

// MinQueryLen is the shortest query that can be searched.
func (p Params) MinQueryLen() int {
	return p.M * p.Q
}

func (p Params) String() string {
	return fmt.Sprintf("M%d.Q%d", p.M, p.Q)
}

// IndexFilename returns the conventional filename of the index built
// from reference with params p.
func IndexFilename(reference string, p Params) string {
	return fmt.Sprintf("%s.%s.index", reference, p)
}
